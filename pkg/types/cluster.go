// Package types defines the core data structures shared by herd components.
package types

import (
	"time"
)

// Configuration targets and scopes used by cluster-level option values.
const (
	TargetGeneral = "general"

	ScopeCluster = "cluster"
	ScopeNode    = "node"
)

// Cluster is the externally-owned topology record a lifecycle operation
// works against.
type Cluster struct {
	// Unique identifier for the cluster
	ID string `json:"id" yaml:"id"`

	// Human-readable name for the cluster
	Name string `json:"name" yaml:"name"`

	// Distribution version the cluster was provisioned with (e.g. "6.1.0")
	DistributionVersion string `json:"distributionVersion" yaml:"distributionVersion"`

	// Image used by node groups that do not set their own
	DefaultImageID string `json:"defaultImageId,omitempty" yaml:"defaultImageId,omitempty"`

	// Node groups making up the cluster, in declaration order
	NodeGroups []*NodeGroup `json:"nodeGroups" yaml:"nodeGroups"`

	// User supplied option values, keyed by applicable target then option name
	Configs map[string]map[string]string `json:"configs,omitempty" yaml:"configs,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// NodeGroup is a named set of instances sharing the same node-process roles.
type NodeGroup struct {
	ID        string `json:"id" yaml:"id"`
	ClusterID string `json:"clusterId,omitempty" yaml:"clusterId,omitempty"`
	Name      string `json:"name" yaml:"name"`

	// UI names of the node processes every instance in the group hosts
	NodeProcesses []string `json:"nodeProcesses" yaml:"nodeProcesses"`

	// Desired instance count; may differ from len(Instances) during scaling
	Count int `json:"count" yaml:"count"`

	ImageID         string `json:"imageId,omitempty" yaml:"imageId,omitempty"`
	VolumesPerNode  int    `json:"volumesPerNode,omitempty" yaml:"volumesPerNode,omitempty"`
	EphemeralDiskGB int    `json:"ephemeralDiskGb,omitempty" yaml:"ephemeralDiskGb,omitempty"`

	Instances []*Instance `json:"instances,omitempty" yaml:"instances,omitempty"`
}

// Instance is one machine belonging to exactly one node group.
type Instance struct {
	ID           string `json:"id" yaml:"id"`
	Hostname     string `json:"hostname" yaml:"hostname"`
	InternalIP   string `json:"internalIp" yaml:"internalIp"`
	ManagementIP string `json:"managementIp,omitempty" yaml:"managementIp,omitempty"`
	NodeGroupID  string `json:"nodeGroupId" yaml:"nodeGroupId"`
}

// Address returns the address other cluster members use to reach the instance.
func (i *Instance) Address() string {
	if i.InternalIP != "" {
		return i.InternalIP
	}
	return i.Hostname
}

// HasProcess reports whether the node group hosts the named node process.
func (ng *NodeGroup) HasProcess(process string) bool {
	for _, p := range ng.NodeProcesses {
		if p == process {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the node group.
func (ng *NodeGroup) Clone() *NodeGroup {
	c := *ng
	c.NodeProcesses = append([]string(nil), ng.NodeProcesses...)
	c.Instances = make([]*Instance, len(ng.Instances))
	for i, inst := range ng.Instances {
		cp := *inst
		c.Instances[i] = &cp
	}
	return &c
}

// Instances returns every instance of every node group, in group order.
func (c *Cluster) Instances() []*Instance {
	if c == nil {
		return nil
	}
	var out []*Instance
	for _, ng := range c.NodeGroups {
		out = append(out, ng.Instances...)
	}
	return out
}

// NodeGroup returns the node group with the given ID, or nil.
func (c *Cluster) NodeGroup(id string) *NodeGroup {
	for _, ng := range c.NodeGroups {
		if ng.ID == id {
			return ng
		}
	}
	return nil
}

// ConfigValue returns the user supplied value for (target, name).
func (c *Cluster) ConfigValue(target, name string) (string, bool) {
	if c == nil || c.Configs == nil {
		return "", false
	}
	v, ok := c.Configs[target][name]
	return v, ok
}

// Clone returns a deep copy of the cluster record.
func (c *Cluster) Clone() *Cluster {
	cp := *c
	cp.NodeGroups = make([]*NodeGroup, len(c.NodeGroups))
	for i, ng := range c.NodeGroups {
		cp.NodeGroups[i] = ng.Clone()
	}
	if c.Configs != nil {
		cp.Configs = make(map[string]map[string]string, len(c.Configs))
		for target, values := range c.Configs {
			m := make(map[string]string, len(values))
			for k, v := range values {
				m[k] = v
			}
			cp.Configs[target] = m
		}
	}
	return &cp
}

// Validate checks the structural integrity of the record itself. Topology
// constraints are the validator's business.
func (c *Cluster) Validate() error {
	if c.ID == "" {
		return NewValidationError("cluster ID is required")
	}
	if c.Name == "" {
		return NewValidationError("cluster name is required")
	}

	seen := make(map[string]string)
	for _, ng := range c.NodeGroups {
		if ng.ID == "" {
			return NewValidationError("node group %q has no ID", ng.Name)
		}
		for _, inst := range ng.Instances {
			if other, ok := seen[inst.ID]; ok {
				return NewValidationError("instance %s belongs to both %s and %s", inst.ID, other, ng.ID)
			}
			seen[inst.ID] = ng.ID
		}
	}
	return nil
}

// InstanceIDs returns the IDs of the given instances.
func InstanceIDs(instances []*Instance) []string {
	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID
	}
	return ids
}
