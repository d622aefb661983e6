package cluster

import (
	"sync"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/types"
)

// Context is the derived view of a cluster for a single lifecycle
// operation. It is built at the start of the operation, discarded at the
// end and never shared between operations. Derived views are computed
// lazily and memoized until Invalidate is called.
type Context struct {
	cluster *types.Cluster
	dist    *catalog.Distribution

	added      []*types.Instance
	removed    []*types.Instance
	addedIDs   map[string]struct{}
	removedIDs map[string]struct{}

	mu              sync.Mutex
	generation      int
	clusterServices []*catalog.Service
	nodeProcesses   map[string][]string
	configs         []catalog.ConfigOption
	configsDict     map[string]map[string]string
}

// Cluster returns the topology record the context was built from.
func (c *Context) Cluster() *types.Cluster { return c.cluster }

// Distribution returns the service catalog.
func (c *Context) Distribution() *catalog.Distribution { return c.dist }

// AddedInstances returns the instances joining in this operation.
func (c *Context) AddedInstances() []*types.Instance { return c.added }

// RemovedInstances returns the instances leaving in this operation.
func (c *Context) RemovedInstances() []*types.Instance { return c.removed }

// IsAdded reports whether the instance joins in this operation.
func (c *Context) IsAdded(inst *types.Instance) bool {
	_, ok := c.addedIDs[inst.ID]
	return ok
}

// IsRemoved reports whether the instance leaves in this operation.
func (c *Context) IsRemoved(inst *types.Instance) bool {
	_, ok := c.removedIDs[inst.ID]
	return ok
}

// Instances returns every instance of the cluster record.
func (c *Context) Instances() []*types.Instance {
	return c.cluster.Instances()
}

// ActiveInstances returns the instances that remain once the delta is applied.
func (c *Context) ActiveInstances() []*types.Instance {
	var out []*types.Instance
	for _, inst := range c.cluster.Instances() {
		if !c.IsRemoved(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// ExistingInstances returns instances neither added nor removed by this
// operation.
func (c *Context) ExistingInstances() []*types.Instance {
	var out []*types.Instance
	for _, inst := range c.cluster.Instances() {
		if !c.IsAdded(inst) && !c.IsRemoved(inst) {
			out = append(out, inst)
		}
	}
	return out
}

// NodeGroupOf returns the node group owning the instance.
func (c *Context) NodeGroupOf(inst *types.Instance) *types.NodeGroup {
	if ng := c.cluster.NodeGroup(inst.NodeGroupID); ng != nil {
		return ng
	}
	for _, ng := range c.cluster.NodeGroups {
		for _, i := range ng.Instances {
			if i.ID == inst.ID {
				return ng
			}
		}
	}
	return nil
}

// NodeGroups returns the node groups hosting any of the processes, or all
// node groups when none are given.
func (c *Context) NodeGroups(processes ...string) []*types.NodeGroup {
	var out []*types.NodeGroup
	for _, ng := range c.cluster.NodeGroups {
		if len(processes) == 0 || hostsAnyOf(ng, processes) {
			out = append(out, ng)
		}
	}
	return out
}

func hostsAnyOf(ng *types.NodeGroup, processes []string) bool {
	for _, p := range processes {
		if ng.HasProcess(p) {
			return true
		}
	}
	return false
}

// InstancesOf returns the active instances hosting process.
func (c *Context) InstancesOf(process string) []*types.Instance {
	var out []*types.Instance
	for _, ng := range c.NodeGroups(process) {
		for _, inst := range ng.Instances {
			if !c.IsRemoved(inst) {
				out = append(out, inst)
			}
		}
	}
	return out
}

// InstancesCount sums the declared counts of the node groups hosting
// process. Counts rather than instance lists let proposed topologies be
// validated before any instance exists.
func (c *Context) InstancesCount(process string) int {
	n := 0
	for _, ng := range c.NodeGroups(process) {
		n += ng.Count
	}
	return n
}

// ProcessesOn returns the node processes hosted by the instance.
func (c *Context) ProcessesOn(inst *types.Instance) []string {
	if ng := c.NodeGroupOf(inst); ng != nil {
		return ng.NodeProcesses
	}
	return nil
}

// SelectedVersion returns the version of a service the cluster runs: the
// value of its version-selection option when it names a catalog variant,
// else the catalog default.
func (c *Context) SelectedVersion(name string) string {
	if v, ok := c.cluster.ConfigValue(name, catalog.VersionOptionName(name)); ok && c.dist.Service(name, v) != nil {
		return v
	}
	if s := c.dist.DefaultVariant(name); s != nil {
		return s.Version
	}
	return ""
}

// ConfigValue returns the cluster's value for an option, falling back to
// the catalog default.
func (c *Context) ConfigValue(target, name string) string {
	if v, ok := c.cluster.ConfigValue(target, name); ok {
		return v
	}
	key := catalog.OptionKey{Name: name, Target: target}
	for _, opt := range c.Configs() {
		if opt.Key() == key {
			return opt.DefaultValue
		}
	}
	return ""
}

// Repositories returns the configured package repository locations keyed
// by option name. Unset repositories are omitted.
func (c *Context) Repositories() map[string]string {
	repos := make(map[string]string)
	for _, opt := range catalog.RepoOptions() {
		if v := c.ConfigValue(opt.ApplicableTarget, opt.Name); v != "" {
			repos[opt.Name] = v
		}
	}
	return repos
}

// RepoURL returns the repository location for an OS family ("ubuntu" or
// "centos") and kind ("base" or "ecosystem"), or "" when unset.
func (c *Context) RepoURL(os, kind string) string {
	name := catalog.RepoOptionName(os, kind)
	if name == "" {
		return ""
	}
	return c.ConfigValue(types.TargetGeneral, name)
}

// Generation counts how many times the derived views were invalidated.
func (c *Context) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Invalidate drops every memoized view so that the next access
// recomputes it from the current topology.
func (c *Context) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clusterServices = nil
	c.nodeProcesses = nil
	c.configs = nil
	c.configsDict = nil
	c.generation++
}
