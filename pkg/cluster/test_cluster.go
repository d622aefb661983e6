package cluster

import (
	"fmt"

	"github.com/rzbill/herd/pkg/types"
)

// NewTestNodeGroup creates a node group with count generated instances.
// Instance IDs are "<name>-<n>" and addresses are loopback aliases so that
// tests can refer to them predictably.
func NewTestNodeGroup(name string, count int, processes ...string) *types.NodeGroup {
	ng := &types.NodeGroup{
		ID:             name,
		Name:           name,
		NodeProcesses:  processes,
		Count:          count,
		VolumesPerNode: 1,
	}
	for i := 0; i < count; i++ {
		ng.Instances = append(ng.Instances, &types.Instance{
			ID:          fmt.Sprintf("%s-%d", name, i),
			Hostname:    fmt.Sprintf("%s-%d.test", name, i),
			InternalIP:  fmt.Sprintf("127.0.%d.%d", len(name)%250, i+1),
			NodeGroupID: name,
		})
	}
	return ng
}

// NewTestCluster creates a cluster record owning the given node groups.
func NewTestCluster(id string, groups ...*types.NodeGroup) *types.Cluster {
	c := &types.Cluster{
		ID:                  id,
		Name:                id,
		DistributionVersion: "6.1.0",
		NodeGroups:          groups,
		Configs:             map[string]map[string]string{},
	}
	for _, ng := range groups {
		ng.ClusterID = id
	}
	return c
}
