// Package health derives, runs and schedules cluster health checks.
package health

import (
	"fmt"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/types"
)

// Processes with cluster-level checks.
const (
	ZooKeeper = "ZooKeeper"
	CLDB      = "CLDB"
)

// PackageCheckCommand succeeds when the named package is installed under
// either package manager.
const PackageCheckCommand = "rpm -q %[1]s >/dev/null 2>&1 || dpkg -s %[1]s >/dev/null 2>&1"

// Checker derives check descriptors from a cluster context.
type Checker struct{}

// NewChecker creates a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// GetChecks returns one probe descriptor per process instance, followed
// by cluster-level checks. Processes that open a port are probed on it;
// the rest get a package check. Nothing is executed.
func (c *Checker) GetChecks(cc *cluster.Context) []types.CheckDescriptor {
	var checks []types.CheckDescriptor

	for _, s := range cc.ClusterServices() {
		for _, np := range s.NodeProcesses {
			for _, inst := range cc.InstancesOf(np.UIName) {
				if len(np.OpenPorts) == 0 {
					if np.Package != "" {
						checks = append(checks, packageCheck(s.UIName, np.UIName, np.Package, inst))
					}
					continue
				}
				d := types.CheckDescriptor{
					Name:       fmt.Sprintf("%s on %s", np.UIName, inst.Hostname),
					Kind:       types.CheckKindTCP,
					Service:    s.UIName,
					Process:    np.UIName,
					InstanceID: inst.ID,
					Host:       inst.Address(),
					Port:       np.OpenPorts[0],
				}
				if np.HealthPath != "" {
					d.Kind = types.CheckKindHTTP
					d.Path = np.HealthPath
				}
				checks = append(checks, d)
			}
		}
	}

	if cc.IsPresent(ZooKeeper, "") {
		n := len(cc.InstancesOf(ZooKeeper))
		checks = append(checks, types.CheckDescriptor{
			Name:    "ZooKeeper quorum",
			Kind:    types.CheckKindCluster,
			Service: ZooKeeper,
			Healthy: n > 0 && n%2 == 1,
			Message: fmt.Sprintf("%d ZooKeeper node(s)", n),
		})
	}

	n := len(cc.InstancesOf(CLDB))
	checks = append(checks, types.CheckDescriptor{
		Name:    "CLDB available",
		Kind:    types.CheckKindCluster,
		Process: CLDB,
		Healthy: n > 0,
		Message: fmt.Sprintf("%d CLDB node(s)", n),
	})

	return checks
}

// packageCheck covers a process that opens no port by checking its
// package on the instance.
func packageCheck(service, process, pkg string, inst *types.Instance) types.CheckDescriptor {
	return types.CheckDescriptor{
		Name:       fmt.Sprintf("%s installed on %s", process, inst.Hostname),
		Kind:       types.CheckKindExec,
		Service:    service,
		Process:    process,
		InstanceID: inst.ID,
		Host:       inst.Address(),
		Command:    fmt.Sprintf(PackageCheckCommand, pkg),
	}
}
