package configurer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
)

// Topology is the cluster layout written to every node.
type Topology struct {
	Cluster      string            `yaml:"cluster"`
	Distribution string            `yaml:"distribution"`
	Services     []TopologyService `yaml:"services"`
	Nodes        []TopologyNode    `yaml:"nodes"`
}

// TopologyService lists where each process of a service runs.
type TopologyService struct {
	Name      string              `yaml:"name"`
	Version   string              `yaml:"version"`
	Processes map[string][]string `yaml:"processes,omitempty"`
}

// TopologyNode describes one active instance.
type TopologyNode struct {
	ID        string   `yaml:"id"`
	Hostname  string   `yaml:"hostname"`
	Address   string   `yaml:"address"`
	Processes []string `yaml:"processes"`
}

// BuildTopology derives the layout the cluster has once the operation's
// delta is applied.
func BuildTopology(cc *cluster.Context) Topology {
	t := Topology{
		Cluster:      cc.Cluster().Name,
		Distribution: cc.Distribution().Version,
	}
	for _, s := range cc.ClusterServices() {
		ts := TopologyService{Name: s.UIName, Version: s.Version}
		for _, process := range s.ProcessNames() {
			hosts := make([]string, 0)
			for _, inst := range cc.InstancesOf(process) {
				hosts = append(hosts, inst.Address())
			}
			if len(hosts) == 0 {
				continue
			}
			if ts.Processes == nil {
				ts.Processes = make(map[string][]string)
			}
			ts.Processes[process] = hosts
		}
		t.Services = append(t.Services, ts)
	}
	for _, inst := range cc.ActiveInstances() {
		t.Nodes = append(t.Nodes, TopologyNode{
			ID:        inst.ID,
			Hostname:  inst.Hostname,
			Address:   inst.Address(),
			Processes: cc.ProcessesOn(inst),
		})
	}
	return t
}

// Render encodes the topology as YAML.
func (t Topology) Render() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to render topology: %w", err)
	}
	return data, nil
}

// RenderProperties writes a service's options as key=value lines, taking
// cluster values over catalog defaults.
func RenderProperties(cc *cluster.Context, s *catalog.Service) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s)
	for _, opt := range s.Configs {
		fmt.Fprintf(&b, "%s=%s\n", opt.Name, cc.ConfigValue(opt.ApplicableTarget, opt.Name))
	}
	return []byte(b.String())
}

// RenderRepos writes the configured repositories, one "name url" per line.
func RenderRepos(cc *cluster.Context) []byte {
	repos := cc.Repositories()
	var b strings.Builder
	for _, opt := range catalog.RepoOptions() {
		if url, ok := repos[opt.Name]; ok {
			fmt.Fprintf(&b, "%s %s\n", strings.ReplaceAll(strings.ToLower(opt.Name), " ", "-"), url)
		}
	}
	return []byte(b.String())
}
