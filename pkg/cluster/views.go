package cluster

import (
	"github.com/rzbill/herd/pkg/catalog"
)

// Services returns every catalog entry, all versions included, in
// catalog order.
func (c *Context) Services() []*catalog.Service {
	return c.dist.Services
}

// RequiredServices returns the selected variant of every service a valid
// cluster must run.
func (c *Context) RequiredServices() []*catalog.Service {
	var out []*catalog.Service
	for _, name := range c.dist.RequiredServices {
		if s := c.dist.Service(name, c.SelectedVersion(name)); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ClusterServices returns the services the cluster actually runs: one
// selected version per service name, present when some node group hosts
// one of its processes. A required service without processes is always
// present.
func (c *Context) ClusterServices() []*catalog.Service {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clusterServices == nil {
		c.clusterServices = c.computeClusterServices()
	}
	return c.clusterServices
}

func (c *Context) computeClusterServices() []*catalog.Service {
	required := make(map[string]bool, len(c.dist.RequiredServices))
	for _, name := range c.dist.RequiredServices {
		required[name] = true
	}

	out := make([]*catalog.Service, 0)
	for _, name := range c.dist.ServiceNames() {
		s := c.dist.Service(name, c.SelectedVersion(name))
		if s == nil {
			continue
		}
		processes := s.ProcessNames()
		hosted := len(processes) > 0 && len(c.NodeGroups(processes...)) > 0
		if hosted || (len(processes) == 0 && required[name]) {
			out = append(out, s)
		}
	}
	return out
}

// IsPresent reports whether the cluster runs the named service. An empty
// version matches any.
func (c *Context) IsPresent(name, version string) bool {
	for _, s := range c.ClusterServices() {
		if s.UIName == name && (version == "" || s.Version == version) {
			return true
		}
	}
	return false
}

// ServiceFor returns the cluster service owning a node process.
func (c *Context) ServiceFor(process string) *catalog.Service {
	for _, s := range c.ClusterServices() {
		if s.HasProcess(process) {
			return s
		}
	}
	return nil
}

// NodeProcesses maps every service name in the catalog to the UI names of
// its node processes. Services without processes are omitted.
func (c *Context) NodeProcesses() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodeProcesses == nil {
		np := make(map[string][]string)
		for _, s := range c.dist.Services {
			if len(s.NodeProcesses) > 0 {
				np[s.UIName] = s.ProcessNames()
			}
		}
		c.nodeProcesses = np
	}
	return c.nodeProcesses
}

// Configs returns every option the catalog exposes: each service's own
// options, one version-selection option per service offered in several
// versions, and the repository options. Options are unique by name and
// target; the first occurrence wins.
func (c *Context) Configs() []catalog.ConfigOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configs == nil {
		var all []catalog.ConfigOption
		for _, s := range c.dist.Services {
			all = append(all, s.Configs...)
		}
		all = append(all, c.versionConfigs()...)
		all = append(all, catalog.RepoOptions()...)
		c.configs = catalog.UniqueOptions(all)
	}
	return c.configs
}

func (c *Context) versionConfigs() []catalog.ConfigOption {
	var out []catalog.ConfigOption
	for _, name := range c.dist.ServiceNames() {
		variants := c.dist.Variants(name)
		versions := make([]string, len(variants))
		for i, s := range variants {
			versions[i] = s.Version
		}
		versions = catalog.Unique(versions, func(v string) string { return v })
		if len(versions) < 2 {
			continue
		}
		out = append(out, c.dist.DefaultVariant(name).VersionConfig(versions))
	}
	return out
}

// ConfigsDict maps service name to option name to default value, built
// over every catalog entry in order. When two entries share a name the
// later one overwrites.
func (c *Context) ConfigsDict() map[string]map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configsDict == nil {
		dict := make(map[string]map[string]string)
		for _, s := range c.dist.Services {
			for name, values := range s.ConfigsDict() {
				dict[name] = values
			}
		}
		c.configsDict = dict
	}
	return c.configsDict
}
