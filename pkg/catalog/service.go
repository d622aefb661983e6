package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rzbill/herd/pkg/types"
)

// NodeProcess is a runnable role owned by exactly one service.
type NodeProcess struct {
	UIName    string `json:"name" yaml:"name"`
	Package   string `json:"package,omitempty" yaml:"package,omitempty"`
	OpenPorts []int  `json:"ports,omitempty" yaml:"ports,omitempty"`

	// HealthPath, when set, makes the health checker probe over HTTP
	HealthPath string `json:"healthPath,omitempty" yaml:"healthPath,omitempty"`
}

// Dependency names another service, optionally pinned to a version.
type Dependency struct {
	Service string `json:"service" yaml:"service"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Service is one installable version of a service in the catalog.
type Service struct {
	UIName  string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`

	// Default marks the variant used when the cluster does not choose one
	Default bool `json:"default,omitempty" yaml:"default,omitempty"`

	NodeProcesses []NodeProcess  `json:"processes,omitempty" yaml:"processes,omitempty"`
	Configs       []ConfigOption `json:"configs,omitempty" yaml:"configs,omitempty"`
	Rules         []RuleSpec     `json:"rules,omitempty" yaml:"rules,omitempty"`

	// PostStart commands run once on the first host of the service
	PostStart []string `json:"postStart,omitempty" yaml:"postStart,omitempty"`
}

// String returns "<name> <version>".
func (s *Service) String() string {
	if s.Version == "" {
		return s.UIName
	}
	return s.UIName + " " + s.Version
}

// ProcessNames returns the UI names of the service's node processes.
func (s *Service) ProcessNames() []string {
	names := make([]string, len(s.NodeProcesses))
	for i, np := range s.NodeProcesses {
		names[i] = np.UIName
	}
	return names
}

// HasProcess reports whether the service owns the named node process.
func (s *Service) HasProcess(name string) bool {
	for _, np := range s.NodeProcesses {
		if np.UIName == name {
			return true
		}
	}
	return false
}

// VersionOptionName is the name of the option selecting a service version.
func VersionOptionName(serviceName string) string {
	return serviceName + " Version"
}

// VersionConfig builds the option letting a cluster pick one of the given
// versions of this service. Values are listed newest first and the
// default is the service's own version.
func (s *Service) VersionConfig(versions []string) ConfigOption {
	values := Unique(append([]string(nil), versions...), func(v string) string { return v })
	sort.SliceStable(values, func(i, j int) bool {
		return CompareVersions(values[i], values[j]) > 0
	})
	return ConfigOption{
		Name:             VersionOptionName(s.UIName),
		ApplicableTarget: s.UIName,
		Scope:            types.ScopeCluster,
		Type:             OptionTypeDropdown,
		Priority:         1,
		DefaultValue:     s.Version,
		Values:           values,
		Optional:         false,
		Description:      fmt.Sprintf("Specify the version of the %s service", s.UIName),
	}
}

// ConfigsDict maps the service name to its option defaults.
func (s *Service) ConfigsDict() map[string]map[string]string {
	values := make(map[string]string, len(s.Configs))
	for _, c := range s.Configs {
		values[c.Name] = c.DefaultValue
	}
	return map[string]map[string]string{s.UIName: values}
}

// CompareVersions compares dotted version strings numerically where
// possible, falling back to string comparison per segment.
func CompareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xi, xerr := strconv.Atoi(x)
		yi, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xi != yi {
				if xi < yi {
					return -1
				}
				return 1
			}
		case x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}
