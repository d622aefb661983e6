package catalog

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed distributions/*.yaml
var builtinFS embed.FS

// Distribution is the service catalog for one distribution version. It
// may hold several versions of the same service at once.
type Distribution struct {
	Version string `json:"version" yaml:"version"`

	// Services in catalog order; iteration order is significant for
	// config dictionary precedence.
	Services []*Service `json:"services" yaml:"services"`

	// RequiredServices are UI names every valid cluster must run
	RequiredServices []string `json:"requiredServices" yaml:"requiredServices"`
}

// LoadDistribution parses a distribution definition.
func LoadDistribution(data []byte) (*Distribution, error) {
	var d Distribution
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse distribution: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadDistributionFile reads and parses a distribution definition file.
func LoadDistributionFile(filename string) (*Distribution, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read distribution file: %w", err)
	}
	return LoadDistribution(data)
}

// Builtin returns the embedded distribution for the given version.
func Builtin(version string) (*Distribution, error) {
	data, err := builtinFS.ReadFile(path.Join("distributions", version+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown distribution version %q", version)
	}
	return LoadDistribution(data)
}

// BuiltinVersions lists the embedded distribution versions, newest first.
func BuiltinVersions() []string {
	entries, err := builtinFS.ReadDir("distributions")
	if err != nil {
		return nil
	}
	var versions []string
	for _, e := range entries {
		if v, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return CompareVersions(versions[i], versions[j]) > 0 })
	return versions
}

// Validate checks catalog invariants: every service is named and
// versioned, (name, version) pairs are unique, a node process is owned by
// one service name only, and rule specs are well formed.
func (d *Distribution) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("distribution has no version")
	}

	variants := make(map[string]bool)
	owner := make(map[string]string)
	for _, s := range d.Services {
		if s.UIName == "" || s.Version == "" {
			return fmt.Errorf("distribution %s: service needs name and version", d.Version)
		}
		key := s.String()
		if variants[key] {
			return fmt.Errorf("distribution %s: duplicate service %s", d.Version, key)
		}
		variants[key] = true

		for _, np := range s.NodeProcesses {
			if prev, ok := owner[np.UIName]; ok && prev != s.UIName {
				return fmt.Errorf("distribution %s: node process %s owned by both %s and %s", d.Version, np.UIName, prev, s.UIName)
			}
			owner[np.UIName] = s.UIName
		}
		for _, r := range s.Rules {
			if err := r.Check(); err != nil {
				return fmt.Errorf("distribution %s: service %s: %w", d.Version, key, err)
			}
		}
	}

	for _, name := range d.RequiredServices {
		if len(d.Variants(name)) == 0 {
			return fmt.Errorf("distribution %s: required service %s is not in the catalog", d.Version, name)
		}
	}
	return nil
}

// Variants returns every catalog entry with the given UI name, in catalog order.
func (d *Distribution) Variants(name string) []*Service {
	var out []*Service
	for _, s := range d.Services {
		if s.UIName == name {
			out = append(out, s)
		}
	}
	return out
}

// Service returns the exact (name, version) entry, or nil.
func (d *Distribution) Service(name, version string) *Service {
	for _, s := range d.Services {
		if s.UIName == name && s.Version == version {
			return s
		}
	}
	return nil
}

// DefaultVariant returns the variant marked default, else the first one.
func (d *Distribution) DefaultVariant(name string) *Service {
	variants := d.Variants(name)
	if len(variants) == 0 {
		return nil
	}
	for _, s := range variants {
		if s.Default {
			return s
		}
	}
	return variants[0]
}

// ServiceNames returns distinct service UI names in first-seen order.
func (d *Distribution) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for _, s := range d.Services {
		names = append(names, s.UIName)
	}
	return Unique(names, func(n string) string { return n })
}

// OwnerOf returns the UI name of the service owning a node process.
func (d *Distribution) OwnerOf(process string) (string, bool) {
	for _, s := range d.Services {
		if s.HasProcess(process) {
			return s.UIName, true
		}
	}
	return "", false
}
