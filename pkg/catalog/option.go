package catalog

import "github.com/rzbill/herd/pkg/types"

// Option value types understood by the host UI.
const (
	OptionTypeString   = "string"
	OptionTypeInt      = "int"
	OptionTypeBool     = "bool"
	OptionTypeDropdown = "dropdown"
)

// ConfigOption is an immutable description of one configuration option.
type ConfigOption struct {
	Name             string   `json:"name" yaml:"name"`
	ApplicableTarget string   `json:"applicableTarget" yaml:"target"`
	Scope            string   `json:"scope" yaml:"scope"`
	Type             string   `json:"type" yaml:"type"`
	Priority         int      `json:"priority" yaml:"priority"`
	DefaultValue     string   `json:"defaultValue" yaml:"default"`
	Values           []string `json:"values,omitempty" yaml:"values,omitempty"`
	Optional         bool     `json:"optional" yaml:"optional"`
	Description      string   `json:"description" yaml:"description"`
}

// OptionKey identifies an option independently of its value.
type OptionKey struct {
	Name   string
	Target string
}

// Key returns the identity of the option.
func (o ConfigOption) Key() OptionKey {
	return OptionKey{Name: o.Name, Target: o.ApplicableTarget}
}

// Unique returns items with duplicates removed, keeping the first item
// seen for every key and preserving order.
func Unique[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// UniqueOptions deduplicates options by name and target.
func UniqueOptions(options []ConfigOption) []ConfigOption {
	return Unique(options, ConfigOption.Key)
}

// Repository option names.
const (
	UbuntuBaseRepo      = "Ubuntu base repo"
	CentOSBaseRepo      = "CentOS base repo"
	UbuntuEcosystemRepo = "Ubuntu ecosystem repo"
	CentOSEcosystemRepo = "CentOS ecosystem repo"
)

// RepoOptions returns the package repository location options every
// distribution exposes.
func RepoOptions() []ConfigOption {
	repo := func(name, desc string) ConfigOption {
		return ConfigOption{
			Name:             name,
			ApplicableTarget: types.TargetGeneral,
			Scope:            types.ScopeCluster,
			Type:             OptionTypeString,
			Priority:         1,
			DefaultValue:     "",
			Optional:         true,
			Description:      desc,
		}
	}
	return []ConfigOption{
		repo(UbuntuBaseRepo, "Specifies Ubuntu MapR core repository."),
		repo(CentOSBaseRepo, "Specifies CentOS MapR core repository."),
		repo(UbuntuEcosystemRepo, "Specifies Ubuntu MapR ecosystem repository."),
		repo(CentOSEcosystemRepo, "Specifies CentOS MapR ecosystem repository."),
	}
}

// RepoOptionName returns the repository option for an OS family ("ubuntu"
// or "centos") and repository kind ("base" or "ecosystem").
func RepoOptionName(os, kind string) string {
	switch os + "/" + kind {
	case "ubuntu/base":
		return UbuntuBaseRepo
	case "ubuntu/ecosystem":
		return UbuntuEcosystemRepo
	case "centos/base":
		return CentOSBaseRepo
	case "centos/ecosystem":
		return CentOSEcosystemRepo
	}
	return ""
}
