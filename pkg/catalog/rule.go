package catalog

import "fmt"

// RuleKind names a topology constraint the validator knows how to check.
type RuleKind string

const (
	RuleAtLeast        RuleKind = "at_least"
	RuleAtMost         RuleKind = "at_most"
	RuleExactly        RuleKind = "exactly"
	RuleOddCount       RuleKind = "odd_count"
	RuleEachNodeHas    RuleKind = "each_node_has"
	RuleOnSameNode     RuleKind = "on_same_node"
	RuleDependsOn      RuleKind = "depends_on"
	RuleClientConflict RuleKind = "client_conflict"
	RuleRequiredOS     RuleKind = "required_os"
)

// RuleSpec is the declarative form of a validation rule attached to a
// service in the catalog.
type RuleSpec struct {
	Kind RuleKind `json:"kind" yaml:"kind"`

	// Process is the node process the rule counts or locates
	Process string `json:"process,omitempty" yaml:"process,omitempty"`
	Count   int    `json:"count,omitempty" yaml:"count,omitempty"`

	// Dependency is the process that must share a node with Process
	Dependency string `json:"dependency,omitempty" yaml:"dependency,omitempty"`

	// Service/Version name the service a depends_on rule requires
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Components may not share a node with Client
	Components []string `json:"components,omitempty" yaml:"components,omitempty"`
	Client     string   `json:"client,omitempty" yaml:"client,omitempty"`

	// OS is the image tag required on nodes hosting the owning service
	OS string `json:"os,omitempty" yaml:"os,omitempty"`
}

// Check verifies that the rule carries the fields its kind needs.
func (r RuleSpec) Check() error {
	switch r.Kind {
	case RuleAtLeast, RuleAtMost, RuleExactly:
		if r.Process == "" {
			return fmt.Errorf("%s rule needs a process", r.Kind)
		}
		if r.Count < 0 {
			return fmt.Errorf("%s rule for %s has negative count", r.Kind, r.Process)
		}
	case RuleOddCount, RuleEachNodeHas:
		if r.Process == "" {
			return fmt.Errorf("%s rule needs a process", r.Kind)
		}
	case RuleOnSameNode:
		if r.Process == "" || r.Dependency == "" {
			return fmt.Errorf("on_same_node rule needs process and dependency")
		}
	case RuleDependsOn:
		if r.Service == "" {
			return fmt.Errorf("depends_on rule needs a service")
		}
	case RuleClientConflict:
		if r.Client == "" || len(r.Components) == 0 {
			return fmt.Errorf("client_conflict rule needs client and components")
		}
	case RuleRequiredOS:
		if r.OS == "" {
			return fmt.Errorf("required_os rule needs an os")
		}
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}
