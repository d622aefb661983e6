package types

// CheckKind selects the probe used to execute a check descriptor.
type CheckKind string

const (
	CheckKindTCP     CheckKind = "tcp"
	CheckKindHTTP    CheckKind = "http"
	CheckKindExec    CheckKind = "exec"
	CheckKindCluster CheckKind = "cluster"
)

// CheckDescriptor describes a health check without executing it.
type CheckDescriptor struct {
	Name       string    `json:"name" yaml:"name"`
	Kind       CheckKind `json:"kind" yaml:"kind"`
	Service    string    `json:"service,omitempty" yaml:"service,omitempty"`
	Process    string    `json:"process,omitempty" yaml:"process,omitempty"`
	InstanceID string    `json:"instanceId,omitempty" yaml:"instanceId,omitempty"`
	Host       string    `json:"host,omitempty" yaml:"host,omitempty"`
	Port       int       `json:"port,omitempty" yaml:"port,omitempty"`
	Path       string    `json:"path,omitempty" yaml:"path,omitempty"`
	Command    string    `json:"command,omitempty" yaml:"command,omitempty"`

	// Cluster-level checks are evaluated at derivation time; Healthy and
	// Message carry that verdict.
	Healthy bool   `json:"healthy,omitempty" yaml:"healthy,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}
