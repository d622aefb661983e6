package types

import "time"

// OperationKind names a lifecycle operation of the orchestrator.
type OperationKind string

const (
	OperationValidate         OperationKind = "validate"
	OperationValidateScaling  OperationKind = "validate_scaling"
	OperationConfigureCluster OperationKind = "configure_cluster"
	OperationStartCluster     OperationKind = "start_cluster"
	OperationScaleCluster     OperationKind = "scale_cluster"
	OperationDecommission     OperationKind = "decommission_nodes"
)

// OperationStatus is the state of a recorded lifecycle operation.
type OperationStatus string

const (
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusSucceeded OperationStatus = "succeeded"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// Operation is the persisted record of one lifecycle operation run.
type Operation struct {
	ID         string          `json:"id" yaml:"id"`
	ClusterID  string          `json:"clusterId" yaml:"clusterId"`
	Kind       OperationKind   `json:"kind" yaml:"kind"`
	Status     OperationStatus `json:"status" yaml:"status"`
	Instances  []string        `json:"instances,omitempty" yaml:"instances,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// Duration returns how long the operation ran, or zero while running.
func (o *Operation) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
