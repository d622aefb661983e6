package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// OperationRecorder persists the history of lifecycle operations, scoped
// by cluster.
type OperationRecorder struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// NewOperationRecorder creates a recorder on top of s.
func NewOperationRecorder(s Store, logger log.Logger) *OperationRecorder {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &OperationRecorder{store: s, logger: logger.WithComponent("operation-recorder"), now: time.Now}
}

// Begin records the start of an operation and returns its record.
func (r *OperationRecorder) Begin(ctx context.Context, clusterID string, kind types.OperationKind, instances []string) (*types.Operation, error) {
	op := &types.Operation{
		ID:        uuid.NewString(),
		ClusterID: clusterID,
		Kind:      kind,
		Status:    types.OperationStatusRunning,
		Instances: instances,
		StartedAt: r.now(),
	}
	if err := r.store.Create(ctx, ResourceTypeOperations, scopeOf(clusterID), op.ID, op); err != nil {
		return nil, fmt.Errorf("failed to record operation: %w", err)
	}
	return op, nil
}

// Finish records the outcome of an operation. A nil opErr marks it
// succeeded.
func (r *OperationRecorder) Finish(ctx context.Context, op *types.Operation, opErr error) error {
	op.FinishedAt = r.now()
	switch {
	case opErr == nil:
		op.Status = types.OperationStatusSucceeded
	case types.IsOperationCancelled(opErr):
		op.Status = types.OperationStatusCancelled
		op.Error = opErr.Error()
	default:
		op.Status = types.OperationStatusFailed
		op.Error = opErr.Error()
	}

	if err := r.store.Update(ctx, ResourceTypeOperations, scopeOf(op.ClusterID), op.ID, op); err != nil {
		r.logger.Error("Failed to record operation outcome",
			log.Cluster(op.ClusterID), log.Str("operation_id", op.ID), log.Err(err))
		return fmt.Errorf("failed to record operation outcome: %w", err)
	}
	return nil
}

// History returns a cluster's operations, newest first.
func (r *OperationRecorder) History(ctx context.Context, clusterID string) ([]types.Operation, error) {
	var ops []types.Operation
	if err := r.store.List(ctx, ResourceTypeOperations, scopeOf(clusterID), &ops); err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].StartedAt.After(ops[j].StartedAt)
	})
	return ops, nil
}

func scopeOf(clusterID string) string {
	if clusterID == "" {
		return ScopeGlobal
	}
	return clusterID
}
