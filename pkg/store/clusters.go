package store

import (
	"context"
	"fmt"

	"github.com/rzbill/herd/pkg/types"
)

// ClusterRepo stores cluster topology records.
type ClusterRepo struct {
	store Store
}

// NewClusterRepo creates a repository on top of s.
func NewClusterRepo(s Store) *ClusterRepo {
	return &ClusterRepo{store: s}
}

// Save creates or replaces a cluster record.
func (r *ClusterRepo) Save(ctx context.Context, c *types.Cluster) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := r.store.Put(ctx, ResourceTypeClusters, ScopeGlobal, c.ID, c); err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", c.ID, err)
	}
	return nil
}

// Get loads a cluster record.
func (r *ClusterRepo) Get(ctx context.Context, id string) (*types.Cluster, error) {
	var c types.Cluster
	if err := r.store.Get(ctx, ResourceTypeClusters, ScopeGlobal, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List loads every cluster record.
func (r *ClusterRepo) List(ctx context.Context) ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	if err := r.store.List(ctx, ResourceTypeClusters, ScopeGlobal, &clusters); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	return clusters, nil
}

// Delete removes a cluster record. Its operation history is kept.
func (r *ClusterRepo) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, ResourceTypeClusters, ScopeGlobal, id)
}
