// Package cluster derives the per-operation cluster context: the view of
// a cluster's topology and service catalog a lifecycle operation works
// against.
package cluster

import (
	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// Builder constructs contexts for clusters of one distribution.
type Builder struct {
	dist   *catalog.Distribution
	logger log.Logger
}

// NewBuilder creates a context builder for the given distribution.
func NewBuilder(dist *catalog.Distribution, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Builder{dist: dist, logger: logger.WithComponent("cluster-context")}
}

// Distribution returns the catalog the builder resolves services from.
func (b *Builder) Distribution() *catalog.Distribution {
	return b.dist
}

type buildOptions struct {
	added   []*types.Instance
	removed []*types.Instance
}

// BuildOption describes the topology delta of the operation.
type BuildOption func(*buildOptions)

// WithAdded marks instances joining the cluster in this operation.
func WithAdded(instances ...*types.Instance) BuildOption {
	return func(o *buildOptions) {
		o.added = append(o.added, instances...)
	}
}

// WithRemoved marks instances leaving the cluster in this operation.
func WithRemoved(instances ...*types.Instance) BuildOption {
	return func(o *buildOptions) {
		o.removed = append(o.removed, instances...)
	}
}

// Build creates a fresh context. Construction never fails and touches no
// external state; a nil cluster yields a catalog-only context.
func (b *Builder) Build(c *types.Cluster, opts ...BuildOption) *Context {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if c == nil {
		c = &types.Cluster{}
	}

	cc := &Context{
		cluster:    c,
		dist:       b.dist,
		added:      o.added,
		removed:    o.removed,
		addedIDs:   idSet(o.added),
		removedIDs: idSet(o.removed),
	}

	for id := range cc.addedIDs {
		if _, ok := cc.removedIDs[id]; ok {
			b.logger.Warn("Instance is both added and removed in one operation",
				log.Cluster(c.ID), log.Str("instance", id))
		}
	}

	return cc
}

func idSet(instances []*types.Instance) map[string]struct{} {
	set := make(map[string]struct{}, len(instances))
	for _, inst := range instances {
		set[inst.ID] = struct{}{}
	}
	return set
}
