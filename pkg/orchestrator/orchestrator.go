// Package orchestrator sequences cluster lifecycle operations across the
// validator, configurer, node manager and health checker.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/edp"
	"github.com/rzbill/herd/pkg/health"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/metrics"
	"github.com/rzbill/herd/pkg/types"
)

// Orchestrator runs lifecycle operations. It holds no cluster state: every
// operation builds a fresh cluster context from the record it is given and
// discards it at the end. Operations on one cluster never interleave.
type Orchestrator struct {
	builder    *cluster.Builder
	validator  Validator
	configurer Configurer
	nodes      NodeManager
	checker    HealthChecker
	jobs       JobEngineResolver
	images     ImageHandler
	recorder   Recorder
	metrics    *metrics.Metrics
	logger     log.Logger

	locks *lockTable

	tasksMu sync.RWMutex
	tasks   map[string]*Task
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHealthChecker replaces the default health checker.
func WithHealthChecker(hc HealthChecker) Option {
	return func(o *Orchestrator) {
		o.checker = hc
	}
}

// WithJobEngineResolver replaces the default job engine resolver.
func WithJobEngineResolver(r JobEngineResolver) Option {
	return func(o *Orchestrator) {
		o.jobs = r
	}
}

// WithImageHandler enables the image operations.
func WithImageHandler(h ImageHandler) Option {
	return func(o *Orchestrator) {
		o.images = h
	}
}

// WithRecorder records every lifecycle operation.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithMetrics records operation counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator over the given collaborators.
func New(builder *cluster.Builder, validator Validator, configurer Configurer, nodes NodeManager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		builder:    builder,
		validator:  validator,
		configurer: configurer,
		nodes:      nodes,
		locks:      newLockTable(),
		tasks:      make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.GetDefaultLogger()
	}
	o.logger = o.logger.WithComponent("orchestrator")
	if o.checker == nil {
		o.checker = health.NewChecker()
	}
	if o.jobs == nil {
		o.jobs = edp.NewResolver(o.logger)
	}
	return o
}

func errNoCluster(op string) error {
	return types.NewValidationError("%s needs a cluster", op)
}

// Validate checks the cluster's current topology.
func (o *Orchestrator) Validate(ctx context.Context, c *types.Cluster) error {
	return o.run(ctx, types.OperationValidate, c, nil, func(ctx context.Context, logger log.Logger) error {
		return o.validator.Validate(ctx, o.builder.Build(c))
	})
}

// ValidateScaling checks a proposed resize without applying it. existing
// maps node group IDs to new counts; additional maps IDs of node groups
// being added to their counts.
func (o *Orchestrator) ValidateScaling(ctx context.Context, c *types.Cluster, existing, additional map[string]int) error {
	return o.run(ctx, types.OperationValidateScaling, c, nil, func(ctx context.Context, logger log.Logger) error {
		return o.validator.ValidateScaling(ctx, o.builder.Build(c), existing, additional)
	})
}

// ConfigureCluster configures every instance for initial provisioning.
func (o *Orchestrator) ConfigureCluster(ctx context.Context, c *types.Cluster) error {
	return o.run(ctx, types.OperationConfigureCluster, c, c.Instances(), func(ctx context.Context, logger log.Logger) error {
		cc := o.builder.Build(c, cluster.WithAdded(c.Instances()...))
		return o.configurer.Configure(ctx, cc)
	})
}

// StartCluster starts every node process and then runs the post-start
// hooks. The hooks are skipped when start fails.
func (o *Orchestrator) StartCluster(ctx context.Context, c *types.Cluster) error {
	return o.run(ctx, types.OperationStartCluster, c, c.Instances(), func(ctx context.Context, logger log.Logger) error {
		cc := o.builder.Build(c, cluster.WithAdded(c.Instances()...))
		return sequence(ctx, logger,
			step{"start", func(ctx context.Context) error { return o.nodes.Start(ctx, cc) }},
			step{"post_start", func(ctx context.Context) error { return o.configurer.PostStart(ctx, cc) }},
		)
	})
}

// ScaleCluster brings instances already added to the cluster record into
// service: they are configured, the existing instances are reconciled with
// the new topology, and then the new instances are started.
func (o *Orchestrator) ScaleCluster(ctx context.Context, c *types.Cluster, instances []*types.Instance) error {
	return o.run(ctx, types.OperationScaleCluster, c, instances, func(ctx context.Context, logger log.Logger) error {
		cc := o.builder.Build(c, cluster.WithAdded(instances...))
		cc.Invalidate()
		return sequence(ctx, logger,
			step{"configure", func(ctx context.Context) error { return o.configurer.Configure(ctx, cc, instances...) }},
			step{"update", func(ctx context.Context) error { return o.configurer.Update(ctx, cc, instances...) }},
			step{"start", func(ctx context.Context) error { return o.nodes.Start(ctx, cc, instances...) }},
		)
	})
}

// DecommissionNodes takes instances out of service. They are moved off
// duty and stopped, and removal waits until none of them heartbeats.
func (o *Orchestrator) DecommissionNodes(ctx context.Context, c *types.Cluster, instances []*types.Instance) error {
	return o.run(ctx, types.OperationDecommission, c, instances, func(ctx context.Context, logger log.Logger) error {
		cc := o.builder.Build(c, cluster.WithRemoved(instances...))
		cc.Invalidate()
		return sequence(ctx, logger,
			step{"move_nodes", func(ctx context.Context) error { return o.nodes.MoveNodes(ctx, cc, instances) }},
			step{"stop", func(ctx context.Context) error { return o.nodes.Stop(ctx, cc, instances...) }},
			step{"await_no_heartbeat", func(ctx context.Context) error { return o.nodes.AwaitNoHeartbeat(ctx, cc) }},
			step{"remove_nodes", func(ctx context.Context) error { return o.nodes.RemoveNodes(ctx, cc, instances) }},
			step{"update", func(ctx context.Context) error { return o.configurer.Update(ctx, cc, instances...) }},
		)
	})
}

// run executes one lifecycle operation under the cluster's exclusive lock.
// Errors from fn are returned unchanged.
func (o *Orchestrator) run(ctx context.Context, kind types.OperationKind, c *types.Cluster, instances []*types.Instance, fn func(context.Context, log.Logger) error) error {
	if c == nil {
		return errNoCluster(string(kind))
	}
	ctx = log.WithScope(ctx, log.Scope{Cluster: c.ID, Operation: string(kind)})
	logger := o.logger.WithContext(ctx)

	unlock, err := o.locks.lock(ctx, c.ID)
	if err != nil {
		return err
	}
	defer unlock()

	start := time.Now()
	o.metrics.RecordOperationStart(string(kind))
	record := o.begin(ctx, logger, c.ID, kind, instances)

	logger.Info("Operation started", log.Int("instances", len(instances)))
	err = fn(ctx, logger)

	elapsed := time.Since(start)
	outcome := outcomeOf(ctx, err)
	o.metrics.RecordOperationEnd(string(kind), outcome, elapsed)

	if err != nil {
		logger.Error("Operation failed", log.Err(err), log.Str("outcome", outcome), log.Duration("elapsed", elapsed))
	} else {
		logger.Info("Operation completed", log.Duration("elapsed", elapsed))
	}

	if record != nil {
		recorded := err
		if outcome == metrics.OutcomeCancelled {
			recorded = &types.OperationCancelledError{Operation: string(kind), Cause: err}
		}
		// the outcome is recorded even when ctx is what ended the operation
		if ferr := o.recorder.Finish(context.WithoutCancel(ctx), record, recorded); ferr != nil {
			logger.Warn("Failed to record operation outcome", log.Err(ferr))
		}
	}
	return err
}

func (o *Orchestrator) begin(ctx context.Context, logger log.Logger, clusterID string, kind types.OperationKind, instances []*types.Instance) *types.Operation {
	if o.recorder == nil {
		return nil
	}
	record, err := o.recorder.Begin(ctx, clusterID, kind, types.InstanceIDs(instances))
	if err != nil {
		logger.Warn("Failed to record operation start", log.Err(err))
		return nil
	}
	return record
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSucceeded
	case types.IsTimeoutError(err):
		return metrics.OutcomeTimeout
	case types.IsValidationError(err):
		return metrics.OutcomeInvalid
	case ctx.Err() != nil, errors.Is(err, context.Canceled), types.IsOperationCancelled(err):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailed
	}
}

type step struct {
	name string
	fn   func(context.Context) error
}

// sequence runs steps in order and stops at the first failure. A context
// cancelled between steps stops the sequence before the next one starts.
func sequence(ctx context.Context, logger log.Logger, steps ...step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("Running step", log.Str("step", s.name))
		if err := s.fn(ctx); err != nil {
			logger.Debug("Step failed", log.Str("step", s.name), log.Err(err))
			return err
		}
	}
	return nil
}
