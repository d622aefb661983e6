package orchestrator

import (
	"context"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/edp"
	"github.com/rzbill/herd/pkg/types"
)

// Validator checks a cluster context against topology constraints.
type Validator interface {
	Validate(ctx context.Context, cc *cluster.Context) error
	ValidateScaling(ctx context.Context, cc *cluster.Context, existing, additional map[string]int) error
}

// Configurer lays down and reconciles configuration artifacts.
type Configurer interface {
	// Configure with no instances configures every active instance.
	Configure(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error
	Update(ctx context.Context, cc *cluster.Context, changed ...*types.Instance) error
	PostStart(ctx context.Context, cc *cluster.Context) error
}

// NodeManager drives node processes on instances.
type NodeManager interface {
	// Start with no instances starts every active instance.
	Start(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error
	Stop(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error
	MoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error
	RemoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error

	// AwaitNoHeartbeat blocks until no removed instance of cc reports a
	// heartbeat, returning *types.TimeoutError when its bound expires.
	AwaitNoHeartbeat(ctx context.Context, cc *cluster.Context) error
}

// HealthChecker derives check descriptors without executing them.
type HealthChecker interface {
	GetChecks(cc *cluster.Context) []types.CheckDescriptor
}

// JobEngineResolver maps job types to engines.
type JobEngineResolver interface {
	SupportedJobTypes() []types.JobType
	Resolve(cc *cluster.Context, jobType types.JobType) (*edp.Engine, error)
	ConfigHints(jobType types.JobType) (types.ConfigHints, error)
}

// ImageHandler prepares and verifies machine images. It is optional.
type ImageHandler interface {
	Arguments() []types.ImageArgument
	Pack(ctx context.Context, target *types.Instance, testOnly bool, args map[string]string) error
	Validate(ctx context.Context, c *types.Cluster, testOnly bool, args map[string]string) error
}

// Recorder keeps the history of lifecycle operations.
type Recorder interface {
	Begin(ctx context.Context, clusterID string, kind types.OperationKind, instances []string) (*types.Operation, error)
	Finish(ctx context.Context, op *types.Operation, opErr error) error
}
