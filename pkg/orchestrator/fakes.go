package orchestrator

import (
	"context"
	"strconv"
	"sync"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// Call records one collaborator call made by the orchestrator.
type Call struct {
	Name      string
	Instances []string

	// Generation is the context's invalidation count at call time
	Generation int

	// Scope is the log scope on the ctx the call received
	Scope log.Scope
}

// CallLog collects calls from several fakes in the order they happen.
type CallLog struct {
	mu    sync.Mutex
	calls []Call
}

func (l *CallLog) record(ctx context.Context, name string, cc *cluster.Context, instances []*types.Instance) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{
		Name:       name,
		Instances:  types.InstanceIDs(instances),
		Generation: cc.Generation(),
		Scope:      log.ScopeFrom(ctx),
	})
}

// Calls returns the recorded calls.
func (l *CallLog) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Names returns the names of the recorded calls.
func (l *CallLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.calls))
	for i, c := range l.calls {
		names[i] = c.Name
	}
	return names
}

// FakeValidator implements Validator for tests.
type FakeValidator struct {
	Log *CallLog

	ValidateError        error
	ValidateScalingError error

	// ValidateFunc overrides ValidateError when set
	ValidateFunc func(ctx context.Context, cc *cluster.Context) error

	mu         sync.Mutex
	Existing   map[string]int
	Additional map[string]int
}

// Validate implements Validator.
func (f *FakeValidator) Validate(ctx context.Context, cc *cluster.Context) error {
	f.Log.record(ctx, "validate", cc, nil)
	if f.ValidateFunc != nil {
		return f.ValidateFunc(ctx, cc)
	}
	return f.ValidateError
}

// ValidateScaling implements Validator.
func (f *FakeValidator) ValidateScaling(ctx context.Context, cc *cluster.Context, existing, additional map[string]int) error {
	f.Log.record(ctx, "validate_scaling", cc, nil)
	f.mu.Lock()
	f.Existing, f.Additional = existing, additional
	f.mu.Unlock()
	return f.ValidateScalingError
}

// FakeConfigurer implements Configurer for tests.
type FakeConfigurer struct {
	Log *CallLog

	ConfigureError error
	UpdateError    error
	PostStartError error
}

// Configure implements Configurer.
func (f *FakeConfigurer) Configure(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	f.Log.record(ctx, "configure", cc, instances)
	return f.ConfigureError
}

// Update implements Configurer.
func (f *FakeConfigurer) Update(ctx context.Context, cc *cluster.Context, changed ...*types.Instance) error {
	f.Log.record(ctx, "update", cc, changed)
	return f.UpdateError
}

// PostStart implements Configurer.
func (f *FakeConfigurer) PostStart(ctx context.Context, cc *cluster.Context) error {
	f.Log.record(ctx, "post_start", cc, nil)
	return f.PostStartError
}

// FakeNodeManager implements NodeManager for tests.
type FakeNodeManager struct {
	Log *CallLog

	StartError  error
	StopError   error
	MoveError   error
	RemoveError error
	AwaitError  error

	// AwaitFunc overrides AwaitError when set, e.g. to block until the
	// context is cancelled
	AwaitFunc func(ctx context.Context, cc *cluster.Context) error
}

// Start implements NodeManager.
func (f *FakeNodeManager) Start(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	f.Log.record(ctx, "start", cc, instances)
	return f.StartError
}

// Stop implements NodeManager.
func (f *FakeNodeManager) Stop(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	f.Log.record(ctx, "stop", cc, instances)
	return f.StopError
}

// MoveNodes implements NodeManager.
func (f *FakeNodeManager) MoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	f.Log.record(ctx, "move_nodes", cc, instances)
	return f.MoveError
}

// RemoveNodes implements NodeManager.
func (f *FakeNodeManager) RemoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	f.Log.record(ctx, "remove_nodes", cc, instances)
	return f.RemoveError
}

// AwaitNoHeartbeat implements NodeManager.
func (f *FakeNodeManager) AwaitNoHeartbeat(ctx context.Context, cc *cluster.Context) error {
	f.Log.record(ctx, "await_no_heartbeat", cc, cc.RemovedInstances())
	if f.AwaitFunc != nil {
		return f.AwaitFunc(ctx, cc)
	}
	return f.AwaitError
}

// FakeImageHandler implements ImageHandler for tests.
type FakeImageHandler struct {
	Args          []types.ImageArgument
	PackError     error
	ValidateError error

	mu     sync.Mutex
	Packed []string
}

// Arguments implements ImageHandler.
func (f *FakeImageHandler) Arguments() []types.ImageArgument {
	return f.Args
}

// Pack implements ImageHandler.
func (f *FakeImageHandler) Pack(ctx context.Context, target *types.Instance, testOnly bool, args map[string]string) error {
	f.mu.Lock()
	f.Packed = append(f.Packed, target.ID)
	f.mu.Unlock()
	return f.PackError
}

// Validate implements ImageHandler.
func (f *FakeImageHandler) Validate(ctx context.Context, c *types.Cluster, testOnly bool, args map[string]string) error {
	return f.ValidateError
}

// FakeRecorder implements Recorder in memory.
type FakeRecorder struct {
	mu       sync.Mutex
	Finished []types.Operation
	next     int
}

// Begin implements Recorder.
func (f *FakeRecorder) Begin(ctx context.Context, clusterID string, kind types.OperationKind, instances []string) (*types.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return &types.Operation{
		ID:        string(kind) + "-" + strconv.Itoa(f.next),
		ClusterID: clusterID,
		Kind:      kind,
		Status:    types.OperationStatusRunning,
		Instances: instances,
	}, nil
}

// Finish implements Recorder.
func (f *FakeRecorder) Finish(ctx context.Context, op *types.Operation, opErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case opErr == nil:
		op.Status = types.OperationStatusSucceeded
	case types.IsOperationCancelled(opErr):
		op.Status = types.OperationStatusCancelled
	default:
		op.Status = types.OperationStatusFailed
	}
	if opErr != nil {
		op.Error = opErr.Error()
	}
	f.Finished = append(f.Finished, *op)
	return nil
}
