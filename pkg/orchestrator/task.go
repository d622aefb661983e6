package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is a lifecycle operation running in the background.
type Task struct {
	ID        string
	Kind      types.OperationKind
	ClusterID string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     TaskStatus
	err        error
	finishedAt time.Time
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the task to stop. An operation interrupted this way fails
// with *types.OperationCancelledError.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task's error once it has finished.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Status returns the task's current status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// FinishedAt returns when the task finished, or zero while running.
func (t *Task) FinishedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
	t.finishedAt = time.Now()
	switch {
	case err == nil:
		t.status = TaskStatusCompleted
	case types.IsOperationCancelled(err):
		t.status = TaskStatusCancelled
	default:
		t.status = TaskStatusFailed
	}
}

// Submit runs fn in the background as a task of the given kind. The task
// is cancelled along with ctx.
func (o *Orchestrator) Submit(ctx context.Context, kind types.OperationKind, clusterID string, fn func(context.Context) error) *Task {
	id := uuid.NewString()
	taskCtx, cancel := context.WithCancel(log.WithScope(ctx, log.Scope{Cluster: clusterID, Operation: string(kind), Task: id}))
	t := &Task{
		ID:        id,
		Kind:      kind,
		ClusterID: clusterID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    TaskStatusRunning,
	}

	o.tasksMu.Lock()
	o.tasks[t.ID] = t
	o.tasksMu.Unlock()

	logger := o.logger.WithContext(taskCtx)
	logger.Debug("Task submitted")
	o.metrics.RecordTaskStart()

	go func() {
		defer close(t.done)
		defer cancel()
		defer o.metrics.RecordTaskEnd()

		err := fn(taskCtx)
		if err != nil && taskCtx.Err() != nil && !types.IsOperationCancelled(err) {
			err = &types.OperationCancelledError{Operation: string(kind), Cause: err}
		}
		t.finish(err)

		if err != nil {
			logger.Debug("Task finished with error", log.Err(err))
		} else {
			logger.Debug("Task completed")
		}
	}()

	return t
}

// SubmitScale runs ScaleCluster as a task.
func (o *Orchestrator) SubmitScale(ctx context.Context, c *types.Cluster, instances []*types.Instance) *Task {
	return o.Submit(ctx, types.OperationScaleCluster, clusterID(c), func(ctx context.Context) error {
		return o.ScaleCluster(ctx, c, instances)
	})
}

// SubmitDecommission runs DecommissionNodes as a task.
func (o *Orchestrator) SubmitDecommission(ctx context.Context, c *types.Cluster, instances []*types.Instance) *Task {
	return o.Submit(ctx, types.OperationDecommission, clusterID(c), func(ctx context.Context) error {
		return o.DecommissionNodes(ctx, c, instances)
	})
}

func clusterID(c *types.Cluster) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// Task returns a submitted task by ID.
func (o *Orchestrator) Task(id string) (*Task, bool) {
	o.tasksMu.RLock()
	defer o.tasksMu.RUnlock()
	t, ok := o.tasks[id]
	return t, ok
}

// Tasks returns every submitted task, oldest first.
func (o *Orchestrator) Tasks() []*Task {
	o.tasksMu.RLock()
	out := make([]*Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t)
	}
	o.tasksMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// PruneTasks forgets finished tasks older than age.
func (o *Orchestrator) PruneTasks(age time.Duration) int {
	cutoff := time.Now().Add(-age)
	o.tasksMu.Lock()
	defer o.tasksMu.Unlock()

	n := 0
	for id, t := range o.tasks {
		if f := t.FinishedAt(); !f.IsZero() && f.Before(cutoff) {
			delete(o.tasks, id)
			n++
		}
	}
	return n
}
