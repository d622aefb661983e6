package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// Call is one invocation recorded by the DryRun executor.
type Call struct {
	InstanceID string
	Command    string
	Path       string
	Data       []byte
}

// DryRun logs every call instead of reaching an instance. Commands
// succeed unless a failure was registered for them with FailOn.
type DryRun struct {
	logger log.Logger

	mu       sync.Mutex
	calls    []Call
	failures map[string]Result
	outputs  map[string]string
	badPaths map[string]struct{}
}

// NewDryRun creates a DryRun executor.
func NewDryRun(logger log.Logger) *DryRun {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &DryRun{
		logger:   logger.WithComponent("dry-run"),
		failures: make(map[string]Result),
		outputs:  make(map[string]string),
		badPaths: make(map[string]struct{}),
	}
}

// FailOn makes commands on the instance containing substr exit with code.
// An empty instance ID matches every instance.
func (d *DryRun) FailOn(instanceID, substr string, code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[instanceID+"\x00"+substr] = Result{ExitCode: code, Stderr: "dry-run failure"}
}

// FailWriteOn makes writes to paths containing substr on the instance
// fail. An empty instance ID matches every instance.
func (d *DryRun) FailWriteOn(instanceID, substr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.badPaths[instanceID+"\x00"+substr] = struct{}{}
}

// RespondWith sets the stdout returned for commands containing substr.
func (d *DryRun) RespondWith(substr, stdout string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs[substr] = stdout
}

// Execute implements Executor.
func (d *DryRun) Execute(ctx context.Context, inst *types.Instance, command string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	d.mu.Lock()
	d.calls = append(d.calls, Call{InstanceID: inst.ID, Command: command})
	res := Result{}
	for substr, out := range d.outputs {
		if strings.Contains(command, substr) {
			res.Stdout = out
		}
	}
	for key, failure := range d.failures {
		id, substr, _ := strings.Cut(key, "\x00")
		if (id == "" || id == inst.ID) && strings.Contains(command, substr) {
			res = failure
		}
	}
	d.mu.Unlock()

	d.logger.Info("Would execute", log.Str("instance", inst.ID), log.Str("command", command))
	if res.ExitCode != 0 {
		return res, &CommandError{InstanceID: inst.ID, Command: command, Result: res}
	}
	return res, nil
}

// WriteFile implements Executor.
func (d *DryRun) WriteFile(ctx context.Context, inst *types.Instance, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.calls = append(d.calls, Call{InstanceID: inst.ID, Path: path, Data: append([]byte(nil), data...)})
	var failed bool
	for key := range d.badPaths {
		id, substr, _ := strings.Cut(key, "\x00")
		if (id == "" || id == inst.ID) && strings.Contains(path, substr) {
			failed = true
		}
	}
	d.mu.Unlock()

	if failed {
		return fmt.Errorf("dry-run write of %s on %s failed", path, inst.ID)
	}

	d.logger.Info("Would write file", log.Str("instance", inst.ID), log.Str("path", path), log.Int("bytes", len(data)))
	return nil
}

// Calls returns a copy of the recorded calls in invocation order.
func (d *DryRun) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CommandsOn returns the commands executed on one instance.
func (d *DryRun) CommandsOn(instanceID string) []string {
	var out []string
	for _, c := range d.Calls() {
		if c.InstanceID == instanceID && c.Command != "" {
			out = append(out, c.Command)
		}
	}
	return out
}

// File returns the last content written to path on the instance.
func (d *DryRun) File(instanceID, path string) ([]byte, bool) {
	calls := d.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].InstanceID == instanceID && calls[i].Path == path {
			return calls[i].Data, true
		}
	}
	return nil, false
}

// Reset forgets recorded calls.
func (d *DryRun) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}
