package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

// Local runs every instance's commands in a local shell and writes files
// below a per-instance directory. It backs single-host sandboxes where all
// instances are simulated on the machine running herd.
type Local struct {
	root   string
	shell  string
	logger log.Logger
}

// LocalOption configures a Local executor.
type LocalOption func(*Local)

// WithShell sets the shell used to run commands. Defaults to /bin/sh.
func WithShell(shell string) LocalOption {
	return func(l *Local) {
		l.shell = shell
	}
}

// NewLocal creates a Local executor rooted at dir.
func NewLocal(dir string, logger log.Logger, opts ...LocalOption) *Local {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	l := &Local{root: dir, shell: "/bin/sh", logger: logger.WithComponent("local-executor")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InstanceDir returns the directory standing in for the instance's
// filesystem root.
func (l *Local) InstanceDir(inst *types.Instance) string {
	return filepath.Join(l.root, inst.ID)
}

// Execute implements Executor. The command runs with the instance
// directory as working directory and HERD_INSTANCE_* set in its env.
func (l *Local) Execute(ctx context.Context, inst *types.Instance, command string) (Result, error) {
	dir := l.InstanceDir(inst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create instance dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.shell, "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"HERD_INSTANCE_ID="+inst.ID,
		"HERD_INSTANCE_HOSTNAME="+inst.Hostname,
		"HERD_INSTANCE_IP="+inst.Address(),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("Executing command", log.Str("instance", inst.ID), log.Str("command", command))

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &CommandError{InstanceID: inst.ID, Command: command, Result: res}
		}
		return res, fmt.Errorf("failed to run command on %s: %w", inst.ID, err)
	}
	return res, nil
}

// WriteFile implements Executor.
func (l *Local) WriteFile(ctx context.Context, inst *types.Instance, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(l.InstanceDir(inst), filepath.Clean("/"+path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s on %s: %w", path, inst.ID, err)
	}
	return nil
}
