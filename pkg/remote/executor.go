// Package remote runs commands and writes files on cluster instances.
package remote

import (
	"context"
	"fmt"

	"github.com/rzbill/herd/pkg/types"
)

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands on, and writes files to, cluster instances. The
// transport behind it (ssh, agent, local shell) is the implementation's
// concern.
type Executor interface {
	// Execute runs a shell command on the instance. A non-zero exit code is
	// reported as a *CommandError.
	Execute(ctx context.Context, inst *types.Instance, command string) (Result, error)

	// WriteFile replaces the file at path on the instance with data.
	WriteFile(ctx context.Context, inst *types.Instance, path string, data []byte) error
}

// CommandError reports a command that exited with a non-zero status.
type CommandError struct {
	InstanceID string
	Command    string
	Result     Result
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with %d", e.Command, e.InstanceID, e.Result.ExitCode)
	if e.Result.Stderr != "" {
		msg += ": " + e.Result.Stderr
	}
	return msg
}
