// Package probes executes network and command probes against cluster
// instances.
package probes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

// DefaultTimeout bounds a single probe when the context sets none.
const DefaultTimeout = 5 * time.Second

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Success  bool
	Message  string
	Duration time.Duration
}

// ProbeContext carries everything a prober needs. Ctx bounds the probe
// together with Timeout.
type ProbeContext struct {
	Ctx context.Context

	Logger log.Logger

	// Instance being probed; Host overrides its address when set
	Instance *types.Instance
	Host     string

	Port    int
	Path    string
	Command string
	Timeout time.Duration

	// HTTPClient is shared across HTTP probes when set
	HTTPClient *http.Client

	// Executor runs exec probes
	Executor remote.Executor
}

func (c *ProbeContext) host() string {
	if c.Host != "" {
		return c.Host
	}
	if c.Instance != nil {
		return c.Instance.Address()
	}
	return "localhost"
}

func (c *ProbeContext) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *ProbeContext) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.GetDefaultLogger()
}

// Prober executes one kind of check.
type Prober interface {
	Execute(ctx *ProbeContext) ProbeResult
}

// ExecProber runs the check command on the instance through the
// executor and succeeds on exit code 0.
type ExecProber struct{}

func (p *ExecProber) Execute(ctx *ProbeContext) ProbeResult {
	start := time.Now()
	switch {
	case ctx.Command == "":
		return failed(start, "exec probe has no command specified")
	case ctx.Executor == nil || ctx.Instance == nil:
		return failed(start, "exec probe has no executor or instance")
	}

	execCtx, cancel := context.WithTimeout(ctx.Ctx, ctx.timeout())
	defer cancel()

	res, err := ctx.Executor.Execute(execCtx, ctx.Instance, ctx.Command)
	if err != nil {
		return failed(start, "%q on %s failed with exit code %d: %v", ctx.Command, ctx.Instance.ID, res.ExitCode, err)
	}
	return succeeded(start, "%q on %s exited 0", ctx.Command, ctx.Instance.ID)
}

func failed(start time.Time, format string, args ...interface{}) ProbeResult {
	return ProbeResult{Message: fmt.Sprintf(format, args...), Duration: time.Since(start)}
}

func succeeded(start time.Time, format string, args ...interface{}) ProbeResult {
	return ProbeResult{Success: true, Message: fmt.Sprintf(format, args...), Duration: time.Since(start)}
}

// NewProber returns the prober that executes checks of kind. Cluster
// checks carry their verdict and have none.
func NewProber(kind types.CheckKind) (Prober, error) {
	switch kind {
	case types.CheckKindHTTP:
		return &HTTPProber{}, nil
	case types.CheckKindTCP:
		return &TCPProber{}, nil
	case types.CheckKindExec:
		return &ExecProber{}, nil
	default:
		return nil, fmt.Errorf("no prober for %s checks", kind)
	}
}
