package health

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/metrics"
	"github.com/rzbill/herd/pkg/probes"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

// Result is the outcome of one executed check.
type Result struct {
	Check    types.CheckDescriptor `json:"check"`
	Healthy  bool                  `json:"healthy"`
	Message  string                `json:"message"`
	Duration time.Duration         `json:"duration"`
}

// Runner executes check descriptors through probes.
type Runner struct {
	probers     map[types.CheckKind]probes.Prober
	executor    remote.Executor
	client      *http.Client
	timeout     time.Duration
	parallelism int
	metrics     *metrics.Metrics
	logger      log.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProbers replaces the TCP and HTTP probers.
func WithProbers(tcp, http probes.Prober) RunnerOption {
	return func(r *Runner) {
		r.probers[types.CheckKindTCP] = tcp
		r.probers[types.CheckKindHTTP] = http
	}
}

// WithExecutor runs exec checks through e. Without one exec checks fail.
func WithExecutor(e remote.Executor) RunnerOption {
	return func(r *Runner) {
		r.executor = e
	}
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMetrics records executed checks.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// NewRunner creates a Runner.
func NewRunner(logger log.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	r := &Runner{
		probers:     make(map[types.CheckKind]probes.Prober),
		timeout:     probes.DefaultTimeout,
		parallelism: 16,
		logger:      logger.WithComponent("health-runner"),
	}
	for _, kind := range []types.CheckKind{types.CheckKindTCP, types.CheckKindHTTP, types.CheckKindExec} {
		r.probers[kind], _ = probes.NewProber(kind)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.client = &http.Client{Timeout: r.timeout}
	return r
}

// Run executes every check concurrently and returns results in the order
// of checks. Cluster-level checks carry their verdict already.
func (r *Runner) Run(ctx context.Context, checks []types.CheckDescriptor) ([]Result, error) {
	results := make([]Result, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			results[i] = r.execute(gctx, check)
			r.metrics.RecordCheck(string(check.Kind), results[i].Healthy)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) execute(ctx context.Context, check types.CheckDescriptor) Result {
	if check.Kind == types.CheckKindCluster {
		return Result{Check: check, Healthy: check.Healthy, Message: check.Message}
	}
	prober, ok := r.probers[check.Kind]
	if !ok {
		prober = r.probers[types.CheckKindTCP]
	}

	res := prober.Execute(&probes.ProbeContext{
		Ctx:        ctx,
		Logger:     r.logger,
		Instance:   &types.Instance{ID: check.InstanceID},
		Host:       check.Host,
		Port:       check.Port,
		Path:       check.Path,
		Command:    check.Command,
		Executor:   r.executor,
		Timeout:    r.timeout,
		HTTPClient: r.client,
	})
	return Result{Check: check, Healthy: res.Success, Message: res.Message, Duration: res.Duration}
}

// Unhealthy returns the failing results.
func Unhealthy(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if !res.Healthy {
			out = append(out, res)
		}
	}
	return out
}
