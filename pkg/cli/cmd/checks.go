package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/health"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

func newChecksCmd(opts *rootOptions) *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List the health checks of a cluster",
		Long: `List the health checks derived from the cluster's topology. With
--run every check is executed and its result shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireCluster(); err != nil {
				return err
			}
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			checks, err := a.orch.GetClusterChecks(cmd.Context(), a.cluster)
			if err != nil {
				return err
			}
			if !run {
				return NewResourceTable(a.out).RenderChecks(checks, nil)
			}

			results, err := a.newRunner().Run(cmd.Context(), checks)
			if err != nil {
				return err
			}
			if err := NewResourceTable(a.out).RenderChecks(checks, results); err != nil {
				return err
			}
			if n := len(health.Unhealthy(results)); n > 0 {
				return fmt.Errorf("%d of %d checks failed", n, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "execute the checks")
	return cmd
}

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	var (
		once     bool
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run health checks on a schedule",
		Long: `Run the health checks of every stored cluster, or of the cluster
given with --file, on a cron schedule. Results are exported as
Prometheus metrics on the configured metrics address.

For example:
  herd monitor --once
  herd monitor --schedule "@every 30s"
  herd monitor --schedule "*/5 * * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			monitor := health.NewMonitor(a.builder, a.newRunner(), a.clusterSource(), a.metrics, a.logger)
			if once {
				reports, err := monitor.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return a.printReports(reports)
			}

			if schedule == "" {
				schedule = a.cfg.Monitor.Schedule
			}
			if err := monitor.Schedule(schedule); err != nil {
				return err
			}
			return a.serveMonitor(cmd.Context(), monitor)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run the checks once and exit")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default from config)")
	return cmd
}

func (a *app) newRunner() *health.Runner {
	return health.NewRunner(a.logger,
		health.WithTimeout(a.cfg.Monitor.ProbeTimeout),
		health.WithMetrics(a.metrics),
		health.WithExecutor(a.exec),
	)
}

// clusterSource yields the --file cluster when given, otherwise every
// stored cluster.
func (a *app) clusterSource() health.ClusterSource {
	if a.cluster != nil {
		c := a.cluster
		return func(context.Context) ([]*types.Cluster, error) {
			return []*types.Cluster{c}, nil
		}
	}
	return a.clusters.List
}

func (a *app) printReports(reports []health.Report) error {
	failed := 0
	for _, r := range reports {
		fmt.Fprintf(a.out, "%s %s: %d checks, %d unhealthy\n",
			format.StatusSymbol(r.Unhealthy == 0), r.ClusterID, len(r.Results), r.Unhealthy)
		for _, res := range health.Unhealthy(r.Results) {
			fmt.Fprintf(a.out, "    %s: %s\n", res.Check.Name, res.Message)
		}
		if r.Unhealthy > 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d clusters unhealthy", failed, len(reports))
	}
	return nil
}

// serveMonitor runs the monitor and the metrics endpoint until interrupted.
func (a *app) serveMonitor(ctx context.Context, monitor *health.Monitor) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if addr := a.cfg.Metrics.Addr; addr != "" {
		reg := prometheus.NewRegistry()
		if err := a.metrics.Register(reg); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Metrics server failed", log.Err(err))
			}
		}()
		a.logger.Info("Serving metrics", log.Str("addr", addr))
	}

	monitor.Start()
	a.logger.Info("Health monitor started")
	<-ctx.Done()

	a.logger.Info("Stopping health monitor")
	monitor.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
