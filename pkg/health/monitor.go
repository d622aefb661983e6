package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/metrics"
	"github.com/rzbill/herd/pkg/types"
)

// ClusterSource lists the clusters the monitor checks on every run.
type ClusterSource func(ctx context.Context) ([]*types.Cluster, error)

// Report is the outcome of one monitoring run for one cluster.
type Report struct {
	ClusterID string    `json:"clusterId"`
	CheckedAt time.Time `json:"checkedAt"`
	Results   []Result  `json:"results"`
	Unhealthy int       `json:"unhealthy"`
}

// Monitor periodically derives and runs the checks of every cluster.
type Monitor struct {
	builder *cluster.Builder
	checker *Checker
	runner  *Runner
	source  ClusterSource
	metrics *metrics.Metrics
	logger  log.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc

	mu   sync.RWMutex
	last map[string]Report
}

// NewMonitor creates a monitor. Nothing runs until Schedule and Start.
func NewMonitor(builder *cluster.Builder, runner *Runner, source ClusterSource, m *metrics.Metrics, logger log.Logger) *Monitor {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		builder: builder,
		checker: NewChecker(),
		runner:  runner,
		source:  source,
		metrics: m,
		logger:  logger.WithComponent("health-monitor"),
		// 5-field expressions (minute hour day month weekday) plus descriptors such as @every 1m
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		ctx:    ctx,
		cancel: cancel,
		last:   make(map[string]Report),
	}
}

// Schedule sets the cron expression runs are triggered by, replacing any
// previous one.
func (m *Monitor) Schedule(spec string) error {
	if m.entryID != 0 {
		m.cron.Remove(m.entryID)
		m.entryID = 0
	}
	id, err := m.cron.AddFunc(spec, func() {
		if _, err := m.RunOnce(m.ctx); err != nil {
			m.logger.Error("Health monitoring run failed", log.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", spec, err)
	}
	m.entryID = id
	m.logger.Info("Scheduled health monitoring", log.Str("schedule", spec))
	return nil
}

// Start begins triggering scheduled runs.
func (m *Monitor) Start() {
	m.cron.Start()
}

// Stop halts scheduling and cancels an in-flight run.
func (m *Monitor) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
}

// RunOnce checks every cluster from the source and stores the reports.
func (m *Monitor) RunOnce(ctx context.Context) ([]Report, error) {
	clusters, err := m.source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	reports := make([]Report, 0, len(clusters))
	for _, c := range clusters {
		report, err := m.check(ctx, c)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (m *Monitor) check(ctx context.Context, c *types.Cluster) (Report, error) {
	cc := m.builder.Build(c)
	results, err := m.runner.Run(ctx, m.checker.GetChecks(cc))
	if err != nil {
		return Report{}, err
	}

	unhealthy := Unhealthy(results)
	report := Report{
		ClusterID: c.ID,
		CheckedAt: time.Now(),
		Results:   results,
		Unhealthy: len(unhealthy),
	}
	m.metrics.SetUnhealthy(c.ID, len(unhealthy))

	for _, res := range unhealthy {
		m.logger.Warn("Health check failed",
			log.Cluster(c.ID), log.Str("check", res.Check.Name), log.Str("message", res.Message))
	}

	m.mu.Lock()
	m.last[c.ID] = report
	m.mu.Unlock()
	return report, nil
}

// Last returns the most recent report for a cluster.
func (m *Monitor) Last(clusterID string) (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[clusterID]
	return r, ok
}
