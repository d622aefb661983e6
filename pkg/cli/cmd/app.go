package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rzbill/herd/internal/config"
	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/cli/utils"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/configurer"
	"github.com/rzbill/herd/pkg/health"
	"github.com/rzbill/herd/pkg/images"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/metrics"
	"github.com/rzbill/herd/pkg/nodemanager"
	"github.com/rzbill/herd/pkg/orchestrator"
	"github.com/rzbill/herd/pkg/probes"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/store"
	"github.com/rzbill/herd/pkg/types"
	"github.com/rzbill/herd/pkg/validation"
)

// app is everything a command needs, wired from config and flags.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	out     io.Writer
	cluster *types.Cluster

	dist    *catalog.Distribution
	builder *cluster.Builder
	exec    remote.Executor
	metrics *metrics.Metrics
	orch    *orchestrator.Orchestrator

	// set only when the command opened the store
	store    store.Store
	recorder *store.OperationRecorder
	clusters *store.ClusterRepo
}

// newApp loads config and the cluster record, then wires the orchestrator.
// withStore opens the operation store so lifecycle runs are recorded.
func newApp(cmd *cobra.Command, opts *rootOptions, withStore bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	log.SetDefaultLogger(logger)

	a := &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout(), metrics: metrics.New()}

	if opts.clusterFile != "" {
		c, err := utils.LoadCluster(opts.clusterFile)
		if err != nil {
			return nil, err
		}
		applyRepoDefaults(c, cfg.RepoDefaults())
		a.cluster = c
	}

	a.dist, err = loadDistribution(cfg, a.cluster)
	if err != nil {
		return nil, err
	}
	a.builder = cluster.NewBuilder(a.dist, logger)

	var prober probes.Prober
	if cfg.Executor.Mode == config.ExecutorDryRun {
		a.exec = remote.NewDryRun(logger)
		// nothing runs in a dry run, so no instance ever heartbeats
		prober = probes.NewFakeProber(false)
	} else {
		a.exec = remote.NewLocal(cfg.Executor.Root, logger)
		prober = &probes.TCPProber{}
	}

	registry := images.StaticRegistry(cfg.ImageTags())
	var handlerOpts []images.HandlerOption
	if len(registry) > 0 {
		handlerOpts = append(handlerOpts, images.WithRegistry(registry))
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithHealthChecker(health.NewChecker()),
		orchestrator.WithImageHandler(images.NewHandler(a.dist, a.exec, logger, handlerOpts...)),
	}

	if withStore {
		if err := a.openStore(); err != nil {
			return nil, err
		}
		orchOpts = append(orchOpts, orchestrator.WithRecorder(a.recorder))
	}

	a.orch = orchestrator.New(
		a.builder,
		validation.NewValidator(logger, validation.WithRegistry(registry)),
		configurer.New(a.exec, logger,
			configurer.WithConfDir(cfg.ConfDir),
			configurer.WithParallelism(cfg.Parallelism),
		),
		nodemanager.New(a.exec, prober, logger,
			nodemanager.WithHeartbeat(cfg.Heartbeat.Port, cfg.Heartbeat.PollInterval, cfg.Heartbeat.Timeout),
			nodemanager.WithParallelism(cfg.Parallelism),
		),
		orchOpts...,
	)
	return a, nil
}

func (a *app) openStore() error {
	bs := store.NewBadgerStore(a.logger)
	if err := bs.Open(filepath.Join(a.cfg.DataDir, "store")); err != nil {
		return err
	}
	a.store = bs
	a.recorder = store.NewOperationRecorder(bs, a.logger)
	a.clusters = store.NewClusterRepo(bs)
	return nil
}

// Close releases the store, if open.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", log.Err(err))
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.dryRun {
		cfg.Executor.Mode = config.ExecutorDryRun
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes logs to w so that command output stays clean on stdout.
func newLogger(cfg *config.Config, w io.Writer) (log.Logger, error) {
	lc := cfg.Log
	if !format.IsColorEnabled() || !isTerminalWriter(w) {
		lc.DisableColors = true
	}
	return log.ApplyConfig(lc, w)
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && format.IsTerminal(f)
}

// loadDistribution prefers a catalog file, then the version the cluster
// was provisioned with, then the configured version.
func loadDistribution(cfg *config.Config, c *types.Cluster) (*catalog.Distribution, error) {
	if cfg.Distribution.File != "" {
		d, err := catalog.LoadDistributionFile(cfg.Distribution.File)
		if err != nil {
			return nil, err
		}
		if c != nil && c.DistributionVersion != "" && c.DistributionVersion != d.Version {
			return nil, fmt.Errorf("cluster %s uses distribution %s but the catalog file holds %s",
				c.ID, c.DistributionVersion, d.Version)
		}
		return d, nil
	}

	v := cfg.Distribution.Version
	if c != nil && c.DistributionVersion != "" {
		v = c.DistributionVersion
	}
	return catalog.Builtin(v)
}

// applyRepoDefaults fills the repository options the cluster leaves unset.
func applyRepoDefaults(c *types.Cluster, repos map[string]string) {
	if len(repos) == 0 {
		return
	}
	if c.Configs == nil {
		c.Configs = make(map[string]map[string]string)
	}
	general := c.Configs[types.TargetGeneral]
	if general == nil {
		general = make(map[string]string)
		c.Configs[types.TargetGeneral] = general
	}
	for name, url := range repos {
		if _, ok := general[name]; !ok {
			general[name] = url
		}
	}
}
