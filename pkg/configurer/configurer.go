// Package configurer lays down and reconciles service configuration on
// cluster instances.
package configurer

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

// Default locations and limits.
const (
	DefaultConfDir     = "/opt/herd/conf"
	DefaultParallelism = 8
	TopologyFile       = "topology.yaml"
	ReposFile          = "repos.list"
)

// Configurer pushes configuration artifacts to instances.
type Configurer struct {
	exec        remote.Executor
	logger      log.Logger
	confDir     string
	parallelism int
	refresh     string
}

// Option configures a Configurer.
type Option func(*Configurer)

// WithConfDir sets the directory artifacts are written to on instances.
func WithConfDir(dir string) Option {
	return func(c *Configurer) {
		c.confDir = dir
	}
}

// WithParallelism bounds how many instances are configured at once.
func WithParallelism(n int) Option {
	return func(c *Configurer) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithRefreshCommand sets the command Update runs on reconciled
// instances after rewriting their topology. Empty disables it.
func WithRefreshCommand(cmd string) Option {
	return func(c *Configurer) {
		c.refresh = cmd
	}
}

// New creates a Configurer.
func New(exec remote.Executor, logger log.Logger, opts ...Option) *Configurer {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	c := &Configurer{
		exec:        exec,
		logger:      logger.WithComponent("configurer"),
		confDir:     DefaultConfDir,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure writes the topology file, the properties of every service the
// instance hosts, and the repository list to each instance. With no
// instances given every active instance is configured.
func (c *Configurer) Configure(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	if len(instances) == 0 {
		instances = cc.ActiveInstances()
	}
	topology, err := BuildTopology(cc).Render()
	if err != nil {
		return err
	}
	repos := RenderRepos(cc)

	c.logger.WithContext(ctx).Info("Configuring instances", log.Int("instances", len(instances)))

	return c.forEach(ctx, instances, func(ctx context.Context, inst *types.Instance) error {
		if err := c.exec.WriteFile(ctx, inst, path.Join(c.confDir, TopologyFile), topology); err != nil {
			return err
		}
		for _, s := range hostedServices(cc, inst) {
			if len(s.Configs) == 0 {
				continue
			}
			file := path.Join(c.confDir, "services", PropertiesFile(s))
			if err := c.exec.WriteFile(ctx, inst, file, RenderProperties(cc, s)); err != nil {
				return err
			}
		}
		if len(repos) > 0 {
			if err := c.exec.WriteFile(ctx, inst, path.Join(c.confDir, ReposFile), repos); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update reconciles the instances untouched by the operation against the
// new topology. changed names the instances the operation added or
// removed and is used for logging only.
func (c *Configurer) Update(ctx context.Context, cc *cluster.Context, changed ...*types.Instance) error {
	targets := cc.ExistingInstances()
	topology, err := BuildTopology(cc).Render()
	if err != nil {
		return err
	}

	c.logger.WithContext(ctx).Info("Updating existing instances",
		log.Int("instances", len(targets)),
		log.Strs("changed", types.InstanceIDs(changed)))

	return c.forEach(ctx, targets, func(ctx context.Context, inst *types.Instance) error {
		if err := c.exec.WriteFile(ctx, inst, path.Join(c.confDir, TopologyFile), topology); err != nil {
			return err
		}
		if c.refresh == "" {
			return nil
		}
		_, err := c.exec.Execute(ctx, inst, c.refresh)
		return err
	})
}

// PostStart runs each cluster service's post-start commands once, on the
// first instance hosting the service.
func (c *Configurer) PostStart(ctx context.Context, cc *cluster.Context) error {
	logger := c.logger.WithContext(ctx)
	for _, s := range cc.ClusterServices() {
		if len(s.PostStart) == 0 {
			continue
		}
		hosts := cc.InstancesOf(firstHosted(cc, s))
		if len(hosts) == 0 {
			logger.Debug("No host for post-start hook", log.Str("service", s.String()))
			continue
		}
		host := hosts[0]
		for _, cmd := range s.PostStart {
			logger.Info("Running post-start hook",
				log.Str("service", s.String()), log.Str("instance", host.ID))
			if _, err := c.exec.Execute(ctx, host, cmd); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &types.ConfigError{Instances: []string{host.ID}, Err: fmt.Errorf("post-start of %s: %w", s, err)}
			}
		}
	}
	return nil
}

// forEach runs fn for every instance with bounded concurrency and reports
// every failing instance in one ConfigError.
func (c *Configurer) forEach(ctx context.Context, instances []*types.Instance, fn func(context.Context, *types.Instance) error) error {
	var (
		mu     sync.Mutex
		failed []string
		errs   error
	)

	g := new(errgroup.Group)
	g.SetLimit(c.parallelism)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			if err := fn(ctx, inst); err != nil {
				c.logger.WithContext(ctx).Warn("Instance configuration failed", log.Str("instance", inst.ID), log.Err(err))
				mu.Lock()
				failed = append(failed, inst.ID)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", inst.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return &types.ConfigError{Instances: failed, Err: errs}
	}
	return nil
}

// PropertiesFile returns the properties file name of a service.
func PropertiesFile(s *catalog.Service) string {
	return strings.ToLower(strings.ReplaceAll(s.UIName, " ", "-")) + ".properties"
}

func hostedServices(cc *cluster.Context, inst *types.Instance) []*catalog.Service {
	var out []*catalog.Service
	processes := cc.ProcessesOn(inst)
	for _, s := range cc.ClusterServices() {
		for _, p := range processes {
			if s.HasProcess(p) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// firstHosted returns the first process of s with an active instance.
func firstHosted(cc *cluster.Context, s *catalog.Service) string {
	for _, p := range s.ProcessNames() {
		if len(cc.InstancesOf(p)) > 0 {
			return p
		}
	}
	return ""
}
