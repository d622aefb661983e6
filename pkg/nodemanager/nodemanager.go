// Package nodemanager starts, stops and retires cluster nodes.
package nodemanager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/probes"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

// Process names the start order depends on.
const (
	ZooKeeper = "ZooKeeper"
	CLDB      = "CLDB"

	ZooKeeperPort = 5181
)

// Commands run on instances.
const (
	StartZooKeeperCommand = "service mapr-zookeeper start"
	StopZooKeeperCommand  = "service mapr-zookeeper stop"
	StartWardenCommand    = "service mapr-warden start"
	StopWardenCommand     = "service mapr-warden stop"

	DecommissionedTopology = "/decommissioned"
)

// Defaults for the quiescence wait.
const (
	DefaultHeartbeatPort = 5660
	DefaultPollInterval  = time.Second
	DefaultTimeout       = 5 * time.Minute
	DefaultParallelism   = 8
)

// Manager controls node services through a remote executor and watches
// node heartbeats through a prober.
type Manager struct {
	exec   remote.Executor
	prober probes.Prober
	logger log.Logger

	heartbeatPort int
	pollInterval  time.Duration
	timeout       time.Duration
	parallelism   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeartbeat sets the port probed for liveness, the interval between
// polls and the bound on the whole wait.
func WithHeartbeat(port int, interval, timeout time.Duration) Option {
	return func(m *Manager) {
		if port > 0 {
			m.heartbeatPort = port
		}
		if interval > 0 {
			m.pollInterval = interval
		}
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithParallelism bounds how many instances are acted on at once.
func WithParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// New creates a node manager.
func New(exec remote.Executor, prober probes.Prober, logger log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	if prober == nil {
		prober = &probes.TCPProber{}
	}
	m := &Manager{
		exec:          exec,
		prober:        prober,
		logger:        logger.WithComponent("node-manager"),
		heartbeatPort: DefaultHeartbeatPort,
		pollInterval:  DefaultPollInterval,
		timeout:       DefaultTimeout,
		parallelism:   DefaultParallelism,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start brings services up: ZooKeeper first, then the warden on CLDB
// nodes, then the warden everywhere else. With no instances given every
// active instance is started.
func (m *Manager) Start(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	if len(instances) == 0 {
		instances = cc.ActiveInstances()
	}
	zk, cldb, rest := phases(cc, instances)

	m.logger.WithContext(ctx).Info("Starting nodes", log.Int("instances", len(instances)))
	if err := m.run(ctx, zk, StartZooKeeperCommand); err != nil {
		return err
	}
	if err := m.run(ctx, cldb, StartWardenCommand); err != nil {
		return err
	}
	return m.run(ctx, rest, StartWardenCommand)
}

// Stop brings services down in the reverse order of Start.
func (m *Manager) Stop(ctx context.Context, cc *cluster.Context, instances ...*types.Instance) error {
	if len(instances) == 0 {
		instances = cc.ActiveInstances()
	}
	zk, cldb, rest := phases(cc, instances)

	m.logger.WithContext(ctx).Info("Stopping nodes", log.Strs("instances", types.InstanceIDs(instances)))
	if err := m.run(ctx, rest, StopWardenCommand); err != nil {
		return err
	}
	if err := m.run(ctx, cldb, StopWardenCommand); err != nil {
		return err
	}
	return m.run(ctx, zk, StopZooKeeperCommand)
}

// MoveNodes moves the instances to the decommissioned topology so the
// file system drains their data.
func (m *Manager) MoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	host, err := controlHost(cc)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("maprcli node move -nodes %s -topology %s", hostnames(instances), DecommissionedTopology)
	m.logger.WithContext(ctx).Info("Moving nodes", log.Str("via", host.ID), log.Strs("instances", types.InstanceIDs(instances)))
	_, err = m.exec.Execute(ctx, host, cmd)
	return err
}

// RemoveNodes unregisters the instances from the cluster.
func (m *Manager) RemoveNodes(ctx context.Context, cc *cluster.Context, instances []*types.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	host, err := controlHost(cc)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("maprcli node remove -nodes %s", hostnames(instances))
	if zk := zkConnect(cc); zk != "" {
		cmd += " -zkconnect " + zk
	}
	m.logger.WithContext(ctx).Info("Removing nodes", log.Str("via", host.ID), log.Strs("instances", types.InstanceIDs(instances)))
	_, err = m.exec.Execute(ctx, host, cmd)
	return err
}

// AwaitNoHeartbeat blocks until none of the context's removed instances
// answers on the heartbeat port. Polls are paced by a rate limiter. When
// the bound elapses first a *types.TimeoutError lists the instances still
// alive; cancellation of ctx returns its error.
func (m *Manager) AwaitNoHeartbeat(ctx context.Context, cc *cluster.Context) error {
	pending := append([]*types.Instance(nil), cc.RemovedInstances()...)
	if len(pending) == 0 {
		return nil
	}

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(m.pollInterval), 1)

	logger := m.logger.WithContext(ctx)
	logger.Info("Waiting for heartbeats to stop",
		log.Strs("instances", types.InstanceIDs(pending)), log.Duration("timeout", m.timeout))

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			return waitError(ctx, start, pending)
		}
		still := m.alive(waitCtx, pending)
		if waitCtx.Err() != nil {
			return waitError(ctx, start, pending)
		}
		pending = still
		if len(pending) == 0 {
			logger.Info("No heartbeat observed", log.Duration("waited", time.Since(start)))
			return nil
		}
	}
}

func waitError(ctx context.Context, start time.Time, pending []*types.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &types.TimeoutError{
		Operation: "await_no_heartbeat",
		Waited:    time.Since(start),
		Instances: types.InstanceIDs(pending),
	}
}

func (m *Manager) alive(ctx context.Context, instances []*types.Instance) []*types.Instance {
	var out []*types.Instance
	for _, inst := range instances {
		res := m.prober.Execute(&probes.ProbeContext{
			Ctx:      ctx,
			Logger:   m.logger,
			Instance: inst,
			Port:     m.heartbeatPort,
			Timeout:  m.pollInterval,
		})
		if res.Success {
			out = append(out, inst)
		}
	}
	return out
}

// run executes cmd on every instance, at most parallelism at a time,
// stopping at the first failure.
func (m *Manager) run(ctx context.Context, instances []*types.Instance, cmd string) error {
	if len(instances) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			if _, err := m.exec.Execute(gctx, inst, cmd); err != nil {
				return fmt.Errorf("%s on %s: %w", cmd, inst.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ErrNoControlHost is returned when no active CLDB node can run cluster
// administration commands.
var ErrNoControlHost = errors.New("no active CLDB node")

func controlHost(cc *cluster.Context) (*types.Instance, error) {
	hosts := cc.InstancesOf(CLDB)
	if len(hosts) == 0 {
		return nil, ErrNoControlHost
	}
	return hosts[0], nil
}

func phases(cc *cluster.Context, instances []*types.Instance) (zk, cldb, rest []*types.Instance) {
	for _, inst := range instances {
		ng := cc.NodeGroupOf(inst)
		if ng != nil && ng.HasProcess(ZooKeeper) {
			zk = append(zk, inst)
		}
		if ng != nil && ng.HasProcess(CLDB) {
			cldb = append(cldb, inst)
		} else {
			rest = append(rest, inst)
		}
	}
	return zk, cldb, rest
}

func hostnames(instances []*types.Instance) string {
	names := make([]string, len(instances))
	for i, inst := range instances {
		names[i] = inst.Hostname
	}
	return strings.Join(names, ",")
}

func zkConnect(cc *cluster.Context) string {
	var addrs []string
	for _, inst := range cc.InstancesOf(ZooKeeper) {
		addrs = append(addrs, net.JoinHostPort(inst.Address(), strconv.Itoa(ZooKeeperPort)))
	}
	return strings.Join(addrs, ",")
}
