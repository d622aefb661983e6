package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/types"
)

type fixture struct {
	orch       *Orchestrator
	log        *CallLog
	validator  *FakeValidator
	configurer *FakeConfigurer
	nodes      *FakeNodeManager
	recorder   *FakeRecorder
	logger     *log.TestLogger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	d, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)

	f := &fixture{log: &CallLog{}, recorder: &FakeRecorder{}, logger: log.NewTestLogger()}
	f.validator = &FakeValidator{Log: f.log}
	f.configurer = &FakeConfigurer{Log: f.log}
	f.nodes = &FakeNodeManager{Log: f.log}

	opts = append([]Option{WithRecorder(f.recorder), WithLogger(f.logger)}, opts...)
	f.orch = New(cluster.NewBuilder(d, f.logger), f.validator, f.configurer, f.nodes, opts...)
	return f
}

func testCluster(id string) *types.Cluster {
	return cluster.NewTestCluster(id,
		cluster.NewTestNodeGroup("master", 1, "Webserver", "CLDB", "ZooKeeper", "FileServer", "ResourceManager"),
		cluster.NewTestNodeGroup("worker", 3, "FileServer", "NodeManager"),
	)
}

func TestScaleClusterOrder(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	added := c.NodeGroups[1].Instances[1:]

	require.NoError(t, f.orch.ScaleCluster(context.Background(), c, added))

	assert.Equal(t, []string{"configure", "update", "start"}, f.log.Names())
	for _, call := range f.log.Calls() {
		assert.Equal(t, []string{"worker-1", "worker-2"}, call.Instances, call.Name)
		assert.Equal(t, 1, call.Generation, "%s runs on an invalidated context", call.Name)
		assert.Equal(t, log.Scope{Cluster: "c1", Operation: string(types.OperationScaleCluster)}, call.Scope)
	}
}

func TestScaleClusterStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	cfgErr := &types.ConfigError{Instances: []string{"worker-2"}, Err: errors.New("disk full")}
	f.configurer.UpdateError = cfgErr

	err := f.orch.ScaleCluster(context.Background(), c, c.NodeGroups[1].Instances[2:])

	assert.Same(t, cfgErr, err, "collaborator errors are returned unchanged")
	assert.Equal(t, []string{"configure", "update"}, f.log.Names())
	require.Len(t, f.recorder.Finished, 1)
	assert.Equal(t, types.OperationStatusFailed, f.recorder.Finished[0].Status)
}

func TestDecommissionNodesOrder(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	removed := c.NodeGroups[1].Instances[:1]

	require.NoError(t, f.orch.DecommissionNodes(context.Background(), c, removed))

	assert.Equal(t, []string{"move_nodes", "stop", "await_no_heartbeat", "remove_nodes", "update"}, f.log.Names())
	for _, call := range f.log.Calls() {
		assert.Equal(t, []string{"worker-0"}, call.Instances, call.Name)
		assert.Equal(t, 1, call.Generation, call.Name)
	}
}

func TestDecommissionTimeoutSkipsRemoval(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	f.nodes.AwaitError = &types.TimeoutError{Operation: "await_no_heartbeat", Waited: time.Minute, Instances: []string{"worker-0"}}

	err := f.orch.DecommissionNodes(context.Background(), c, c.NodeGroups[1].Instances[:1])

	assert.True(t, types.IsTimeoutError(err))
	assert.Equal(t, []string{"move_nodes", "stop", "await_no_heartbeat"}, f.log.Names())
}

func TestStartCluster(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")

	require.NoError(t, f.orch.StartCluster(context.Background(), c))
	assert.Equal(t, []string{"start", "post_start"}, f.log.Names())
	assert.Empty(t, f.log.Calls()[0].Instances, "start covers every instance")
}

func TestStartClusterSkipsPostStartOnFailure(t *testing.T) {
	f := newFixture(t)
	f.nodes.StartError = errors.New("warden failed")

	err := f.orch.StartCluster(context.Background(), testCluster("c1"))

	assert.EqualError(t, err, "warden failed")
	assert.Equal(t, []string{"start"}, f.log.Names())
}

func TestConfigureCluster(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.orch.ConfigureCluster(context.Background(), testCluster("c1")))
	assert.Equal(t, []string{"configure"}, f.log.Names())
	assert.Empty(t, f.log.Calls()[0].Instances, "configure covers every active instance")

	require.Len(t, f.recorder.Finished, 1)
	assert.Equal(t, []string{"master-0", "worker-0", "worker-1", "worker-2"}, f.recorder.Finished[0].Instances)
	assert.Equal(t, types.OperationStatusSucceeded, f.recorder.Finished[0].Status)
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	verr := types.NewValidationError("cluster should contain at least 1 CLDB component(s), actual CLDB count is 0")
	f.validator.ValidateError = verr

	err := f.orch.Validate(context.Background(), testCluster("c1"))
	assert.Same(t, verr, err)
	assert.True(t, f.logger.AssertLogged(log.ErrorLevel, "Operation failed"))
}

func TestValidateScaling(t *testing.T) {
	f := newFixture(t)
	existing := map[string]int{"worker": 5}
	additional := map[string]int{"edge": 1}

	require.NoError(t, f.orch.ValidateScaling(context.Background(), testCluster("c1"), existing, additional))
	assert.Equal(t, existing, f.validator.Existing)
	assert.Equal(t, additional, f.validator.Additional)
	assert.Equal(t, []string{"validate_scaling"}, f.log.Names())
}

func TestGetOpenPorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ports, err := f.orch.GetOpenPorts(ctx, cluster.NewTestNodeGroup("hive", 1, "HiveMetastore", "HiveServer2"))
	require.NoError(t, err)
	assert.Equal(t, []int{9083, 10000, 10002}, ports, "ports of both Hive versions, deduplicated")

	ports, err = f.orch.GetOpenPorts(ctx, cluster.NewTestNodeGroup("empty", 1, "NoSuchProcess"))
	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestConfigsScenario(t *testing.T) {
	d, err := catalog.LoadDistribution([]byte(`
version: "test"
services:
  - name: Hadoop
    version: "2.0"
    configs:
      - {name: a, target: Hadoop, scope: cluster, type: string}
      - {name: b, target: Hadoop, scope: cluster, type: string}
  - name: Hadoop
    version: "3.0"
    default: true
    configs:
      - {name: c, target: Hadoop, scope: cluster, type: string}
  - name: Oozie
    version: "4.2"
    configs:
      - {name: d, target: Oozie, scope: cluster, type: string}
`))
	require.NoError(t, err)
	o := New(cluster.NewBuilder(d, nil), &FakeValidator{}, &FakeConfigurer{}, &FakeNodeManager{})

	configs, err := o.Configs(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, configs, 2+1+1+1+4)

	again, err := o.Configs(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, configs, again)
}

func TestCatalogQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testCluster("c1")

	assert.NotEmpty(t, f.orch.Services())

	required, err := f.orch.RequiredServices(ctx, c)
	require.NoError(t, err)
	assert.Len(t, required, 4)

	np, err := f.orch.NodeProcesses(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLDB", "FileServer", "NFS"}, np["MapRFS"])

	dict, err := f.orch.ConfigsDict(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "8192", dict["YARN"]["yarn.nodemanager.resource.memory-mb"])

	services, err := f.orch.ClusterServices(ctx, c)
	require.NoError(t, err)
	var names []string
	for _, s := range services {
		names = append(names, s.UIName)
	}
	assert.Equal(t, []string{"Management", "MapRFS", "ZooKeeper", "YARN"}, names)
}

func TestGetClusterChecks(t *testing.T) {
	f := newFixture(t)

	checks, err := f.orch.GetClusterChecks(context.Background(), testCluster("c1"))
	require.NoError(t, err)
	require.NotEmpty(t, checks)
	assert.Equal(t, "Webserver on master-0.test", checks[0].Name)
	assert.Empty(t, f.log.Names(), "checks are derived, not executed")
}

func TestJobEngines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := testCluster("c1")
	c.NodeGroups = append(c.NodeGroups, cluster.NewTestNodeGroup("oozie", 1, "Oozie"))

	assert.Contains(t, f.orch.JobTypes(), types.JobTypeSpark)

	engine, err := f.orch.ResolveJobEngine(ctx, c, types.JobTypeHive)
	require.NoError(t, err)
	assert.Equal(t, "c1", engine.ClusterID)

	_, err = f.orch.ResolveJobEngine(ctx, c, "Storm")
	assert.ErrorIs(t, err, types.ErrUnsupportedJobType)

	hints, err := f.orch.JobConfigHints(types.JobTypeJava)
	require.NoError(t, err)
	assert.NotEmpty(t, hints.Configs)
}

func TestImageOperationsWithoutHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.False(t, f.orch.HasImageHandler())

	_, err := f.orch.ImageArguments()
	assert.ErrorIs(t, err, types.ErrCapabilityUnavailable)
	assert.ErrorIs(t, f.orch.PackImage(ctx, &types.Instance{ID: "i-1"}, true, nil), types.ErrCapabilityUnavailable)
	assert.ErrorIs(t, f.orch.ValidateImages(ctx, testCluster("c1"), true, nil), types.ErrCapabilityUnavailable)
}

func TestImageOperationsWithHandler(t *testing.T) {
	images := &FakeImageHandler{Args: []types.ImageArgument{{Name: "java_distro"}}}
	f := newFixture(t, WithImageHandler(images))
	ctx := context.Background()

	args, err := f.orch.ImageArguments()
	require.NoError(t, err)
	assert.Equal(t, "java_distro", args[0].Name)

	require.NoError(t, f.orch.PackImage(ctx, &types.Instance{ID: "i-1"}, false, nil))
	assert.Equal(t, []string{"i-1"}, images.Packed)

	images.ValidateError = types.NewValidationError("image on i-1 is missing mapr-core")
	assert.True(t, types.IsValidationError(f.orch.ValidateImages(ctx, testCluster("c1"), true, nil)))
}

func TestOperationsOnOneClusterDoNotInterleave(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.nodes.AwaitFunc = func(ctx context.Context, cc *cluster.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- f.orch.DecommissionNodes(context.Background(), c, c.NodeGroups[1].Instances[:1])
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.orch.Validate(ctx, c), context.DeadlineExceeded)

	_, err := f.orch.Configs(ctx, c)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "queries wait for lifecycle operations")

	other := testCluster("c2")
	assert.NoError(t, f.orch.Validate(context.Background(), other), "other clusters are not blocked")

	close(release)
	require.NoError(t, <-done)
}

func TestReadQueriesShareTheLock(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	ctx := context.Background()

	unlock, err := f.orch.locks.rlock(ctx, c.ID)
	require.NoError(t, err)
	defer unlock()

	_, err = f.orch.Configs(ctx, c)
	assert.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.orch.StartCluster(short, c), context.DeadlineExceeded)
	assert.Empty(t, f.log.Names())
}

func TestNilClusterIsAValidationError(t *testing.T) {
	f := newFixture(t, WithImageHandler(&FakeImageHandler{}))
	ctx := context.Background()

	ops := map[string]func() error{
		"validate":         func() error { return f.orch.Validate(ctx, nil) },
		"validate_scaling": func() error { return f.orch.ValidateScaling(ctx, nil, map[string]int{"worker": 2}, nil) },
		"configure":        func() error { return f.orch.ConfigureCluster(ctx, nil) },
		"start":            func() error { return f.orch.StartCluster(ctx, nil) },
		"scale":            func() error { return f.orch.ScaleCluster(ctx, nil, nil) },
		"decommission":     func() error { return f.orch.DecommissionNodes(ctx, nil, nil) },
		"validate_images":  func() error { return f.orch.ValidateImages(ctx, nil, true, nil) },
		"submit":           func() error { return f.orch.SubmitScale(ctx, nil, nil).Wait(ctx) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { err = op() })
			var ve *types.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Error(), "needs a cluster")
		})
	}
	assert.Empty(t, f.log.Names())

	_, err := f.orch.Configs(ctx, nil)
	assert.NoError(t, err, "queries fall back to the catalog")
}

func TestLockTableDropsIdleClusters(t *testing.T) {
	table := newLockTable()
	ctx := context.Background()

	unlock, err := table.lock(ctx, "c1")
	require.NoError(t, err)
	runlock, err := table.rlock(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 2, table.size())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = table.rlock(short, "c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, table.size(), "a held lock stays after a failed wait")

	unlock()
	unlock()
	runlock()
	assert.Equal(t, 0, table.size())

	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.orch.Validate(ctx, testCluster(id)))
	}
	assert.Equal(t, 0, f.orch.locks.size())
}

func TestSubmitCompletes(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")

	task := f.orch.SubmitScale(context.Background(), c, c.NodeGroups[1].Instances[2:])
	require.NoError(t, task.Wait(context.Background()))
	assert.Equal(t, TaskStatusCompleted, task.Status())
	assert.Equal(t, types.OperationScaleCluster, task.Kind)
	for _, call := range f.log.Calls() {
		assert.Equal(t, task.ID, call.Scope.Task, "%s sees the task scope", call.Name)
		assert.Equal(t, "c1", call.Scope.Cluster)
	}
	assert.True(t, f.logger.AssertLoggedWithField(log.InfoLevel, "Operation started", log.TaskIDKey, task.ID))

	got, ok := f.orch.Task(task.ID)
	require.True(t, ok)
	assert.Same(t, task, got)
	assert.Len(t, f.orch.Tasks(), 1)

	assert.Equal(t, 1, f.orch.PruneTasks(-time.Second))
	_, ok = f.orch.Task(task.ID)
	assert.False(t, ok)
}

func TestSubmitCancelDuringHeartbeatWait(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")

	waiting := make(chan struct{})
	f.nodes.AwaitFunc = func(ctx context.Context, cc *cluster.Context) error {
		close(waiting)
		<-ctx.Done()
		return ctx.Err()
	}

	task := f.orch.SubmitDecommission(context.Background(), c, c.NodeGroups[1].Instances[:1])
	<-waiting
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish after cancellation")
	}

	err := task.Err()
	assert.True(t, types.IsOperationCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TaskStatusCancelled, task.Status())
	assert.NotContains(t, f.log.Names(), "remove_nodes")

	require.Len(t, f.recorder.Finished, 1)
	assert.Equal(t, types.OperationStatusCancelled, f.recorder.Finished[0].Status)
}

func TestSubmitFailure(t *testing.T) {
	f := newFixture(t)
	c := testCluster("c1")
	f.nodes.MoveError = errors.New("no CLDB host")

	task := f.orch.SubmitDecommission(context.Background(), c, c.NodeGroups[1].Instances[:1])
	err := task.Wait(context.Background())

	assert.EqualError(t, err, "no CLDB host")
	assert.False(t, types.IsOperationCancelled(err))
	assert.Equal(t, TaskStatusFailed, task.Status())
}
