package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/probes"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
)

func testBuilder(t *testing.T) *cluster.Builder {
	t.Helper()
	d, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)
	return cluster.NewBuilder(d, log.NewTestLogger())
}

func testCluster() *types.Cluster {
	return cluster.NewTestCluster("c1",
		cluster.NewTestNodeGroup("master", 1, "Webserver", "CLDB", "ZooKeeper", "FileServer"),
		cluster.NewTestNodeGroup("worker", 2, "FileServer"),
	)
}

func TestGetChecks(t *testing.T) {
	cc := testBuilder(t).Build(testCluster())

	checks := NewChecker().GetChecks(cc)

	var names []string
	for _, c := range checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"Webserver on master-0.test",
		"CLDB on master-0.test",
		"FileServer on master-0.test",
		"FileServer on worker-0.test",
		"FileServer on worker-1.test",
		"ZooKeeper on master-0.test",
		"ZooKeeper quorum",
		"CLDB available",
	}, names)

	web := checks[0]
	assert.Equal(t, types.CheckKindHTTP, web.Kind)
	assert.Equal(t, 8443, web.Port)
	assert.Equal(t, "/rest/dashboard/info", web.Path)
	assert.Equal(t, "Management", web.Service)

	cldb := checks[1]
	assert.Equal(t, types.CheckKindTCP, cldb.Kind)
	assert.Equal(t, 7222, cldb.Port)
	assert.Equal(t, "master-0", cldb.InstanceID)

	assert.True(t, checks[6].Healthy)
	assert.True(t, checks[7].Healthy)
}

func TestGetChecksClusterLevelFailures(t *testing.T) {
	c := cluster.NewTestCluster("c1",
		cluster.NewTestNodeGroup("zk", 2, "ZooKeeper"),
	)
	cc := testBuilder(t).Build(c)

	checks := NewChecker().GetChecks(cc)
	require.Len(t, checks, 4)
	assert.Equal(t, "ZooKeeper quorum", checks[2].Name)
	assert.False(t, checks[2].Healthy)
	assert.Equal(t, "2 ZooKeeper node(s)", checks[2].Message)
	assert.Equal(t, "CLDB available", checks[3].Name)
	assert.False(t, checks[3].Healthy)
}

func TestRunnerRun(t *testing.T) {
	cc := testBuilder(t).Build(testCluster())
	checks := NewChecker().GetChecks(cc)

	tcp := probes.NewFakeProber(true)
	tcp.Set("worker-1", false)
	http := probes.NewFakeProber(true)

	r := NewRunner(log.NewTestLogger(), WithProbers(tcp, http))
	results, err := r.Run(context.Background(), checks)
	require.NoError(t, err)
	require.Len(t, results, len(checks))

	for i, res := range results {
		assert.Equal(t, checks[i].Name, res.Check.Name, "results keep check order")
	}

	bad := Unhealthy(results)
	require.Len(t, bad, 1)
	assert.Equal(t, "FileServer on worker-1.test", bad[0].Check.Name)

	assert.Equal(t, []string{"master-0"}, http.Calls())
	assert.Len(t, tcp.Calls(), 5)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, WithProbers(probes.NewFakeProber(true), probes.NewFakeProber(true)))
	_, err := r.Run(ctx, []types.CheckDescriptor{{Name: "x", Kind: types.CheckKindTCP}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitorRunOnce(t *testing.T) {
	tcp := probes.NewFakeProber(true)
	tcp.Set("master-0", false)
	runner := NewRunner(nil, WithProbers(tcp, probes.NewFakeProber(true)))

	logger := log.NewTestLogger()
	source := func(context.Context) ([]*types.Cluster, error) {
		return []*types.Cluster{testCluster()}, nil
	}
	m := NewMonitor(testBuilder(t), runner, source, nil, logger)

	reports, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].Unhealthy)

	last, ok := m.Last("c1")
	require.True(t, ok)
	assert.Equal(t, reports[0].CheckedAt, last.CheckedAt)
	assert.True(t, logger.AssertLogged(log.WarnLevel, "Health check failed"))

	_, ok = m.Last("missing")
	assert.False(t, ok)
}

func TestMonitorSourceError(t *testing.T) {
	source := func(context.Context) ([]*types.Cluster, error) {
		return nil, errors.New("store offline")
	}
	m := NewMonitor(testBuilder(t), NewRunner(nil), source, nil, nil)

	_, err := m.RunOnce(context.Background())
	assert.ErrorContains(t, err, "store offline")
}

func TestMonitorSchedule(t *testing.T) {
	m := NewMonitor(testBuilder(t), NewRunner(nil), nil, nil, nil)

	assert.NoError(t, m.Schedule("*/5 * * * *"))
	assert.NoError(t, m.Schedule("@every 1m"))
	assert.Error(t, m.Schedule("every five minutes"))

	m.Start()
	m.Stop()
}

func TestPortlessProcessGetsPackageCheck(t *testing.T) {
	c := cluster.NewTestCluster("c1",
		cluster.NewTestNodeGroup("master", 1, "CLDB", "ZooKeeper", "FileServer", "ResourceManager", "NodeManager", "Spark-on-YARN"),
	)
	checks := NewChecker().GetChecks(testBuilder(t).Build(c))

	var pkg *types.CheckDescriptor
	for i := range checks {
		if checks[i].Kind == types.CheckKindExec {
			pkg = &checks[i]
		}
	}
	require.NotNil(t, pkg)
	assert.Equal(t, "Spark-on-YARN installed on master-0.test", pkg.Name)
	assert.Equal(t, "Spark", pkg.Service)
	assert.Contains(t, pkg.Command, "rpm -q mapr-spark ")

	exec := remote.NewDryRun(log.NewTestLogger())
	exec.FailOn("master-0", "mapr-spark", 1)
	r := NewRunner(nil,
		WithProbers(probes.NewFakeProber(true), probes.NewFakeProber(true)),
		WithExecutor(exec),
	)
	results, err := r.Run(context.Background(), []types.CheckDescriptor{*pkg})
	require.NoError(t, err)
	assert.False(t, results[0].Healthy)
	assert.Contains(t, results[0].Message, "exit code 1")
	assert.Equal(t, []string{pkg.Command}, exec.CommandsOn("master-0"))
}

func TestExecCheckWithoutExecutorFails(t *testing.T) {
	r := NewRunner(nil)
	results, err := r.Run(context.Background(), []types.CheckDescriptor{{
		Name: "x", Kind: types.CheckKindExec, InstanceID: "i-1", Command: "true",
	}})
	require.NoError(t, err)
	assert.False(t, results[0].Healthy)
	assert.Contains(t, results[0].Message, "no executor")
}
