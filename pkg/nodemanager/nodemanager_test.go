package nodemanager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/probes"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, opts ...cluster.BuildOption) (*cluster.Context, *types.Cluster) {
	t.Helper()
	d, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)
	c := cluster.NewTestCluster("c1",
		cluster.NewTestNodeGroup("zk", 3, "ZooKeeper", "FileServer"),
		cluster.NewTestNodeGroup("master", 1, "CLDB", "FileServer", "Webserver"),
		cluster.NewTestNodeGroup("worker", 2, "FileServer", "NodeManager"),
	)
	return cluster.NewBuilder(d, nil).Build(c, opts...), c
}

// callIndex returns the position of the first call matching instance and command.
func callIndex(calls []remote.Call, instanceID, command string) int {
	for i, c := range calls {
		if c.InstanceID == instanceID && c.Command == command {
			return i
		}
	}
	return -1
}

func TestStartOrdersZooKeeperThenCLDB(t *testing.T) {
	cc, _ := testContext(t)
	exec := remote.NewDryRun(log.NewTestLogger())

	require.NoError(t, New(exec, nil, nil).Start(context.Background(), cc))

	calls := exec.Calls()
	assert.Len(t, calls, 3+1+5)

	lastZK := -1
	for _, id := range []string{"zk-0", "zk-1", "zk-2"} {
		i := callIndex(calls, id, StartZooKeeperCommand)
		require.GreaterOrEqual(t, i, 0, id)
		if i > lastZK {
			lastZK = i
		}
	}
	cldb := callIndex(calls, "master-0", StartWardenCommand)
	assert.Greater(t, cldb, lastZK)
	for _, id := range []string{"zk-0", "worker-0", "worker-1"} {
		assert.Greater(t, callIndex(calls, id, StartWardenCommand), cldb, id)
	}
}

func TestStartSubset(t *testing.T) {
	cc, c := testContext(t)
	exec := remote.NewDryRun(nil)
	added := c.NodeGroups[2].Instances[1]

	require.NoError(t, New(exec, nil, nil).Start(context.Background(), cc, added))
	assert.Equal(t, []remote.Call{{InstanceID: added.ID, Command: StartWardenCommand}}, exec.Calls())
}

func TestStartStopsAtFirstFailedPhase(t *testing.T) {
	cc, _ := testContext(t)
	exec := remote.NewDryRun(nil)
	exec.FailOn("zk-1", StartZooKeeperCommand, 1)

	err := New(exec, nil, nil).Start(context.Background(), cc)
	require.Error(t, err)

	var cmdErr *remote.CommandError
	assert.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, -1, callIndex(exec.Calls(), "master-0", StartWardenCommand))
}

func TestStopReversesStart(t *testing.T) {
	cc, c := testContext(t)
	exec := remote.NewDryRun(nil)

	require.NoError(t, New(exec, nil, nil).Stop(context.Background(), cc, c.Instances()...))

	calls := exec.Calls()
	cldb := callIndex(calls, "master-0", StopWardenCommand)
	assert.Greater(t, cldb, callIndex(calls, "worker-0", StopWardenCommand))
	assert.Less(t, cldb, callIndex(calls, "zk-0", StopZooKeeperCommand))
}

func TestMoveAndRemoveNodesRunOnCLDB(t *testing.T) {
	cc, c := testContext(t)
	exec := remote.NewDryRun(nil)
	m := New(exec, nil, nil)
	retired := c.NodeGroups[2].Instances
	ctx := context.Background()

	require.NoError(t, m.MoveNodes(ctx, cc, retired))
	require.NoError(t, m.RemoveNodes(ctx, cc, retired))

	cmds := exec.CommandsOn("master-0")
	require.Len(t, cmds, 2)
	assert.Equal(t, "maprcli node move -nodes worker-0.test,worker-1.test -topology /decommissioned", cmds[0])
	assert.True(t, strings.HasPrefix(cmds[1], "maprcli node remove -nodes worker-0.test,worker-1.test -zkconnect "))
	assert.Equal(t, 3, strings.Count(cmds[1], ":5181"))
}

func TestMoveNodesNeedsCLDB(t *testing.T) {
	d, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)
	c := cluster.NewTestCluster("c1", cluster.NewTestNodeGroup("worker", 1, "NodeManager"))
	cc := cluster.NewBuilder(d, nil).Build(c)

	err = New(remote.NewDryRun(nil), nil, nil).MoveNodes(context.Background(), cc, c.Instances())
	assert.True(t, errors.Is(err, ErrNoControlHost))
}

func TestAwaitNoHeartbeat(t *testing.T) {
	_, c := testContext(t)
	removed := c.NodeGroups[2].Instances
	cc, _ := testContext(t, cluster.WithRemoved(removed...))

	t.Run("silent nodes", func(t *testing.T) {
		prober := probes.NewFakeProber(false)
		m := New(remote.NewDryRun(nil), prober, nil, WithHeartbeat(0, time.Millisecond, time.Second))

		require.NoError(t, m.AwaitNoHeartbeat(context.Background(), cc))
		assert.ElementsMatch(t, []string{"worker-0", "worker-1"}, prober.Calls())
	})

	t.Run("nodes go quiet", func(t *testing.T) {
		prober := probes.NewFakeProber(false)
		prober.Set("worker-1", true)
		m := New(remote.NewDryRun(nil), prober, nil, WithHeartbeat(0, 5*time.Millisecond, 5*time.Second))

		go func() {
			time.Sleep(30 * time.Millisecond)
			prober.Set("worker-1", false)
		}()

		require.NoError(t, m.AwaitNoHeartbeat(context.Background(), cc))
		assert.Greater(t, len(prober.Calls()), 3)
	})

	t.Run("timeout", func(t *testing.T) {
		prober := probes.NewFakeProber(true)
		m := New(remote.NewDryRun(nil), prober, nil, WithHeartbeat(0, 5*time.Millisecond, 40*time.Millisecond))

		err := m.AwaitNoHeartbeat(context.Background(), cc)
		require.Error(t, err)
		assert.True(t, types.IsTimeoutError(err))

		var te *types.TimeoutError
		require.ErrorAs(t, err, &te)
		assert.ElementsMatch(t, []string{"worker-0", "worker-1"}, te.Instances)
	})

	t.Run("cancelled", func(t *testing.T) {
		prober := probes.NewFakeProber(true)
		m := New(remote.NewDryRun(nil), prober, nil, WithHeartbeat(0, 5*time.Millisecond, time.Minute))

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		err := m.AwaitNoHeartbeat(ctx, cc)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, types.IsTimeoutError(err))
	})

	t.Run("nothing removed", func(t *testing.T) {
		plain, _ := testContext(t)
		prober := probes.NewFakeProber(true)
		m := New(remote.NewDryRun(nil), prober, nil)

		require.NoError(t, m.AwaitNoHeartbeat(context.Background(), plain))
		assert.Empty(t, prober.Calls())
	})
}
