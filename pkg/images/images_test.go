package images

import (
	"context"
	"strings"
	"testing"

	"github.com/rzbill/herd/pkg/catalog"
	"github.com/rzbill/herd/pkg/cluster"
	"github.com/rzbill/herd/pkg/log"
	"github.com/rzbill/herd/pkg/remote"
	"github.com/rzbill/herd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *remote.DryRun) {
	t.Helper()
	dist, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)
	exec := remote.NewDryRun(log.NewTestLogger())
	return NewHandler(dist, exec, log.NewTestLogger()), exec
}

func TestArguments(t *testing.T) {
	h, _ := newTestHandler(t)

	args := h.Arguments()
	byName := make(map[string]types.ImageArgument)
	for _, a := range args {
		byName[a.Name] = a
	}

	require.Contains(t, byName, ArgJavaDistro)
	assert.Equal(t, "openjdk", byName[ArgJavaDistro].Default)

	hive, ok := byName["hive_version"]
	require.True(t, ok)
	assert.Equal(t, []string{"2.3", "2.1"}, hive.Choices)
	assert.Equal(t, "2.3", hive.Default)

	assert.NotContains(t, byName, "oozie_version")
}

func TestPackInstallsMissingSteps(t *testing.T) {
	h, exec := newTestHandler(t)
	exec.FailOn("", "command -v java", 1)
	target := &types.Instance{ID: "builder"}

	err := h.Pack(context.Background(), target, false, map[string]string{ArgOSFamily: "centos"})
	require.NoError(t, err)

	cmds := exec.CommandsOn("builder")
	assert.Contains(t, cmds, "yum install -y java-1.8.0-openjdk-devel")
	for _, c := range cmds {
		assert.False(t, strings.HasPrefix(c, "yum install -y mapr-"), "installed package already present: %s", c)
	}
}

func TestPackTestOnlyReportsViolations(t *testing.T) {
	h, exec := newTestHandler(t)
	exec.FailOn("", "command -v java", 1)
	exec.FailOn("", "mapr-cldb", 1)
	target := &types.Instance{ID: "builder"}

	err := h.Pack(context.Background(), target, true, nil)
	require.Error(t, err)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 2)
	for _, c := range exec.CommandsOn("builder") {
		assert.NotContains(t, c, "install -y")
	}
}

func TestPackRejectsBadArguments(t *testing.T) {
	h, exec := newTestHandler(t)

	err := h.Pack(context.Background(), &types.Instance{ID: "b"}, true, map[string]string{
		"hive_version": "0.13",
		"color":        "blue",
	})

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 2)
	assert.Empty(t, exec.Calls())
}

func TestPackHonoursServiceVersion(t *testing.T) {
	h, _ := newTestHandler(t)

	resolved, err := h.resolveArgs(map[string]string{"hive_version": "2.1"})
	require.NoError(t, err)

	var names []string
	for _, s := range h.Steps(resolved) {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "mapr-hiveserver2")
	assert.Equal(t, "java", names[0])
}

func TestValidateAggregatesAcrossInstances(t *testing.T) {
	h, exec := newTestHandler(t)
	exec.FailOn("", "command -v java", 1)
	c := cluster.NewTestCluster("c1", cluster.NewTestNodeGroup("worker", 2, "FileServer"))

	err := h.Validate(context.Background(), c, true, nil)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 2)
}

func TestValidateChecksRegisteredImages(t *testing.T) {
	dist, err := catalog.Builtin("6.1.0")
	require.NoError(t, err)
	registry := StaticRegistry{"img-centos": {"centos"}}
	h := NewHandler(dist, remote.NewDryRun(log.NewTestLogger()), log.NewTestLogger(), WithRegistry(registry))

	c := cluster.NewTestCluster("c1",
		cluster.NewTestNodeGroup("master", 1, "CLDB"),
		cluster.NewTestNodeGroup("worker", 1, "FileServer"),
		cluster.NewTestNodeGroup("zk", 1, "ZooKeeper"),
	)
	c.DefaultImageID = "img-centos"
	c.NodeGroups[1].ImageID = "img-gone"

	err = h.Validate(context.Background(), c, true, nil)
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Violations, 1)
	assert.Contains(t, ve.Violations[0], `node group "worker"`)
	assert.Contains(t, ve.Violations[0], `image "img-gone" is not registered`)

	c.NodeGroups[1].ImageID = ""
	assert.NoError(t, h.Validate(context.Background(), c, true, nil))

	c.DefaultImageID = ""
	err = h.Validate(context.Background(), c, true, nil)
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Violations, 3)
}

func TestValidateFailsOnInstallError(t *testing.T) {
	h, exec := newTestHandler(t)
	exec.FailOn("", "command -v java", 1)
	exec.FailOn("", "apt-get install -y openjdk-8-jdk", 100)
	c := cluster.NewTestCluster("c1", cluster.NewTestNodeGroup("worker", 1, "FileServer"))

	err := h.Validate(context.Background(), c, false, nil)
	require.Error(t, err)
	assert.False(t, types.IsValidationError(err))

	var cmdErr *remote.CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestStaticRegistry(t *testing.T) {
	r := StaticRegistry{"img-1": {"ubuntu", "herd-6.1.0"}}

	ok, err := HasTag(context.Background(), r, "img-1", "ubuntu")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasTag(context.Background(), r, "img-1", "centos")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HasTag(context.Background(), r, "missing", "ubuntu")
	assert.Error(t, err)
}
