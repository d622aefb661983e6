package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/herd/pkg/cli/format"
	"github.com/rzbill/herd/pkg/types"
)

const testCluster = `
id: c1
name: analytics
distributionVersion: 6.1.0
nodeGroups:
  - id: master
    name: master
    count: 1
    volumesPerNode: 1
    nodeProcesses: [CLDB, FileServer, ZooKeeper, Webserver, ResourceManager, HistoryServer]
    instances:
      - id: master-0
        hostname: master-0.test
        internalIp: 127.0.0.1
  - id: worker
    name: worker
    count: 3
    volumesPerNode: 1
    nodeProcesses: [FileServer, NodeManager]
    instances:
      - id: worker-0
        hostname: worker-0.test
        internalIp: 127.0.1.1
      - id: worker-1
        hostname: worker-1.test
        internalIp: 127.0.1.2
      - id: worker-2
        hostname: worker-2.test
        internalIp: 127.0.1.3
`

type testEnv struct {
	config  string
	cluster string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pterm.DisableStyling()
	format.EnableColor(false)

	dir := t.TempDir()
	config := filepath.Join(dir, "herd.yaml")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`
data_dir: %s
executor:
  mode: dry-run
log:
  level: error
heartbeat:
  poll_interval: 10ms
  timeout: 1s
metrics:
  addr: ""
repos:
  ubuntu_base: http://mirror.test/ubuntu
`, filepath.Join(dir, "data"))), 0o644))

	cluster := filepath.Join(dir, "cluster.yaml")
	require.NoError(t, os.WriteFile(cluster, []byte(testCluster), 0o644))

	return &testEnv{config: config, cluster: cluster}
}

// run executes herd with args and returns its standard output.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestServicesCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "ZooKeeper")
	assert.Contains(t, out, "Hive")

	out, err = env.run(t, "services", "-f", env.cluster)
	require.NoError(t, err)
	assert.Contains(t, out, "YARN")
	assert.NotContains(t, out, "Hive")
}

func TestConfigsDictCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "configs", "--dict", "-f", env.cluster)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, ":")
}

func TestPortsCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "ports", "-f", env.cluster, "master")
	require.NoError(t, err)
	assert.Contains(t, out, "7222")

	_, err = env.run(t, "ports", "-f", env.cluster, "nope")
	assert.ErrorContains(t, err, "node group nope not found")

	_, err = env.run(t, "ports", "master")
	assert.ErrorContains(t, err, "--file")
}

func TestValidateCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "validate", "-f", env.cluster)
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster c1 is valid")

	_, err = env.run(t, "validate", "-f", env.cluster, "--resize", "master=0")
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Violations)

	_, err = env.run(t, "validate", "-f", env.cluster, "--resize", "ghost=2")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "ghost")
}

const osCatalog = `
version: "6.1.0"
requiredServices: [MapRFS]
services:
  - name: MapRFS
    version: "6.1.0"
    default: true
    processes:
      - name: CLDB
        package: mapr-cldb
      - name: FileServer
        package: mapr-fileserver
    rules:
      - kind: required_os
        os: centos
`

func TestValidateCommandRequiresImageOS(t *testing.T) {
	env := newTestEnv(t)
	dir := filepath.Dir(env.config)

	catalogFile := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogFile, []byte(osCatalog), 0o644))
	config, err := os.ReadFile(env.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.config, append(config, []byte(fmt.Sprintf(`
distribution:
  file: %s
images:
  - id: img-centos
    tags: [centos]
  - id: img-ubuntu
    tags: [ubuntu]
`, catalogFile))...), 0o644))

	writeCluster := func(image string) string {
		path := filepath.Join(dir, "fs-"+image+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
id: c1
name: fs
defaultImageId: %q
nodeGroups:
  - id: node
    name: node
    count: 1
    volumesPerNode: 1
    nodeProcesses: [CLDB, FileServer]
`, image)), 0o644))
		return path
	}

	var ve *types.ValidationError
	_, err = env.run(t, "validate", "-f", writeCluster(""))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), `node group "node" has no image`)

	_, err = env.run(t, "validate", "-f", writeCluster("img-ubuntu"))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "requires centos OS")

	out, err := env.run(t, "validate", "-f", writeCluster("img-centos"))
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster c1 is valid")
}

func TestChecksCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "checks", "-f", env.cluster)
	require.NoError(t, err)
	assert.Contains(t, out, "CLDB on master-0.test")
	assert.Contains(t, out, "ZooKeeper quorum")
	assert.Contains(t, out, "CLDB available")
}

func TestJobsCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "MapReduce.Streaming")

	out, err = env.run(t, "jobs", "hints", "Shell")
	require.NoError(t, err)
	assert.Contains(t, out, "configs: []")

	_, err = env.run(t, "jobs", "hints", "Cobol")
	assert.ErrorIs(t, err, types.ErrUnsupportedJobType)

	_, err = env.run(t, "jobs", "engine", "-f", env.cluster, "Hive")
	assert.Error(t, err, "cluster runs no Oozie")
}

func TestImagesCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "images", "args")
	require.NoError(t, err)
	assert.Contains(t, out, "java_distro")

	out, err = env.run(t, "images", "pack", "-f", env.cluster, "worker-0", "--args", "os_family=centos")
	require.NoError(t, err)
	assert.Contains(t, out, "Instance worker-0 packed")

	_, err = env.run(t, "images", "pack", "-f", env.cluster, "worker-0", "--args", "os_family=windows")
	assert.True(t, types.IsValidationError(err))
}

func TestLifecycleCommandsRecordHistory(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "configure", "-f", env.cluster)
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster c1 configured")

	out, err = env.run(t, "start", "-f", env.cluster)
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster c1 started")

	out, err = env.run(t, "decommission", "-f", env.cluster, "worker-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Cluster c1 decommissioned")

	out, err = env.run(t, "history", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "configure_cluster")
	assert.Contains(t, out, "start_cluster")
	assert.Contains(t, out, "decommission_nodes")
	assert.Contains(t, out, "succeeded")

	out, err = env.run(t, "clusters")
	require.NoError(t, err)
	assert.Contains(t, out, "analytics")

	_, err = env.run(t, "scale", "-f", env.cluster, "worker-9")
	assert.ErrorContains(t, err, "worker-9")
}

func TestMonitorOnce(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "monitor", "--once")
	require.NoError(t, err, "no stored clusters means nothing to check")

	_, err = env.run(t, "monitor", "--schedule", "not a schedule")
	assert.ErrorContains(t, err, "invalid monitor schedule")
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Herd "))

	out, err = env.run(t, "version", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "goVersion:")
	assert.Contains(t, out, "- 6.1.0")
}

func TestApplyRepoDefaults(t *testing.T) {
	c := &types.Cluster{Configs: map[string]map[string]string{
		types.TargetGeneral: {"Ubuntu base repo": "http://custom"},
	}}
	applyRepoDefaults(c, map[string]string{
		"Ubuntu base repo":   "http://mirror",
		"CentOS base repo":   "http://centos",
	})
	assert.Equal(t, "http://custom", c.Configs[types.TargetGeneral]["Ubuntu base repo"])
	assert.Equal(t, "http://centos", c.Configs[types.TargetGeneral]["CentOS base repo"])
}

func TestWithoutInstances(t *testing.T) {
	c := &types.Cluster{ID: "c1", NodeGroups: []*types.NodeGroup{{
		ID:        "worker",
		Count:     2,
		Instances: []*types.Instance{{ID: "w0"}, {ID: "w1"}},
	}}}

	out := withoutInstances(c, []string{"w1"})
	assert.Equal(t, 1, out.NodeGroups[0].Count)
	assert.Equal(t, []string{"w0"}, types.InstanceIDs(out.NodeGroups[0].Instances))
	assert.Len(t, c.NodeGroups[0].Instances, 2, "the input record is not modified")
}
