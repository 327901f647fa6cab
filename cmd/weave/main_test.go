package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/internal/testutils"
	"github.com/aretw0/weave/pkg/adapters/redis"
	"github.com/aretw0/weave/pkg/domain"
)

const projectYAML = `
inputs:
  - {name: x, type: number, default: 2}
outputs:
  - {name: y, type: number}
blocks:
  - {name: in, kind: input, settings: {slot: x}}
  - {name: triple, kind: gain, settings: {factor: 3}}
  - {name: out, kind: output, settings: {slot: y}}
links:
  - {from: in.value, to: triple.in}
  - {from: triple.out, to: out.value}
procedures:
  blink:
    blocks:
      - {name: start, kind: start}
      - {name: wait, kind: wait, settings: {seconds: 60}}
      - {name: end, kind: end}
    links:
      - {from: start.completed, to: wait.begin}
      - {from: wait.completed, to: end.begin}
`

const cyclicYAML = `
blocks:
  - {name: a, kind: gain}
  - {name: b, kind: gain}
links:
  - {from: a.out, to: b.in}
  - {from: b.out, to: a.in}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func project(t *testing.T) string {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml":   projectYAML,
		"cyclic.yaml": cyclicYAML,
	})
	return dir
}

func TestRun(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "run", "--file", filepath.Join(dir, "main.yaml"), "--ticks", "2", "--interval", "1ms", "--procedure", "blink")
	require.NoError(t, err)
	assert.Equal(t, "y = 6\n", out)
}

func TestGraph(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "graph", "--file", filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "triple")

	out, err = execute(t, "graph", "--file", filepath.Join(dir, "main.yaml"), "--procedure", "blink")
	require.NoError(t, err)
	assert.Contains(t, out, "class wait active;")
}

func TestValidate(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "validate", "--file", filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Graph is valid!")

	out, err = execute(t, "validate", "--file", filepath.Join(dir, "cyclic.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "cyclic: dependency cycle through")
	assert.Contains(t, err.Error(), "validation failed")
}

func TestDescribe(t *testing.T) {
	dir := project(t)
	out, err := execute(t, "describe", "--file", filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "### triple")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "v0.1.0-dev")
}

func TestInstances_RequiresRedis(t *testing.T) {
	_, err := execute(t, "instances", "--redis", "")
	assert.EqualError(t, err, "--redis is required")
}

func TestValidate_RelayRigExample(t *testing.T) {
	out, err := execute(t, "validate", "--file", filepath.Join("..", "..", "examples", "relay-rig", "weave.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Graph is valid!")
}

func TestConsoleDevice_LogsChanges(t *testing.T) {
	var buf bytes.Buffer
	d := &consoleDevice{logger: logging.NewWriter(&buf, slog.LevelInfo)}
	require.NoError(t, d.Write([]bool{true, false}))
	require.NoError(t, d.Write([]bool{true, false}))
	require.NoError(t, d.Write([]bool{false, true}))

	assert.Equal(t, 2, strings.Count(buf.String(), "device"))
	assert.Contains(t, buf.String(), "channels=10")
	assert.Contains(t, buf.String(), "channels=01")
}

func TestInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redis.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Save(context.Background(), &domain.Snapshot{
		ID:        "pulse-1",
		Procedure: "pulse",
		Status:    domain.StatusRunning,
		Active:    []string{"pause"},
		Ticks:     3,
	}))

	out, err := execute(t, "instances", "--redis", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "pulse-1")
	assert.Contains(t, out, "pause")
}
