package process

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave/pkg/schema"
)

func TestRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	runner := NewRunner()
	runner.Register("double", "sh", "-c", `echo "{\"y\": $(( $WEAVE_IN_X * $WEAVE_SET_FACTOR ))}"`)
	runner.Register("greet", "sh", "-c", `echo "hello $WEAVE_IN_WHO"`)
	runner.Register("fail", "sh", "-c", `echo broken >&2; exit 3`)

	t.Run("Decodes JSON Outputs", func(t *testing.T) {
		out, err := runner.Run("double",
			schema.Values{"factor": schema.NewNumber(3)},
			schema.Values{"x": schema.NewNumber(4)})
		require.NoError(t, err)
		assert.Equal(t, 12.0, out.Get("y").Float())
	})

	t.Run("Falls Back To Stdout", func(t *testing.T) {
		out, err := runner.Run("greet", nil, schema.Values{"who": schema.NewText("weave")})
		require.NoError(t, err)
		assert.Equal(t, "hello weave", out.Get("stdout").String())
	})

	t.Run("Fails For Unregistered Script", func(t *testing.T) {
		_, err := runner.Run("hacker_script", nil, nil)
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Reports Stderr", func(t *testing.T) {
		_, err := runner.Run("fail", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("Times Out", func(t *testing.T) {
		fast := NewRunner(WithTimeout(50 * time.Millisecond))
		fast.Register("slow", "sh", "-c", `exec sleep 5`)
		_, err := fast.Run("slow", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scripts:
  - name: blink
    command: ./blink.sh
    args: [--fast]
    env: {MODE: test}
  - name: ""
    command: ignored
`), 0644))

	scripts, err := LoadScripts(path)
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, []string{"--fast"}, scripts["blink"].Args)
	assert.Equal(t, "test", scripts["blink"].Environment["MODE"])

	r := NewRunner(WithScripts(scripts))
	assert.Equal(t, []string{"blink"}, r.Names())

	missing, err := LoadScripts(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))
	_, err = LoadScripts(filepath.Join(dir, "bad.json"))
	assert.Error(t, err)
}
