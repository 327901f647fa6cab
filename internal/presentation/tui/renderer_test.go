package tui_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave/internal/presentation/tui"
)

func TestRenderer_PlainWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, tui.IsTerminal(&buf))

	out, err := tui.NewRenderer(&buf)("# Title\n")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}

func TestStatus(t *testing.T) {
	assert.Contains(t, tui.Status("running"), "running")
	assert.Equal(t, "custom", tui.Status("custom"))
}
