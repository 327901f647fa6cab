package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

func TestGenerateMermaid(t *testing.T) {
	g := domain.NewGraph("demo")
	in := g.AddInput(schema.F("x", schema.Number()))
	g.AddBlock("x-in", blocks.GraphInput(in))
	g.AddBlock("gain", blocks.Gain(2))
	g.AddBlock("start", blocks.Start())
	g.AddBlock("pause", blocks.Wait(0))
	g.AddBlock("sub", blocks.SubGraph(nil, nil))
	require.NoError(t, g.ConnectNamed("x-in", "value", "gain", "in"))
	require.NoError(t, g.ConnectNamed("gain", "out", "pause", "duration"))
	require.NoError(t, g.ConnectNamed("start", "completed", "pause", "begin"))

	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			contains: []string{
				`x_in[/"x-in <br/> <i>input</i>"/]`,
				`gain["gain"]`,
				`start(("start"))`,
				`pause(["pause <br/> <i>wait</i>"])`,
				`sub[["sub <br/> <i>subgraph</i>"]]`,
			},
		},
		{
			name: "Links",
			contains: []string{
				`x_in -- "value → in" --> gain`,
				`gain -- "out → duration" --> pause`,
				`start -. "completed" .-> pause`,
			},
		},
		{
			name:     "No Overlay",
			excludes: []string{"classDef active"},
		},
		{
			name:    "Overlay",
			overlay: &graph.GraphOverlay{Active: []string{"pause", "pause"}},
			contains: []string{
				"classDef active",
				"class pause active;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(g, tt.overlay)
			assert.True(t, strings.HasPrefix(out, "graph LR\n"))
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, bad := range tt.excludes {
				assert.NotContains(t, out, bad)
			}
			assert.LessOrEqual(t, strings.Count(out, "class pause active;"), 1)
		})
	}
}

func TestGenerateMermaid_Invalid(t *testing.T) {
	g := domain.NewGraph("demo")
	b := g.AddBlock("relay", blocks.Device(1, nil))
	b.Invalidate(`no "device" attached`)

	out := graph.GenerateMermaid(g, nil)
	assert.Contains(t, out, `⚠️ no 'device' attached`)
	assert.Contains(t, out, "class relay invalid;")
}
