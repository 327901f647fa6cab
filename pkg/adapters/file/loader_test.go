package file_test

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/weave/internal/runtime"
	"github.com/aretw0/weave/internal/testutils"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const childYAML = `
name: doubler
inputs:
  - {name: x, type: number}
outputs:
  - {name: y, type: number}
blocks:
  - {name: in, kind: input, settings: {slot: x}}
  - {name: double, kind: gain, settings: {factor: 2}}
  - {name: out, kind: output, settings: {slot: y}}
links:
  - {from: in.value, to: double.in}
  - {from: double.out, to: out.value}
`

func TestLoader_Load(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml": `
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
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "main", p.Graph.Name, "name defaults to the file name")
	assert.Equal(t, []string{filepath.Join(dir, "main.yaml")}, p.Files)
	assert.Equal(t, 3, p.Graph.Len())

	runtime.UpdateGraph(p.Graph)
	assert.Equal(t, 6.0, p.Graph.OutputValues().Get("y").Float())
}

func TestLoader_SubGraph(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"lib/child.yaml": childYAML,
		"main.yaml": `
name: parent
outputs:
  - {name: result, type: number}
blocks:
  - {name: five, kind: constant, settings: {value: 5}}
  - {name: sub, kind: subgraph, settings: {file: lib/child.yaml}}
  - {name: out, kind: output, settings: {slot: result}}
links:
  - {from: five.value, to: sub.x}
  - {from: sub.y, to: out.value}
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	child := filepath.Join(dir, "lib", "child.yaml")
	assert.Equal(t, []string{child, filepath.Join(dir, "main.yaml")}, p.Files)
	assert.Equal(t, map[string][]string{child: {"sub"}}, p.Embeds)

	runtime.UpdateGraph(p.Graph)
	assert.Equal(t, 10.0, p.Graph.OutputValues().Get("result").Float())

	g, err := file.NewLoader().LoadGraph(child)
	require.NoError(t, err)
	assert.Equal(t, "doubler", g.Name)
	assert.Equal(t, []schema.Field{schema.F("x", schema.Number())}, g.InputFields())
}

func TestLoader_CyclicEmbedding(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"a.yaml": `
blocks:
  - {name: one, kind: constant, settings: {value: 1}}
  - {name: b, kind: subgraph, settings: {file: b.yaml}}
`,
		"b.yaml": `
inputs:
  - {name: x, type: number}
blocks:
  - {name: back, kind: subgraph, settings: {file: a.yaml}}
  - {name: in, kind: input, settings: {slot: x}}
links:
  - {from: in.value, to: back.x}
`,
		"self.yaml": `
blocks:
  - {name: one, kind: constant, settings: {value: 1}}
  - {name: me, kind: subgraph, settings: {file: self.yaml}}
links:
  - {from: one.value, to: me.x}
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "self.yaml"))
	require.NoError(t, err, "links to an unavailable subgraph are dropped")
	me, ok := p.Graph.BlockByName("me")
	require.True(t, ok)
	assert.False(t, me.Valid())
	assert.Equal(t, "cyclic embedding", me.Reason())
	assert.Equal(t, []file.LinkDoc{{From: "one.value", To: "me.x"}}, p.Pending)

	p, err = file.NewLoader().Load(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	b, _ := p.Graph.BlockByName("b")
	assert.True(t, b.Valid(), "the cycle is cut where it closes")
}

func TestLoader_MissingSubGraphFile(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml": `
blocks:
  - {name: sub, kind: subgraph, settings: {file: gone.yaml}}
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	sub, _ := p.Graph.BlockByName("sub")
	assert.False(t, sub.Valid())
	assert.Contains(t, p.Files, filepath.Join(dir, "gone.yaml"), "a missing file is still watched")
}

func TestLoader_AggregatesErrors(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml": `
blocks:
  - {name: a, kind: constant, settings: {value: 1}}
  - {name: a, kind: constant, settings: {value: 2}}
  - {name: b, kind: teleporter}
links:
  - {from: a.value, to: ghost.in}
  - {from: nodot, to: a.value}
`,
	})

	_, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 4)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
}

func TestLoader_Procedures(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml": `
procedures:
  blink:
    blocks:
      - {name: start, kind: start}
      - {name: pause, kind: wait, settings: {seconds: 1}}
      - {name: end, kind: end}
    links:
      - {from: start.completed, to: pause.begin}
      - {from: pause.completed, to: end.begin}
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	require.Contains(t, p.Procedures, "blink")

	g1, err := p.Procedures["blink"]()
	require.NoError(t, err)
	g2, err := p.Procedures["blink"]()
	require.NoError(t, err)
	assert.NotSame(t, g1, g2, "every call builds a fresh graph")
	assert.Equal(t, "blink", g1.Name)
	assert.Len(t, g1.BlocksOfKind(domain.KindStart), 1)
}

func TestLoader_ProcedureErrors(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"main.yaml": `
procedures:
  bad:
    blocks:
      - {name: call, kind: call}
`,
	})

	_, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `procedure "bad"`)
}

func TestLoader_BadYAML(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{"main.yaml": "blocks: [unclosed"})
	_, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	assert.Error(t, err)
}

func TestLoader_NestedEmbeds(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"leaf.yaml": childYAML,
		"mid.yaml": `
inputs:
  - {name: x, type: number}
outputs:
  - {name: y, type: number}
blocks:
  - {name: in, kind: input, settings: {slot: x}}
  - {name: inner, kind: subgraph, settings: {file: leaf.yaml}}
  - {name: out, kind: output, settings: {slot: y}}
links:
  - {from: in.value, to: inner.x}
  - {from: inner.y, to: out.value}
`,
		"main.yaml": `
blocks:
  - {name: a, kind: subgraph, settings: {file: mid.yaml}}
  - {name: b, kind: subgraph, settings: {file: leaf.yaml}}
`,
	})

	p, err := file.NewLoader().Load(filepath.Join(dir, "main.yaml"))
	require.NoError(t, err)
	mid, leaf := filepath.Join(dir, "mid.yaml"), filepath.Join(dir, "leaf.yaml")
	assert.Equal(t, map[string][]string{
		mid:  {"a"},
		leaf: {"a", "b"},
	}, p.Embeds)
	assert.Equal(t, map[string]string{"a": mid, "b": leaf}, p.Sources)
	assert.Empty(t, p.Pending)
}
