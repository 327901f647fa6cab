package blocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/weave/internal/runtime"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/reconcile"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	writes [][]bool
	err    error
}

func (r *recordingSink) Write(ch []bool) error {
	r.writes = append(r.writes, ch)
	return r.err
}

type scriptFunc func(name string, settings, inputs schema.Values) (schema.Values, error)

func (f scriptFunc) Run(name string, settings, inputs schema.Values) (schema.Values, error) {
	return f(name, settings, inputs)
}

func sourceValue(t *testing.T, g *domain.Graph, block, port string) schema.Value {
	t.Helper()
	b, ok := g.BlockByName(block)
	require.True(t, ok)
	p, ok := g.FindPort(b.ID, domain.Source, port)
	require.True(t, ok)
	return p.Value
}

func TestDevice_WritesChannelsInOrder(t *testing.T) {
	sink := &recordingSink{}
	g := domain.NewGraph("rig")
	g.AddBlock("on", blocks.Constant(schema.NewBoolean(true)))
	g.AddBlock("relay", blocks.Device(3, sink))
	require.NoError(t, g.ConnectNamed("on", "value", "relay", blocks.ChannelName(1)))

	runtime.UpdateGraph(g)
	require.Len(t, sink.writes, 1)
	assert.Equal(t, []bool{false, true, false}, sink.writes[0])
}

func TestDevice_FailureInvalidates(t *testing.T) {
	sink := &recordingSink{err: errors.New("port closed")}
	g := domain.NewGraph("rig")
	relay := g.AddBlock("relay", blocks.Device(1, sink))

	runtime.UpdateGraph(g)
	assert.False(t, relay.Valid())
	assert.Equal(t, "port closed", relay.Reason())
}

func TestScript_UsesRunnerByName(t *testing.T) {
	var called string
	runner := scriptFunc(func(name string, _, in schema.Values) (schema.Values, error) {
		called = name
		return schema.Values{"out": schema.NewText(in.Get("in").String() + "!")}, nil
	})
	g := domain.NewGraph("script")
	g.AddBlock("src", blocks.Constant(schema.NewText("hi")))
	g.AddBlock("shout", blocks.Script("shout", runner,
		[]schema.Field{schema.F("in", schema.Text())},
		[]schema.Field{schema.F("out", schema.Text())}))
	require.NoError(t, g.ConnectNamed("src", "value", "shout", "in"))

	runtime.UpdateGraph(g)
	assert.Equal(t, "shout", called)
	assert.Equal(t, "hi!", sourceValue(t, g, "shout", "out").String())
}

func TestGraphInput(t *testing.T) {
	g := domain.NewGraph("io")
	in := g.AddInput(schema.F("x", schema.Number()))
	out := g.AddOutput(schema.F("y", schema.Number()))
	g.AddBlock("in", blocks.GraphInput(in))
	g.AddBlock("gain", blocks.Gain(3))
	g.AddBlock("out", blocks.GraphOutput(out))
	require.NoError(t, g.ConnectNamed("in", "value", "gain", "in"))
	require.NoError(t, g.ConnectNamed("gain", "out", "out", "value"))

	require.NoError(t, g.SetInput("x", schema.NewNumber(2)))
	runtime.UpdateGraph(g)
	assert.Equal(t, 6.0, out.Value.Float())
}

// child builds a graph doubling input slot inName into output slot "y".
func child(inName string, inType schema.TypeSpec) *domain.Graph {
	g := domain.NewGraph("child")
	in := g.AddInput(schema.F(inName, inType))
	out := g.AddOutput(schema.F("y", schema.Number()))
	g.AddBlock("in", blocks.GraphInput(in))
	g.AddBlock("double", blocks.Gain(2))
	g.AddBlock("out", blocks.GraphOutput(out))
	_ = g.ConnectNamed("in", "value", "double", "in")
	_ = g.ConnectNamed("double", "out", "out", "value")
	return g
}

func TestSubGraph_EvaluatesChild(t *testing.T) {
	g := domain.NewGraph("parent")
	g.AddBlock("five", blocks.Constant(schema.NewNumber(5)))
	g.AddBlock("sub", blocks.SubGraph(child("x", schema.Number()), runtime.UpdateGraph))
	require.NoError(t, g.ConnectNamed("five", "value", "sub", "x"))

	runtime.UpdateGraph(g)
	assert.Equal(t, 10.0, sourceValue(t, g, "sub", "y").Float())
}

func TestSubGraph_ResyncKeepsWiring(t *testing.T) {
	ctx := context.Background()
	g := domain.NewGraph("parent")
	g.AddBlock("five", blocks.Constant(schema.NewNumber(5)))
	sub := g.AddBlock("sub", blocks.SubGraph(child("x", schema.Number()), runtime.UpdateGraph))
	g.AddBlock("after", blocks.Gain(1))
	require.NoError(t, g.ConnectNamed("five", "value", "sub", "x"))
	require.NoError(t, g.ConnectNamed("sub", "y", "after", "in"))

	// The reloaded child renamed its input; the type pass keeps the link.
	require.NoError(t, blocks.Resync(ctx, reconcile.NewApplier(), g, sub.ID, child("speed", schema.Number()), runtime.UpdateGraph))

	speed, ok := g.FindPort(sub.ID, domain.Sink, "speed")
	require.True(t, ok)
	_, linked := g.Upstream(speed.ID)
	assert.True(t, linked)

	runtime.UpdateGraph(g)
	assert.Equal(t, 10.0, sourceValue(t, g, "after", "out").Float())
}

func TestSubGraph_MissingChild(t *testing.T) {
	ctx := context.Background()
	g := domain.NewGraph("parent")
	sub := g.AddBlock("sub", blocks.SubGraph(nil, runtime.UpdateGraph))

	runtime.UpdateGraph(g)
	assert.False(t, sub.Valid())
	assert.Equal(t, blocks.ErrMissingChild.Error(), sub.Reason())

	require.NoError(t, blocks.Resync(ctx, reconcile.NewApplier(), g, sub.ID, child("x", schema.Number()), runtime.UpdateGraph))
	assert.True(t, sub.Valid(), "a successful resync clears the invalidation")

	other := g.AddBlock("c", blocks.Constant(schema.NewNumber(1)))
	assert.Error(t, blocks.Resync(ctx, reconcile.NewApplier(), g, other.ID, nil, runtime.UpdateGraph))
}

func TestConstant_SettingDrivesOutput(t *testing.T) {
	g := domain.NewGraph("const")
	c := g.AddBlock("c", blocks.Constant(schema.NewOption(1, 3)))
	runtime.UpdateGraph(g)
	assert.Equal(t, 1, sourceValue(t, g, "c", "value").Index())

	require.NoError(t, c.SetSetting("value", schema.NewNumber(7)))
	runtime.UpdateGraph(g)
	assert.Equal(t, 2, sourceValue(t, g, "c", "value").Index(), "settings are clamped to the option range")
}

func TestLogicBlocks(t *testing.T) {
	g := domain.NewGraph("logic")
	g.AddBlock("t", blocks.Constant(schema.NewBoolean(true)))
	g.AddBlock("f", blocks.Constant(schema.NewBoolean(false)))
	g.AddBlock("and", blocks.And())
	g.AddBlock("or", blocks.Or())
	g.AddBlock("not", blocks.Not())
	g.AddBlock("gt", blocks.Greater())
	for _, l := range [][4]string{
		{"t", "value", "and", "a"}, {"f", "value", "and", "b"},
		{"t", "value", "or", "a"}, {"f", "value", "or", "b"},
		{"f", "value", "not", "in"},
	} {
		require.NoError(t, g.ConnectNamed(l[0], l[1], l[2], l[3]))
	}
	gt, _ := g.BlockByName("gt")
	a, _ := g.FindPort(gt.ID, domain.Sink, "a")
	a.Unconnected = schema.NewNumber(2)

	runtime.UpdateGraph(g)
	assert.False(t, sourceValue(t, g, "and", "result").Bool())
	assert.True(t, sourceValue(t, g, "or", "result").Bool())
	assert.True(t, sourceValue(t, g, "not", "out").Bool())
	assert.True(t, sourceValue(t, g, "gt", "result").Bool())
}
