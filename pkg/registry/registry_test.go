package registry_test

import (
	"errors"
	"testing"

	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRunner struct{ calls []string }

func (e *echoRunner) Run(name string, _, in schema.Values) (schema.Values, error) {
	e.calls = append(e.calls, name)
	return in, nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := registry.NewRegistry()
	assert.False(t, r.Has("blink"))

	r.Register("blink", func(_ registry.Env, _ map[string]any) (domain.Definition, error) {
		return blocks.Constant(schema.NewBoolean(true)), nil
	})
	assert.True(t, r.Has("blink"))
	assert.Equal(t, []string{"blink"}, r.Kinds())

	def, err := r.Build(registry.Env{}, "blink", nil)
	require.NoError(t, err)
	assert.Equal(t, blocks.KindConstant, def.Kind)

	_, err = r.Build(registry.Env{}, "missing", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownKind)
}

func TestDefault_Builtins(t *testing.T) {
	r := registry.Default()
	for _, kind := range []string{"constant", "gain", "add", "script", "input", "output", "device", "subgraph",
		"start", "end", "action", "latch", "if", "loop", "wait", "call", "fork"} {
		assert.True(t, r.Has(kind), kind)
	}
}

func TestDefault_DecodesSettings(t *testing.T) {
	r := registry.Default()
	env := registry.Env{Scripts: &echoRunner{}}

	tests := []struct {
		name     string
		kind     string
		settings map[string]any
		check    func(t *testing.T, def domain.Definition)
	}{
		{
			name:     "typed constant",
			kind:     "constant",
			settings: map[string]any{"value": "2", "type": "option(3)"},
			check: func(t *testing.T, def domain.Definition) {
				require.Len(t, def.Settings, 1)
				assert.Equal(t, 2, def.Settings[0].Initial().Index())
			},
		},
		{
			name:     "weakly typed gain",
			kind:     "gain",
			settings: map[string]any{"factor": "2.5"},
			check: func(t *testing.T, def domain.Definition) {
				assert.Equal(t, 2.5, def.Settings[0].Initial().Float())
			},
		},
		{
			name:     "fork branches",
			kind:     "fork",
			settings: map[string]any{"branches": 3},
			check: func(t *testing.T, def domain.Definition) {
				assert.Equal(t, domain.Parallel, def.Branching)
				assert.Len(t, def.Ports, 4)
			},
		},
		{
			name: "script ports",
			kind: "script",
			settings: map[string]any{
				"script":  "scale",
				"inputs":  []map[string]string{{"name": "x", "type": "number"}},
				"outputs": []map[string]string{{"name": "y", "type": "number"}},
			},
			check: func(t *testing.T, def domain.Definition) {
				require.Len(t, def.Ports, 2)
				assert.Equal(t, "x", def.Ports[0].Name)
				assert.Equal(t, domain.Sink, def.Ports[0].Direction)
				assert.Equal(t, "y", def.Ports[1].Name)
			},
		},
		{
			name:     "wait seconds",
			kind:     "wait",
			settings: map[string]any{"seconds": 1.5},
			check: func(t *testing.T, def domain.Definition) {
				for _, p := range def.Ports {
					if p.Name == "duration" {
						assert.Equal(t, 1.5, p.Default.Float())
						return
					}
				}
				t.Fatal("no duration port")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := r.Build(env, tt.kind, tt.settings)
			require.NoError(t, err)
			tt.check(t, def)
		})
	}
}

func TestDefault_RejectsBadSettings(t *testing.T) {
	r := registry.Default()
	env := registry.Env{}

	tests := []struct {
		name     string
		kind     string
		settings map[string]any
	}{
		{"unknown key", "add", map[string]any{"bogus": 1}},
		{"bad type", "constant", map[string]any{"value": 1, "type": "matrix"}},
		{"call without procedure", "call", nil},
		{"script without runner", "script", map[string]any{"script": "x"}},
		{"empty fork", "fork", map[string]any{"branches": 0}},
		{"input without graph", "input", map[string]any{"slot": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Build(env, tt.kind, tt.settings)
			assert.Error(t, err)
		})
	}
}

func TestDefault_SlotBinding(t *testing.T) {
	g := domain.NewGraph("io")
	g.AddInput(schema.F("speed", schema.Number()))
	r := registry.Default()

	def, err := r.Build(registry.Env{Graph: g}, "input", map[string]any{"slot": "speed"})
	require.NoError(t, err)
	assert.Equal(t, blocks.KindInput, def.Kind)

	_, err = r.Build(registry.Env{Graph: g}, "output", map[string]any{"slot": "speed"})
	assert.Error(t, err, "speed is an input slot")
}

func TestDefault_UnresolvedSubGraph(t *testing.T) {
	r := registry.Default()
	loadErr := errors.New("cyclic embedding")
	env := registry.Env{Resolve: func(string) (*domain.Graph, error) { return nil, loadErr }}

	def, err := r.Build(env, "subgraph", map[string]any{"file": "self.yaml"})
	var unresolved *registry.UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "self.yaml", unresolved.Ref)
	assert.ErrorIs(t, err, loadErr)
	assert.Equal(t, blocks.KindSubGraph, def.Kind)
	assert.NotNil(t, def.Compute)
}
