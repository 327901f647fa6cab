package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/weave/internal/runtime"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/schema"
)

// Builder collects a graph declaration. Build can be called any number of
// times; every call returns an independent graph.
type Builder struct {
	name     string
	registry *registry.Registry
	scripts  ports.ScriptRunner
	devices  map[string]ports.DeviceSink
	update   blocks.UpdateFunc

	inputs  []schema.Field
	outputs []schema.Field
	blocks  []*BlockBuilder
	links   [][2]string
	embeds  map[string]*Builder
}

// Option configures a Builder.
type Option func(*Builder)

// WithRegistry replaces the default kind registry.
func WithRegistry(r *registry.Registry) Option {
	return func(b *Builder) { b.registry = r }
}

// WithScripts sets the runner used by script, action and end blocks.
func WithScripts(r ports.ScriptRunner) Option {
	return func(b *Builder) { b.scripts = r }
}

// WithDevice makes sink available to device blocks under name.
func WithDevice(name string, sink ports.DeviceSink) Option {
	return func(b *Builder) { b.devices[name] = sink }
}

// New creates a new graph builder.
func New(name string, opts ...Option) *Builder {
	b := &Builder{
		name:     name,
		registry: registry.Default(),
		devices:  make(map[string]ports.DeviceSink),
		update:   runtime.UpdateGraph,
		embeds:   make(map[string]*Builder),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Input declares an external input slot.
func (b *Builder) Input(name string, t schema.TypeSpec) *Builder {
	b.inputs = append(b.inputs, schema.F(name, t))
	return b
}

// Output declares an external output slot.
func (b *Builder) Output(name string, t schema.TypeSpec) *Builder {
	b.outputs = append(b.outputs, schema.F(name, t))
	return b
}

// Add declares a block of a registered kind.
// If a block with that name exists, it returns the existing builder.
func (b *Builder) Add(name, kind string) *BlockBuilder {
	for _, nb := range b.blocks {
		if nb.name == name {
			return nb
		}
	}
	nb := &BlockBuilder{name: name, kind: kind, settings: make(map[string]any), builder: b}
	b.blocks = append(b.blocks, nb)
	return nb
}

// Link connects two "block.port" endpoints.
func (b *Builder) Link(from, to string) *Builder {
	b.links = append(b.links, [2]string{from, to})
	return b
}

// Embed makes child resolvable as the "file" setting ref of subgraph blocks.
func (b *Builder) Embed(ref string, child *Builder) *Builder {
	b.embeds[ref] = child
	return b
}

// Factory adapts the builder to a procedure factory.
func (b *Builder) Factory() func() (*domain.Graph, error) {
	return b.Build
}

// Build compiles the declaration into a fresh graph.
func (b *Builder) Build() (*domain.Graph, error) {
	return b.build(map[*Builder]bool{})
}

func (b *Builder) build(visiting map[*Builder]bool) (*domain.Graph, error) {
	if visiting[b] {
		return nil, fmt.Errorf("graph %q: cyclic embedding", b.name)
	}
	visiting[b] = true
	defer delete(visiting, b)

	g := domain.NewGraph(b.name)
	for _, f := range b.inputs {
		g.AddInput(f)
	}
	for _, f := range b.outputs {
		g.AddOutput(f)
	}

	env := registry.Env{
		Graph:   g,
		Scripts: b.scripts,
		Devices: b.devices,
		Update:  b.update,
		Resolve: func(ref string) (*domain.Graph, error) {
			child, ok := b.embeds[ref]
			if !ok {
				return nil, fmt.Errorf("no embedded graph %q", ref)
			}
			return child.build(visiting)
		},
	}

	var errs []error
	for _, nb := range b.blocks {
		def, err := b.registry.Build(env, nb.kind, nb.settings)
		var unresolved *registry.UnresolvedError
		switch {
		case errors.As(err, &unresolved):
			g.AddBlock(nb.name, def).Invalidate(unresolved.Err.Error())
		case err != nil:
			errs = append(errs, fmt.Errorf("block %q: %w", nb.name, err))
		default:
			g.AddBlock(nb.name, def)
		}
	}

	for _, l := range b.links {
		fromBlock, fromPort, ok1 := endpoint(l[0])
		toBlock, toPort, ok2 := endpoint(l[1])
		if !ok1 || !ok2 {
			errs = append(errs, fmt.Errorf("link %s -> %s: endpoints must be block.port", l[0], l[1]))
			continue
		}
		if err := g.ConnectNamed(fromBlock, fromPort, toBlock, toPort); err != nil {
			errs = append(errs, fmt.Errorf("link %s -> %s: %w", l[0], l[1], err))
		}
	}

	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}
	return g, nil
}

// endpoint splits "block.port" on the last dot.
func endpoint(s string) (block, port string, ok bool) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
