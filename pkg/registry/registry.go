// Package registry maps block kind names, as written in project files, to
// constructors of block definitions.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
)

// ErrUnknownKind is returned when building a kind that was never registered.
var ErrUnknownKind = errors.New("unknown block kind")

// Env carries what a constructor may need besides its own settings.
type Env struct {
	// Graph is the graph the block is being added to.
	Graph *domain.Graph
	// Scripts runs script blocks and script actions.
	Scripts ports.ScriptRunner
	// Devices maps device names to their sinks.
	Devices map[string]ports.DeviceSink
	// Resolve loads the graph a subgraph block embeds.
	Resolve func(ref string) (*domain.Graph, error)
	// Update evaluates embedded graphs.
	Update blocks.UpdateFunc
}

// Constructor builds a block definition from generic settings, as decoded
// from a project file.
type Constructor func(env Env, settings map[string]any) (domain.Definition, error)

// UnresolvedError reports a subgraph whose child could not be loaded. The
// definition returned alongside it is still usable; the block starts invalid.
type UnresolvedError struct {
	Ref string
	Err error
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("subgraph %s: %v", e.Ref, e.Err)
}

func (e *UnresolvedError) Unwrap() error { return e.Err }

// Registry maps block kinds to their constructors.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Constructor
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Constructor),
	}
}

// Default returns a registry holding every kind of the blocks package.
func Default() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

// Register adds a kind to the registry.
// If a kind with the same name exists, it is overwritten.
func (r *Registry) Register(kind string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = c
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build looks up kind and constructs a definition from settings.
func (r *Registry) Build(env Env, kind string, settings map[string]any) (domain.Definition, error) {
	r.mu.RLock()
	c, ok := r.kinds[kind]
	r.mu.RUnlock()

	if !ok {
		return domain.Definition{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if env.Update == nil {
		env.Update = func(*domain.Graph) {}
	}
	def, err := c(env, settings)
	if err != nil {
		var unresolved *UnresolvedError
		if errors.As(err, &unresolved) {
			return def, err
		}
		return domain.Definition{}, fmt.Errorf("%s: %w", kind, err)
	}
	return def, nil
}
