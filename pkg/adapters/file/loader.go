package file

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/internal/runtime"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/schema"
)

// ErrCyclicEmbedding is the reason a subgraph block is invalid when its file
// embeds itself, directly or through other files.
var ErrCyclicEmbedding = errors.New("cyclic embedding")

// SlotDoc declares an external slot of a graph.
type SlotDoc struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
}

// BlockDoc declares a block by kind; settings are decoded by the kind's
// constructor.
type BlockDoc struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Settings map[string]any `yaml:"settings"`
}

// LinkDoc connects "block.port" to "block.port".
type LinkDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Connect adds the link to g.
func (l LinkDoc) Connect(g *domain.Graph) error {
	fromBlock, fromPort, err := splitEndpoint(l.From)
	if err != nil {
		return err
	}
	toBlock, toPort, err := splitEndpoint(l.To)
	if err != nil {
		return err
	}
	return g.ConnectNamed(fromBlock, fromPort, toBlock, toPort)
}

// Touches reports whether either end of the link is on the named block.
func (l LinkDoc) Touches(block string) bool {
	from, _, _ := splitEndpoint(l.From)
	to, _, _ := splitEndpoint(l.To)
	return from == block || to == block
}

// GraphDoc is the YAML shape of a graph.
type GraphDoc struct {
	Name    string     `yaml:"name"`
	Inputs  []SlotDoc  `yaml:"inputs"`
	Outputs []SlotDoc  `yaml:"outputs"`
	Blocks  []BlockDoc `yaml:"blocks"`
	Links   []LinkDoc  `yaml:"links"`
}

// ProjectDoc is the YAML shape of a project file.
type ProjectDoc struct {
	GraphDoc   `yaml:",inline"`
	Procedures map[string]GraphDoc `yaml:"procedures"`
}

// Project is a loaded project file.
type Project struct {
	Path  string
	Graph *domain.Graph
	// Procedures builds a fresh graph per call, re-reading embedded files.
	Procedures map[string]func() (*domain.Graph, error)
	// Files lists every file the project was built from, sorted.
	Files []string
	// Embeds maps every file reached through a top-level subgraph block,
	// directly or through nested embeds, to the blocks it feeds.
	Embeds map[string][]string
	// Sources maps a top-level subgraph block to the file it embeds directly.
	Sources map[string]string
	// Pending holds top-level links dropped because an endpoint subgraph was
	// unavailable. They can be connected once the block is resynced.
	Pending []LinkDoc
}

// Loader builds graphs from YAML project files.
type Loader struct {
	registry *registry.Registry
	scripts  ports.ScriptRunner
	devices  map[string]ports.DeviceSink
	update   blocks.UpdateFunc
	logger   *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRegistry replaces the default kind registry.
func WithRegistry(r *registry.Registry) LoaderOption {
	return func(l *Loader) { l.registry = r }
}

// WithScripts sets the runner used by script blocks.
func WithScripts(r ports.ScriptRunner) LoaderOption {
	return func(l *Loader) { l.scripts = r }
}

// WithDevice binds a device name to its sink.
func WithDevice(name string, sink ports.DeviceSink) LoaderOption {
	return func(l *Loader) { l.devices[name] = sink }
}

// WithUpdate sets how embedded graphs are evaluated. Defaults to a fresh
// scheduler round.
func WithUpdate(fn blocks.UpdateFunc) LoaderOption {
	return func(l *Loader) { l.update = fn }
}

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader using the default kind registry.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		registry: registry.Default(),
		update:   runtime.UpdateGraph,
		devices:  make(map[string]ports.DeviceSink),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads a project file and builds its top-level graph. Every procedure
// is built once up front so errors surface at load time.
func (l *Loader) Load(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	doc, err := readProject(abs)
	if err != nil {
		return nil, err
	}

	b := l.builder(abs)
	p := &Project{
		Path:       abs,
		Procedures: make(map[string]func() (*domain.Graph, error)),
		Embeds:     make(map[string][]string),
		Sources:    make(map[string]string),
	}
	p.Graph, err = b.graph(doc.GraphDoc, filepath.Dir(abs), graphName(doc.Name, abs), p)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, name := range sortedKeys(doc.Procedures) {
		pd := doc.Procedures[name]
		p.Procedures[name] = func() (*domain.Graph, error) {
			return l.builder(abs).graph(pd, filepath.Dir(abs), name, nil)
		}
		if _, err := b.graph(pd, filepath.Dir(abs), name, nil); err != nil {
			errs = append(errs, fmt.Errorf("procedure %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}

	for f := range b.files {
		p.Files = append(p.Files, f)
	}
	sort.Strings(p.Files)
	l.logger.Debug("project loaded", "path", abs, "blocks", p.Graph.Len(), "procedures", len(p.Procedures))
	return p, nil
}

// LoadGraph builds only the graph of the file at path, ignoring its
// procedures.
func (l *Loader) LoadGraph(path string) (*domain.Graph, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	doc, err := readProject(abs)
	if err != nil {
		return nil, err
	}
	return l.builder(abs).graph(doc.GraphDoc, filepath.Dir(abs), graphName(doc.Name, abs), nil)
}

func (l *Loader) builder(root string) *builder {
	return &builder{
		loader:   l,
		files:    map[string]bool{root: true},
		visiting: map[string]bool{root: true},
	}
}

// builder tracks the files one load touches. visiting holds the chain of
// files currently being embedded, for cycle detection; touched collects the
// files reached while building one top-level block.
type builder struct {
	loader   *Loader
	files    map[string]bool
	visiting map[string]bool
	touched  map[string]bool
}

// graph builds doc. p is set only for the top level of a project, which
// records embeds and pending links into it.
func (b *builder) graph(doc GraphDoc, dir, name string, p *Project) (*domain.Graph, error) {
	l := b.loader
	g := domain.NewGraph(name)

	var errs []error
	for _, s := range doc.Inputs {
		f, err := slotField(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.AddInput(f)
	}
	for _, s := range doc.Outputs {
		f, err := slotField(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.AddOutput(f)
	}

	env := registry.Env{
		Graph:   g,
		Scripts: l.scripts,
		Devices: l.devices,
		Update:  l.update,
		Resolve: func(ref string) (*domain.Graph, error) { return b.resolve(dir, ref) },
	}
	for i, bd := range doc.Blocks {
		if bd.Name == "" {
			errs = append(errs, &schema.ValidationError{Key: fmt.Sprintf("blocks[%d]", i), Reason: "name is required"})
			continue
		}
		if _, dup := g.BlockByName(bd.Name); dup {
			errs = append(errs, &schema.ValidationError{Key: bd.Name, Reason: "duplicate block name"})
			continue
		}

		embedded := bd.Kind == blocks.KindSubGraph && p != nil
		var touched map[string]bool
		if embedded {
			touched = make(map[string]bool)
			b.touched = touched
		}
		def, err := l.registry.Build(env, bd.Kind, bd.Settings)
		if embedded {
			b.touched = nil
		}

		var unresolved *registry.UnresolvedError
		switch {
		case errors.As(err, &unresolved):
			blk := g.AddBlock(bd.Name, def)
			blk.Invalidate(unresolved.Err.Error())
			l.logger.Warn("subgraph unavailable", "graph", name, "block", bd.Name, "file", unresolved.Ref, "err", unresolved.Err)
		case err != nil:
			errs = append(errs, fmt.Errorf("block %q: %w", bd.Name, err))
			continue
		default:
			g.AddBlock(bd.Name, def)
		}

		if embedded {
			ref := embedPath(dir, fmt.Sprint(bd.Settings["file"]))
			touched[ref] = true
			p.Sources[bd.Name] = ref
			for _, f := range sortedKeys(touched) {
				p.Embeds[f] = append(p.Embeds[f], bd.Name)
			}
		}
	}

	for _, ld := range doc.Links {
		fromBlock, _, err := splitEndpoint(ld.From)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		toBlock, _, err := splitEndpoint(ld.To)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := ld.Connect(g); err != nil {
			// An unavailable subgraph has no ports yet; its links wait, they are not fatal.
			if invalidBlock(g, fromBlock) || invalidBlock(g, toBlock) {
				l.logger.Warn("link dropped", "graph", name, "from", ld.From, "to", ld.To, "err", err)
				if p != nil {
					p.Pending = append(p.Pending, ld)
				}
				continue
			}
			errs = append(errs, fmt.Errorf("link %s -> %s: %w", ld.From, ld.To, err))
		}
	}

	if len(errs) > 0 {
		return nil, &schema.AggregateError{Errors: errs}
	}
	return g, nil
}

func (b *builder) resolve(dir, ref string) (*domain.Graph, error) {
	abs := embedPath(dir, ref)
	if b.visiting[abs] {
		return nil, ErrCyclicEmbedding
	}
	b.files[abs] = true
	if b.touched != nil {
		b.touched[abs] = true
	}

	doc, err := readProject(abs)
	if err != nil {
		return nil, err
	}

	b.visiting[abs] = true
	defer delete(b.visiting, abs)
	return b.graph(doc.GraphDoc, filepath.Dir(abs), graphName(doc.Name, abs), nil)
}

func invalidBlock(g *domain.Graph, name string) bool {
	b, ok := g.BlockByName(name)
	return ok && !b.Valid()
}

func readProject(path string) (*ProjectDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	var doc ProjectDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}

func slotField(s SlotDoc) (schema.Field, error) {
	if s.Name == "" {
		return schema.Field{}, &schema.ValidationError{Key: "slot", Reason: "name is required"}
	}
	t, err := schema.ParseType(s.Type)
	if err != nil {
		return schema.Field{}, &schema.ValidationError{Key: s.Name, Reason: err.Error(), Value: s.Type}
	}
	return schema.Field{Name: s.Name, Type: t, Default: schema.FromGo(s.Default)}, nil
}

// splitEndpoint parses "block.port". Block names may contain dots; port
// names may not.
func splitEndpoint(s string) (block, port string, err error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", &schema.ValidationError{Key: "link", Reason: "expected block.port", Value: s}
	}
	return s[:i], s[i+1:], nil
}

func embedPath(dir, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(dir, ref)
}

func graphName(name, path string) string {
	if name != "" {
		return name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
