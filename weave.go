package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/internal/runtime"
	"github.com/aretw0/weave/pkg/adapters/file"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/reconcile"
	"github.com/aretw0/weave/pkg/schema"
)

// Version is the weave release, overridden at build time via -ldflags.
var Version = "v0.1.0-dev"

// ErrNoLoader is returned by ReloadFile when the host has no GraphLoader.
var ErrNoLoader = errors.New("no graph loader configured")

// Host owns a top-level graph together with the engines that drive it.
// All methods are safe for concurrent use; each takes the host lock, so a
// tick never observes a half-applied mutation.
type Host struct {
	mu sync.Mutex

	graph     *domain.Graph
	scheduler *runtime.Scheduler
	engine    *runtime.Engine
	applier   *reconcile.Applier

	loader  ports.GraphLoader
	project *file.Loader
	root    string
	embeds  map[string][]string
	sources map[string]string
	pending []file.LinkDoc
	files   []string

	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	clock      runtime.Clock
	store      ports.InstanceStore
	newID      func() string
	loaderOpts []file.LoaderOption

	ticks uint64
	last  runtime.Round
}

// Option defines a functional option for configuring the Host.
type Option func(*Host)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(h *Host) {
		h.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the host.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithClock replaces the wall clock used by waits and events.
func WithClock(clock runtime.Clock) Option {
	return func(h *Host) {
		h.clock = clock
	}
}

// WithStore persists procedure instance snapshots.
func WithStore(store ports.InstanceStore) Option {
	return func(h *Host) {
		h.store = store
	}
}

// WithIDGenerator replaces the instance ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(h *Host) {
		h.newID = fn
	}
}

// WithLoader sets the loader ReloadFile uses to rebuild embedded graphs.
func WithLoader(l ports.GraphLoader) Option {
	return func(h *Host) {
		h.loader = l
	}
}

// WithEmbeds binds files to the subgraph blocks that embed them, for
// ReloadFile. Each block is rebuilt from the file it is bound to.
func WithEmbeds(embeds map[string][]string) Option {
	return func(h *Host) {
		h.embeds = embeds
	}
}

// WithLoaderOptions configures the file loader Open creates.
func WithLoaderOptions(opts ...file.LoaderOption) Option {
	return func(h *Host) {
		h.loaderOpts = append(h.loaderOpts, opts...)
	}
}

// New creates a host around g.
func New(g *domain.Graph, opts ...Option) *Host {
	h := &Host{
		graph:  g,
		logger: logging.NewNop(),
		clock:  runtime.SystemClock{},
		embeds: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.build()
	return h
}

// Open loads a YAML project and creates a host for it, registering every
// procedure the project declares.
func Open(path string, opts ...Option) (*Host, error) {
	h := &Host{
		logger: logging.NewNop(),
		clock:  runtime.SystemClock{},
	}
	for _, opt := range opts {
		opt(h)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	loaderOpts := append([]file.LoaderOption{
		file.WithLogger(h.logger),
		// Embedded graphs run through the host scheduler, which build sets up
		// before the first round.
		file.WithUpdate(func(g *domain.Graph) { h.scheduler.Update(context.Background(), g) }),
	}, h.loaderOpts...)
	loader := file.NewLoader(loaderOpts...)
	project, err := loader.Load(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	h.root = absPath
	h.project = loader
	if h.loader == nil {
		h.loader = loader
	}
	h.logger = h.logger.With("graph", project.Graph.Name)
	h.build()
	h.adopt(project)
	return h, nil
}

// adopt takes over a loaded project's graph and bookkeeping and registers
// its procedures. Running instances keep the graphs they were built with.
func (h *Host) adopt(project *file.Project) {
	h.graph = project.Graph
	h.embeds = project.Embeds
	h.sources = project.Sources
	h.pending = project.Pending
	h.files = project.Files
	for name, factory := range project.Procedures {
		h.engine.Register(name, factory)
	}
}

func (h *Host) build() {
	h.scheduler = runtime.NewScheduler(
		runtime.WithSchedulerLogger(h.logger),
		runtime.WithSchedulerHooks(h.hooks),
		runtime.WithSchedulerClock(h.clock),
	)
	engineOpts := []runtime.Option{
		runtime.WithLogger(h.logger),
		runtime.WithHooks(h.hooks),
		runtime.WithClock(h.clock),
		runtime.WithScheduler(h.scheduler),
	}
	if h.store != nil {
		engineOpts = append(engineOpts, runtime.WithStore(h.store))
	}
	if h.newID != nil {
		engineOpts = append(engineOpts, runtime.WithIDGenerator(h.newID))
	}
	h.engine = runtime.NewEngine(engineOpts...)
	h.applier = reconcile.NewApplier(
		reconcile.WithLogger(h.logger),
		reconcile.WithHooks(h.hooks),
		reconcile.WithClock(h.clock),
	)
}

// Name returns the top-level graph's name.
func (h *Host) Name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.graph.Name
}

// Files lists the files the host was opened from, for watching.
func (h *Host) Files() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.files)
}

// Register makes a procedure launchable by name.
func (h *Host) Register(name string, f runtime.Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.engine.Register(name, f)
}

// Procedures returns the registered procedure names, sorted.
func (h *Host) Procedures() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Procedures()
}

// Tick runs one round over the top-level graph, then advances every running
// procedure instance once.
func (h *Host) Tick(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = h.scheduler.Update(ctx, h.graph)
	h.ticks++
	return h.engine.Tick(ctx)
}

// Ticks counts the Tick calls so far.
func (h *Host) Ticks() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ticks
}

// LastRound reports what the most recent Tick evaluated.
func (h *Host) LastRound() runtime.Round {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Start launches a new instance of the named procedure and returns its ID.
func (h *Host) Start(ctx context.Context, procedure string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, err := h.engine.Launch(ctx, procedure)
	if err != nil {
		return "", err
	}
	h.logger.Info("procedure launched", "procedure", procedure, "instance", inst.ID)
	return inst.ID, nil
}

// Stop stops a running instance, running its end steps.
func (h *Host) Stop(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Stop(ctx, id)
}

// Remove stops and forgets an instance, deleting its snapshot.
func (h *Host) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.Remove(ctx, id)
}

// Resume restores every running instance found in the store. Instances of
// procedures that are no longer registered are skipped.
func (h *Host) Resume(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store == nil {
		return nil, nil
	}
	ids, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	var resumed []string
	for _, id := range ids {
		snap, err := h.store.Load(ctx, id)
		if err != nil {
			return resumed, fmt.Errorf("failed to load instance %s: %w", id, err)
		}
		if !snap.Running() {
			continue
		}
		if _, err := h.engine.Restore(ctx, snap); err != nil {
			h.logger.Warn("instance not resumed", "instance", id, "procedure", snap.Procedure, "err", err)
			continue
		}
		resumed = append(resumed, id)
	}
	return resumed, nil
}

// Instance returns a snapshot of a live instance.
func (h *Host) Instance(id string) (*domain.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.engine.Instance(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	return inst.Snapshot(), nil
}

// Instances returns snapshots of every live instance, in creation order.
func (h *Host) Instances() []*domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*domain.Snapshot
	for _, inst := range h.engine.Instances() {
		out = append(out, inst.Snapshot())
	}
	return out
}

// ViewInstance runs fn with a live instance's graph under the host lock.
func (h *Host) ViewInstance(id string, fn func(g *domain.Graph, active []string)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst, ok := h.engine.Instance(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	fn(inst.Graph, inst.Snapshot().Active)
	return nil
}

// Outputs snapshots the top-level graph's output slots.
func (h *Host) Outputs() schema.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.graph.OutputValues()
}

// SetInput assigns a top-level input slot; it is read on the next Tick.
func (h *Host) SetInput(name string, v schema.Value) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.graph.SetInput(name, v)
}

// View runs fn with the top-level graph under the host lock. fn must not
// retain the graph.
func (h *Host) View(fn func(g *domain.Graph)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.graph)
}

// Mutate runs fn with exclusive access to the top-level graph, between ticks.
func (h *Host) Mutate(fn func(g *domain.Graph) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.graph)
}

// Reload points the named subgraph block at a new child graph, reconciling
// its ports so wiring survives. A nil child marks the block invalid.
func (h *Host) Reload(ctx context.Context, blockName string, child *domain.Graph) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reload(ctx, blockName, child)
}

func (h *Host) reload(ctx context.Context, blockName string, child *domain.Graph) error {
	b, ok := h.graph.BlockByName(blockName)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBlockNotFound, blockName)
	}
	if err := blocks.Resync(ctx, h.applier, h.graph, b.ID, child, h.scheduler.UpdateFunc(context.WithoutCancel(ctx))); err != nil {
		return fmt.Errorf("reload %s: %w", blockName, err)
	}
	h.logger.Info("subgraph reloaded", "block", blockName, "valid", b.Valid())
	if b.Valid() {
		h.reconnect(blockName)
	}
	return nil
}

// reconnect retries the links dropped while blockName was unavailable.
// Links that still do not fit stay pending.
func (h *Host) reconnect(blockName string) {
	var still []file.LinkDoc
	for _, ld := range h.pending {
		if !ld.Touches(blockName) {
			still = append(still, ld)
			continue
		}
		if err := ld.Connect(h.graph); err != nil {
			h.logger.Debug("link still pending", "from", ld.From, "to", ld.To, "err", err)
			still = append(still, ld)
			continue
		}
		h.logger.Info("link restored", "from", ld.From, "to", ld.To)
	}
	h.pending = still
}

// ReloadFile reacts to a change of path. For the project file itself the
// top-level graph is rebuilt, keeping input values. Otherwise every
// top-level subgraph block that reaches path, directly or through nested
// embeds, is rebuilt from the file it embeds and resynced; a file that no
// longer loads invalidates those blocks.
func (h *Host) ReloadFile(ctx context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loader == nil {
		return ErrNoLoader
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if abs == h.root && h.project != nil {
		return h.reloadProject(ctx)
	}
	names := h.embeds[abs]
	if len(names) == 0 {
		h.logger.Debug("no subgraph bound to file", "path", abs)
		return nil
	}

	var errs []error
	for _, name := range names {
		src := h.sources[name]
		if src == "" {
			src = abs
		}
		// Every block embeds its own instance of the child.
		child, err := h.loader.LoadGraph(src)
		if err != nil {
			h.logger.Warn("reload failed", "path", src, "block", name, "err", err)
			child = nil
		}
		if err := h.reload(ctx, name, child); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reloadProject rebuilds the top-level graph from the project file. Input
// slots are reconciled against the new declaration so set values follow
// renames and retypes. A project that no longer loads leaves the current
// graph running.
func (h *Host) reloadProject(ctx context.Context) error {
	project, err := h.project.Load(h.root)
	if err != nil {
		h.logger.Warn("project reload failed, keeping current graph", "path", h.root, "err", err)
		return fmt.Errorf("reload project: %w", err)
	}

	inputs, _ := h.applier.Slots(ctx, project.Graph.Name, "inputs", h.graph.Inputs, project.Graph.InputFields())
	for i, s := range inputs {
		project.Graph.Inputs[i].Value = s.Value.Cast(project.Graph.Inputs[i].Type)
	}
	h.adopt(project)
	h.logger.Info("project reloaded", "path", h.root, "blocks", project.Graph.Len(), "pending_links", len(h.pending))
	return nil
}
