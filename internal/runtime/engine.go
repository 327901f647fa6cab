package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
)

// MaxCallDepth bounds nested sub-procedure launches.
const MaxCallDepth = 32

// Factory builds a fresh graph for each new instance of a procedure.
type Factory func() (*domain.Graph, error)

// childWatch is a parent's completion callback for one child instance.
type childWatch struct {
	parent string
	onDone func()
}

// Engine runs procedure instances.
type Engine struct {
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	clock     Clock
	store     ports.InstanceStore
	scheduler *Scheduler
	newID     func() string

	procedures map[string]Factory
	instances  map[string]*Instance
	order      []string
	watches    map[string]childWatch
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock replaces the wall clock, e.g. with a manual clock in tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithStore saves a snapshot after every transition.
func WithStore(store ports.InstanceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithScheduler sets the scheduler used to evaluate sibling Computables.
func WithScheduler(s *Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithIDGenerator replaces the UUID instance ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// NewEngine creates an Engine with no registered procedures.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:     logging.NewNop(),
		clock:      SystemClock{},
		newID:      uuid.NewString,
		procedures: make(map[string]Factory),
		instances:  make(map[string]*Instance),
		watches:    make(map[string]childWatch),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler == nil {
		e.scheduler = NewScheduler(
			WithSchedulerLogger(e.logger),
			WithSchedulerHooks(e.hooks),
			WithSchedulerClock(e.clock),
		)
	}
	return e
}

// Register makes a procedure launchable by name, replacing any previous one.
func (e *Engine) Register(name string, f Factory) {
	e.procedures[name] = f
}

// Procedures returns the registered names, sorted.
func (e *Engine) Procedures() []string {
	return slices.Sorted(maps.Keys(e.procedures))
}

// Instance looks up a live instance.
func (e *Engine) Instance(id string) (*Instance, bool) {
	inst, ok := e.instances[id]
	return inst, ok
}

// Instances returns every live instance in creation order.
func (e *Engine) Instances() []*Instance {
	out := make([]*Instance, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.instances[id])
	}
	return out
}

// Spawn creates an idle instance of a registered procedure.
func (e *Engine) Spawn(name, parent string) (*Instance, error) {
	return e.spawn(e.newID(), name, parent)
}

func (e *Engine) spawn(id, name, parent string) (*Instance, error) {
	factory, ok := e.procedures[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProcedure, name)
	}
	g, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to build procedure %s: %w", name, err)
	}
	inst := newInstance(id, name, parent, g)
	if p, ok := e.instances[parent]; ok {
		inst.depth = p.depth + 1
	}
	e.instances[id] = inst
	e.order = append(e.order, id)
	return inst, nil
}

// Launch spawns an instance and starts it.
func (e *Engine) Launch(ctx context.Context, name string) (*Instance, error) {
	inst, err := e.Spawn(name, "")
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx, inst.ID); err != nil {
		e.forget(inst.ID)
		return nil, err
	}
	return inst, nil
}

// Start activates the instance's start step and advances it once.
func (e *Engine) Start(ctx context.Context, id string) error {
	inst, err := e.lookup(id)
	if err != nil {
		return err
	}
	if inst.Running() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, id)
	}
	starts := inst.Graph.BlocksOfKind(domain.KindStart)
	if len(starts) == 0 {
		return fmt.Errorf("%s: %w", inst.Procedure, domain.ErrNoStartStep)
	}

	now := e.clock.Now()
	inst.active = nil
	inst.steps = make(map[domain.BlockID]*domain.StepState)
	inst.ended = make(map[domain.BlockID]bool)
	inst.ticks = 0
	inst.startedAt = now
	inst.updatedAt = now
	inst.status = domain.StatusRunning

	e.logger.Debug("procedure started", "procedure", inst.Procedure, "instance", inst.ID)
	if e.hooks.OnProcedureStart != nil {
		e.hooks.OnProcedureStart(ctx, &domain.ProcedureEvent{
			EventBase: e.event(domain.EventProcedureStart, inst),
			Procedure: inst.Procedure,
			Parent:    inst.Parent,
		})
	}

	e.activate(ctx, inst, starts[0])
	return e.advance(ctx, inst)
}

// Advance runs one tick of a running instance. Idle instances are left alone.
func (e *Engine) Advance(ctx context.Context, id string) error {
	inst, err := e.lookup(id)
	if err != nil {
		return err
	}
	return e.advance(ctx, inst)
}

// Stop clears the active set and runs the end sequence. Stopping an idle
// instance does nothing.
func (e *Engine) Stop(ctx context.Context, id string) error {
	inst, err := e.lookup(id)
	if err != nil {
		return err
	}
	return e.stop(ctx, inst)
}

// Tick delivers finished-child callbacks, then advances every instance that
// was running when the tick began.
func (e *Engine) Tick(ctx context.Context) error {
	e.pollChildren(ctx)

	var errs []error
	for _, id := range slices.Clone(e.order) {
		inst, ok := e.instances[id]
		if !ok || !inst.Running() {
			continue
		}
		if err := e.advance(ctx, inst); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Remove stops an instance if needed and forgets it, including its snapshot.
func (e *Engine) Remove(ctx context.Context, id string) error {
	inst, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := e.stop(ctx, inst); err != nil {
		return err
	}
	e.forget(id)
	if e.store != nil {
		if err := e.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
		}
	}
	return nil
}

// Restore rebuilds an instance from a snapshot. Step states and the active
// set are taken as saved; steps are not re-activated. A step waiting on a
// child is watched again: it completes when the child goes idle, or on the
// next Tick if the child was never restored.
func (e *Engine) Restore(ctx context.Context, snap *domain.Snapshot) (*Instance, error) {
	if _, exists := e.instances[snap.ID]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, snap.ID)
	}
	inst, err := e.spawn(snap.ID, snap.Procedure, snap.Parent)
	if err != nil {
		return nil, err
	}

	for name, st := range snap.Steps {
		b, ok := inst.Graph.BlockByName(name)
		if !ok {
			e.logger.Info("dropping state of unknown step", "instance", snap.ID, "step", name)
			continue
		}
		restored := st
		inst.steps[b.ID] = &restored
		if restored.Child != "" && !restored.ChildDone {
			e.rewatch(inst.ID, &restored)
		}
	}
	for _, name := range snap.Active {
		if b, ok := inst.Graph.BlockByName(name); ok && b.Is(domain.Steppable) {
			inst.active = append(inst.active, b.ID)
		}
	}
	for name, v := range snap.Outputs {
		if slot, ok := inst.Graph.Output(name); ok {
			slot.Value = v.Cast(slot.Type)
		}
	}
	inst.ticks = snap.Ticks
	inst.startedAt = snap.StartedAt
	inst.updatedAt = snap.UpdatedAt
	if snap.Running() && len(inst.active) > 0 {
		inst.status = domain.StatusRunning
	}

	e.logger.Info("instance restored", "instance", inst.ID, "procedure", inst.Procedure, "status", inst.status)
	return inst, nil
}

func (e *Engine) lookup(id string) (*Instance, error) {
	inst, ok := e.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
	}
	return inst, nil
}

func (e *Engine) forget(id string) {
	delete(e.instances, id)
	e.order = slices.DeleteFunc(e.order, func(x string) bool { return x == id })
}

func (e *Engine) advance(ctx context.Context, inst *Instance) error {
	if !inst.Running() {
		return nil
	}
	e.scheduler.Update(ctx, inst.Graph)
	inst.ticks++

	executed := make(map[domain.BlockID]bool)
	for _, id := range inst.Active() {
		if executed[id] || !inst.IsActive(id) {
			continue
		}
		b, ok := inst.Graph.Block(id)
		if !ok {
			inst.deactivate(id)
			continue
		}
		if !b.Valid() || !b.Is(domain.Steppable) {
			continue
		}
		executed[id] = true

		fired := b.Step.Execute(e.stepContext(ctx, inst, b))
		if fired == nil {
			continue
		}
		if b.Branching == domain.Exclusive && len(fired) > 1 {
			fired = fired[:1]
		}
		inst.deactivate(id)
		if b.Kind == domain.KindEnd {
			inst.ended[id] = true
		}
		e.stepEvent(ctx, e.hooks.OnStepLeave, domain.EventStepLeave, inst, b, fired)

		for _, name := range fired {
			e.fire(ctx, inst, b, name)
		}
	}

	inst.updatedAt = e.clock.Now()
	if len(inst.active) == 0 {
		return e.stop(ctx, inst)
	}
	e.save(ctx, inst)
	return nil
}

// fire moves a token from one ControlFlow source to every linked sink.
func (e *Engine) fire(ctx context.Context, inst *Instance, b *domain.Block, portName string) {
	src, ok := inst.Graph.FindPort(b.ID, domain.Source, portName)
	if !ok || src.Class != domain.ControlFlow {
		e.logger.Warn("step fired unknown port", "instance", inst.ID, "block", b.Name, "port", portName)
		return
	}
	for _, sinkID := range inst.Graph.Links(src.ID) {
		sink, ok := inst.Graph.Port(sinkID)
		if !ok {
			continue
		}
		target, ok := inst.Graph.Block(sink.Block)
		if !ok || inst.IsActive(target.ID) {
			continue
		}
		e.activate(ctx, inst, target)
	}
}

func (e *Engine) activate(ctx context.Context, inst *Instance, b *domain.Block) {
	if !b.Is(domain.Steppable) {
		e.logger.Debug("ignoring trigger of non-steppable block", "instance", inst.ID, "block", b.Name)
		return
	}
	inst.active = append(inst.active, b.ID)
	st := inst.state(b.ID)
	st.ActivatedAt = e.clock.Now()
	st.Progress = 0
	st.Child = ""
	st.ChildDone = false

	if b.Valid() {
		b.Step.Activate(e.stepContext(ctx, inst, b))
	}
	e.stepEvent(ctx, e.hooks.OnStepEnter, domain.EventStepEnter, inst, b, nil)
}

func (e *Engine) stop(ctx context.Context, inst *Instance) error {
	if !inst.Running() {
		return nil
	}
	inst.active = nil
	for child, w := range e.watches {
		if w.parent == inst.ID {
			delete(e.watches, child)
		}
	}

	e.scheduler.Update(ctx, inst.Graph)
	for _, b := range inst.Graph.BlocksOfKind(domain.KindEnd) {
		if inst.ended[b.ID] || !b.Valid() || !b.Is(domain.Steppable) {
			continue
		}
		sc := e.stepContext(ctx, inst, b)
		st := inst.state(b.ID)
		st.ActivatedAt = e.clock.Now()
		b.Step.Activate(sc)
		b.Step.Execute(sc)
		inst.ended[b.ID] = true
	}

	inst.status = domain.StatusIdle
	inst.updatedAt = e.clock.Now()
	e.logger.Debug("procedure stopped", "procedure", inst.Procedure, "instance", inst.ID, "ticks", inst.ticks)
	if e.hooks.OnProcedureStop != nil {
		e.hooks.OnProcedureStop(ctx, &domain.ProcedureEvent{
			EventBase: e.event(domain.EventProcedureStop, inst),
			Procedure: inst.Procedure,
			Parent:    inst.Parent,
		})
	}
	e.save(ctx, inst)
	return nil
}

func (e *Engine) launchChild(ctx context.Context, parent *Instance, name string, onDone func()) (string, error) {
	if parent.depth >= MaxCallDepth {
		return "", fmt.Errorf("call depth %d exceeded launching %s", MaxCallDepth, name)
	}
	child, err := e.Spawn(name, parent.ID)
	if err != nil {
		return "", err
	}
	e.watches[child.ID] = childWatch{parent: parent.ID, onDone: onDone}
	if err := e.Start(ctx, child.ID); err != nil {
		delete(e.watches, child.ID)
		e.forget(child.ID)
		return "", err
	}
	return child.ID, nil
}

// rewatch re-registers the completion callback of a restored step's child.
func (e *Engine) rewatch(parent string, st *domain.StepState) {
	childID := st.Child
	e.watches[childID] = childWatch{parent: parent, onDone: func() {
		if st.Child == childID {
			st.ChildDone = true
		}
	}}
}

// pollChildren runs, exactly once, the callback of every watched child that
// went idle, and forgets the child.
func (e *Engine) pollChildren(ctx context.Context) {
	for _, childID := range slices.Sorted(maps.Keys(e.watches)) {
		w, ok := e.watches[childID]
		if !ok {
			continue
		}
		child, live := e.instances[childID]
		if live && child.Running() {
			continue
		}
		delete(e.watches, childID)
		e.logger.Debug("child finished", "parent", w.parent, "child", childID)
		w.onDone()
		if live {
			e.forget(childID)
		}
	}
}

func (e *Engine) save(ctx context.Context, inst *Instance) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, inst.Snapshot()); err != nil {
		e.logger.Warn("failed to save instance snapshot", "instance", inst.ID, "error", err)
	}
}

func (e *Engine) stepContext(ctx context.Context, inst *Instance, b *domain.Block) *stepContext {
	return &stepContext{ctx: ctx, e: e, inst: inst, block: b}
}

func (e *Engine) event(t domain.EventType, inst *Instance) domain.EventBase {
	return domain.EventBase{Timestamp: e.clock.Now(), Type: t, InstanceID: inst.ID}
}

func (e *Engine) stepEvent(ctx context.Context, fn func(context.Context, *domain.StepEvent), t domain.EventType, inst *Instance, b *domain.Block, fired []string) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.StepEvent{
		EventBase: e.event(t, inst),
		Procedure: inst.Procedure,
		BlockID:   b.ID,
		BlockName: b.Name,
		Kind:      b.Kind,
		Fired:     fired,
	})
}
