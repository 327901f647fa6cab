package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

// Applier mutates blocks and slots to follow a reconciliation.
type Applier struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	clock  Clock
}

// Clock stamps reconcile events.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Option configures the Applier.
type Option func(*Applier)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

// WithHooks registers lifecycle callbacks; OnReconcile fires per applied result.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Applier) {
		a.hooks = hooks
	}
}

// WithClock replaces the wall clock used for event timestamps.
func WithClock(clock Clock) Option {
	return func(a *Applier) {
		a.clock = clock
	}
}

// NewApplier creates an Applier.
func NewApplier(opts ...Option) *Applier {
	a := &Applier{logger: logging.NewNop(), clock: wallClock{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// portGroups is the order in which Block resyncs a definition.
var portGroups = []struct {
	class domain.PortClass
	dir   domain.Direction
}{
	{domain.DataFlow, domain.Sink},
	{domain.DataFlow, domain.Source},
	{domain.ControlFlow, domain.Sink},
	{domain.ControlFlow, domain.Source},
}

// Block brings an existing block in line with a new definition: every port
// group and the settings are reconciled, and the behaviours are swapped.
// Validity is left alone; callers revalidate once the resync succeeded.
func (a *Applier) Block(ctx context.Context, g *domain.Graph, id domain.BlockID, def domain.Definition) error {
	b, ok := g.Block(id)
	if !ok {
		return &domain.StructuralError{Op: "resync", Block: id, Err: domain.ErrBlockNotFound}
	}
	for _, grp := range portGroups {
		var specs []domain.PortSpec
		for _, s := range def.Ports {
			if s.Class == grp.class && s.Direction == grp.dir {
				specs = append(specs, s)
			}
		}
		if _, err := a.Ports(ctx, g, id, grp.class, grp.dir, specs); err != nil {
			return err
		}
	}
	a.Settings(ctx, b, def.Settings)
	b.Kind = def.Kind
	b.Compute = def.Compute
	b.Step = def.Step
	b.Branching = def.Branching
	return nil
}

// Ports reconciles one class/direction group of a block's ports against next.
// Matched ports are renamed and retyped in place so their links survive;
// removed ports are severed; new ports start from the spec default.
func (a *Applier) Ports(ctx context.Context, g *domain.Graph, id domain.BlockID, class domain.PortClass, dir domain.Direction, next []domain.PortSpec) (Result, error) {
	b, ok := g.Block(id)
	if !ok {
		return Result{}, &domain.StructuralError{Op: "resync ports", Block: id, Err: domain.ErrBlockNotFound}
	}
	group := g.PortGroup(id, class, dir)
	current := make([]schema.Field, len(group))
	for i, p := range group {
		current[i] = p.Field()
	}
	nextFields := make([]schema.Field, len(next))
	for i, s := range next {
		nextFields[i] = s.Field
	}

	res := Reconcile(nextFields, current)
	for _, m := range res.Matched {
		p, spec := group[m.Current], next[m.Next]
		if err := g.RenamePort(p.ID, spec.Name); err != nil {
			return res, err
		}
		if err := g.RetypePort(p.ID, spec.Type); err != nil {
			return res, err
		}
		if !spec.Default.IsNone() {
			p.Unconnected = spec.Initial()
		}
	}
	for _, j := range res.Removed {
		if err := g.RemovePort(id, group[j].ID); err != nil {
			return res, err
		}
	}
	for _, i := range res.Added {
		if _, err := g.AddPort(id, next[i]); err != nil {
			return res, err
		}
	}

	a.report(ctx, b.Name, fmt.Sprintf("%s %ss", class, dir), res, nextFields, current)
	return res, nil
}

// Settings reconciles a block's settings against next. Matched values are
// re-cast to their new type; the result follows next's order.
func (a *Applier) Settings(ctx context.Context, b *domain.Block, next []schema.Field) Result {
	current := make([]schema.Field, len(b.Settings))
	for i, s := range b.Settings {
		current[i] = s.Field()
	}
	res := Reconcile(next, current)

	out := make([]domain.Setting, len(next))
	for _, m := range res.Matched {
		f := next[m.Next]
		out[m.Next] = domain.Setting{Name: f.Name, Type: f.Type, Value: b.Settings[m.Current].Value.Cast(f.Type)}
	}
	for _, i := range res.Added {
		f := next[i]
		out[i] = domain.Setting{Name: f.Name, Type: f.Type, Value: f.Initial()}
	}
	b.Settings = out

	a.report(ctx, b.Name, "settings", res, next, current)
	return res
}

// Slots reconciles a graph's external slots against next and returns the
// new slot list. Matched slots keep their identity, so blocks bound to them
// stay bound.
func (a *Applier) Slots(ctx context.Context, owner, target string, slots []*domain.Slot, next []schema.Field) ([]*domain.Slot, Result) {
	current := make([]schema.Field, len(slots))
	for i, s := range slots {
		current[i] = s.Field()
	}
	res := Reconcile(next, current)

	out := make([]*domain.Slot, len(next))
	for _, m := range res.Matched {
		s, f := slots[m.Current], next[m.Next]
		s.Name = f.Name
		s.Type = f.Type
		s.Value = s.Value.Cast(f.Type)
		s.Default = f.Default
		out[m.Next] = s
	}
	for _, i := range res.Added {
		f := next[i]
		out[i] = &domain.Slot{Name: f.Name, Type: f.Type, Value: f.Initial(), Default: f.Default}
	}

	a.report(ctx, owner, target, res, next, current)
	return out, res
}

func (a *Applier) report(ctx context.Context, block, target string, res Result, next, current []schema.Field) {
	for _, m := range res.Matched {
		if m.Pass == ByName {
			continue
		}
		lvl := slog.LevelDebug
		if m.Pass == ByPosition {
			lvl = slog.LevelInfo
		}
		a.logger.Log(ctx, lvl, "reconciled entry",
			"block", block,
			"target", target,
			"pass", m.Pass.String(),
			"from", current[m.Current].String(),
			"to", next[m.Next].String(),
		)
	}
	if len(res.Removed) > 0 {
		names := make([]string, len(res.Removed))
		for i, j := range res.Removed {
			names[i] = current[j].Name
		}
		a.logger.Debug("removed entries", "block", block, "target", target, "names", names)
	}

	if a.hooks.OnReconcile != nil {
		a.hooks.OnReconcile(ctx, &domain.ReconcileEvent{
			EventBase:  domain.EventBase{Timestamp: a.clock.Now(), Type: domain.EventReconcile},
			Block:      block,
			Target:     target,
			Matched:    len(res.Matched),
			Added:      len(res.Added),
			Removed:    len(res.Removed),
			Positional: res.Positional(),
		})
	}
}
