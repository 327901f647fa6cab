package runtime

import (
	"context"
	"log/slog"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
)

// Round reports what one Update did.
type Round struct {
	Evaluated int
	Batches   int
	// Stalled holds blocks left pending by a dependency cycle.
	Stalled []domain.BlockID
	// Failed holds blocks whose output function returned an error this round.
	Failed []domain.BlockID
}

// Scheduler evaluates the Computable blocks of a graph.
type Scheduler struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	clock  Clock
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger configures the structured logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithSchedulerHooks registers OnRound and OnInvalid callbacks.
func WithSchedulerHooks(hooks domain.LifecycleHooks) SchedulerOption {
	return func(s *Scheduler) {
		s.hooks = hooks
	}
}

// WithSchedulerClock sets the clock used for event timestamps.
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger: logging.NewNop(),
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateGraph runs one round on g with a default Scheduler.
func UpdateGraph(g *domain.Graph) {
	NewScheduler().Update(context.Background(), g)
}

// UpdateFunc binds Update to ctx, for embedding graphs in subgraph blocks.
func (s *Scheduler) UpdateFunc(ctx context.Context) func(g *domain.Graph) {
	return func(g *domain.Graph) {
		s.Update(ctx, g)
	}
}

// Update computes one round over g.
//
// Pending starts as every valid Computable block. Each batch takes the pending
// blocks none of whose DataFlow sinks is fed by another pending block,
// evaluates them and drops them from pending. When a batch comes up empty the
// remainder is a cycle: those blocks keep their previous outputs.
func (s *Scheduler) Update(ctx context.Context, g *domain.Graph) Round {
	start := s.clock.Now()
	var round Round

	pending := make(map[domain.BlockID]bool)
	var order []*domain.Block
	for _, b := range g.Blocks() {
		if b.Is(domain.Computable) && b.Valid() {
			pending[b.ID] = true
			order = append(order, b)
		}
	}

	for len(pending) > 0 {
		var batch []*domain.Block
		for _, b := range order {
			if pending[b.ID] && s.ready(g, b, pending) {
				batch = append(batch, b)
			}
		}
		if len(batch) == 0 {
			break
		}
		round.Batches++
		for _, b := range batch {
			if err := s.evaluate(g, b); err != nil {
				round.Failed = append(round.Failed, b.ID)
				invalidate(ctx, s.logger, s.hooks, s.clock, b, "", err.Error())
			} else {
				round.Evaluated++
			}
			delete(pending, b.ID)
		}
	}

	var stalledNames []string
	for _, b := range order {
		if pending[b.ID] {
			round.Stalled = append(round.Stalled, b.ID)
			stalledNames = append(stalledNames, b.Name)
		}
	}
	if len(stalledNames) > 0 {
		s.logger.Debug("dependency cycle, keeping previous outputs", "graph", g.Name, "blocks", stalledNames)
	}

	if s.hooks.OnRound != nil {
		s.hooks.OnRound(ctx, &domain.RoundEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventRound},
			Graph:     g.Name,
			Evaluated: round.Evaluated,
			Stalled:   stalledNames,
			Batches:   round.Batches,
			Duration:  s.clock.Now().Sub(start),
		})
	}
	return round
}

// ready reports whether no DataFlow sink of b is fed by a pending block.
func (s *Scheduler) ready(g *domain.Graph, b *domain.Block, pending map[domain.BlockID]bool) bool {
	for _, p := range g.PortGroup(b.ID, domain.DataFlow, domain.Sink) {
		if up, ok := g.Upstream(p.ID); ok && pending[up.Block] {
			return false
		}
	}
	return true
}

func (s *Scheduler) evaluate(g *domain.Graph, b *domain.Block) error {
	outputs, err := b.Compute(b.SettingValues(), PullInputs(g, b))
	if err != nil {
		return err
	}
	for _, p := range g.PortGroup(b.ID, domain.DataFlow, domain.Source) {
		if v, ok := outputs[p.Name]; ok {
			p.Value = v.Cast(p.Type)
		}
	}
	return nil
}

// invalidate flips b invalid and reports it once per transition.
func invalidate(ctx context.Context, logger *slog.Logger, hooks domain.LifecycleHooks, clock Clock, b *domain.Block, instanceID, reason string) {
	wasValid := b.Valid()
	b.Invalidate(reason)
	if !wasValid {
		return
	}
	logger.Warn("block invalidated", "block", b.Name, "kind", b.Kind, "reason", reason)
	if hooks.OnInvalid != nil {
		hooks.OnInvalid(ctx, &domain.InvalidEvent{
			EventBase: domain.EventBase{Timestamp: clock.Now(), Type: domain.EventInvalid, InstanceID: instanceID},
			BlockID:   b.ID,
			BlockName: b.Name,
			Reason:    reason,
		})
	}
}

// PullInputs copies every DataFlow sink of b from its upstream source, or
// from its unconnected value, and returns them by name.
func PullInputs(g *domain.Graph, b *domain.Block) schema.Values {
	sinks := g.PortGroup(b.ID, domain.DataFlow, domain.Sink)
	inputs := make(schema.Values, len(sinks))
	for _, p := range sinks {
		pull(g, p)
		inputs[p.Name] = p.Value
	}
	return inputs
}

func pull(g *domain.Graph, p *domain.Port) {
	if up, ok := g.Upstream(p.ID); ok {
		p.Value = up.Value.Cast(p.Type)
		return
	}
	p.Value = p.Unconnected
}
