package runtime

import (
	"slices"
	"time"

	"github.com/aretw0/weave/pkg/domain"
)

// Instance is one run of a procedure over its own graph.
type Instance struct {
	ID        string
	Procedure string
	Parent    string
	Graph     *domain.Graph

	status    domain.Status
	active    []domain.BlockID
	steps     map[domain.BlockID]*domain.StepState
	ended     map[domain.BlockID]bool
	depth     int
	ticks     uint64
	startedAt time.Time
	updatedAt time.Time
}

func newInstance(id, procedure, parent string, g *domain.Graph) *Instance {
	return &Instance{
		ID:        id,
		Procedure: procedure,
		Parent:    parent,
		Graph:     g,
		status:    domain.StatusIdle,
		steps:     make(map[domain.BlockID]*domain.StepState),
		ended:     make(map[domain.BlockID]bool),
	}
}

// Status returns the instance's lifecycle state.
func (i *Instance) Status() domain.Status { return i.status }

// Running reports whether the instance has active steps.
func (i *Instance) Running() bool { return i.status == domain.StatusRunning }

// Active returns the active step set in activation order.
func (i *Instance) Active() []domain.BlockID { return slices.Clone(i.active) }

// IsActive reports whether the step is in the active set.
func (i *Instance) IsActive(id domain.BlockID) bool { return slices.Contains(i.active, id) }

// StepState returns a copy of a step's progress state.
func (i *Instance) StepState(id domain.BlockID) (domain.StepState, bool) {
	st, ok := i.steps[id]
	if !ok {
		return domain.StepState{}, false
	}
	return *st, true
}

// Ticks counts the Advance calls since the last Start.
func (i *Instance) Ticks() uint64 { return i.ticks }

// Snapshot captures the instance for persistence or inspection.
func (i *Instance) Snapshot() *domain.Snapshot {
	s := &domain.Snapshot{
		ID:        i.ID,
		Procedure: i.Procedure,
		Parent:    i.Parent,
		Status:    i.status,
		Outputs:   i.Graph.OutputValues(),
		Ticks:     i.ticks,
		StartedAt: i.startedAt,
		UpdatedAt: i.updatedAt,
	}
	for _, id := range i.active {
		if b, ok := i.Graph.Block(id); ok {
			s.Active = append(s.Active, b.Name)
		}
	}
	if len(i.steps) > 0 {
		s.Steps = make(map[string]domain.StepState, len(i.steps))
		for id, st := range i.steps {
			if b, ok := i.Graph.Block(id); ok {
				s.Steps[b.Name] = *st
			}
		}
	}
	return s
}

func (i *Instance) state(id domain.BlockID) *domain.StepState {
	st, ok := i.steps[id]
	if !ok {
		st = &domain.StepState{}
		i.steps[id] = st
	}
	return st
}

func (i *Instance) deactivate(id domain.BlockID) {
	i.active = slices.DeleteFunc(i.active, func(x domain.BlockID) bool { return x == id })
}
