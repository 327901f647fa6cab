package domain

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/pkg/schema"
)

// BlockID is a stable handle into a Graph's block arena.
type BlockID uint64

// Block kinds the procedure engine treats specially.
const (
	KindStart = "start"
	KindEnd   = "end"
)

// Standard port names shared by step blocks.
const (
	PortBegin     = "begin"
	PortCompleted = "completed"
)

// Capability is the tag both engines dispatch on.
type Capability uint8

const (
	Computable Capability = 1 << iota
	Steppable

	Neither Capability = 0
	Both               = Computable | Steppable
)

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	switch c {
	case Computable:
		return "computable"
	case Steppable:
		return "steppable"
	case Both:
		return "computable+steppable"
	default:
		return "none"
	}
}

// BranchMode says how many completed ports a step may fire per completion.
type BranchMode uint8

const (
	// Exclusive steps fire at most one port per completion (If, Loop, plain steps).
	Exclusive BranchMode = iota
	// Parallel steps may fire several ports at once (Fork).
	Parallel
)

// ComputeFunc is a Computable block's output function.
// It must not retain or mutate the maps it receives.
type ComputeFunc func(settings, inputs schema.Values) (schema.Values, error)

// StepState is the per-instance progress a step keeps between ticks.
type StepState struct {
	Iteration   int       `json:"iteration,omitempty"`
	ActivatedAt time.Time `json:"activated_at"`
	Child       string    `json:"child,omitempty"`
	ChildDone   bool      `json:"child_done,omitempty"`
	Progress    float64   `json:"progress,omitempty"`
}

// StepContext is what a step sees while it is activated or executed.
type StepContext interface {
	Block() *Block
	Input(name string) schema.Value
	Setting(name string) schema.Value
	SetOutput(name string, v schema.Value)
	Now() time.Time
	State() *StepState
	// Launch starts the named procedure as a child instance; onDone runs once
	// the child goes idle.
	Launch(procedure string, onDone func()) (string, error)
	// Invalidate flips the block invalid; the branch stalls from then on.
	Invalidate(reason string)
	Logger() *slog.Logger
}

// Step is a Steppable block's execution action.
type Step interface {
	// Activate runs when the step joins the active set.
	Activate(sc StepContext)
	// Execute returns the names of the completed ports to fire, or nil while
	// the step is still in progress.
	Execute(sc StepContext) []string
}

// Setting is an ordered, typed parameter of a block.
type Setting struct {
	Name  string
	Type  schema.TypeSpec
	Value schema.Value
}

// Field returns the setting's named-typed pair.
func (s Setting) Field() schema.Field {
	return schema.Field{Name: s.Name, Type: s.Type}
}

// Definition is everything needed to create (or redefine) a block.
type Definition struct {
	Kind      string
	Ports     []PortSpec
	Settings  []schema.Field
	Compute   ComputeFunc
	Step      Step
	Branching BranchMode
}

// Capabilities derives the tag from the behaviours present.
func (d Definition) Capabilities() Capability {
	var c Capability
	if d.Compute != nil {
		c |= Computable
	}
	if d.Step != nil {
		c |= Steppable
	}
	return c
}

// Block is a node in the graph.
type Block struct {
	ID       BlockID
	Name     string
	Kind     string
	Settings []Setting

	Compute   ComputeFunc
	Step      Step
	Branching BranchMode

	ports   []PortID
	invalid bool
	reason  string
}

// Capabilities returns the block's tag.
func (b *Block) Capabilities() Capability {
	var c Capability
	if b.Compute != nil {
		c |= Computable
	}
	if b.Step != nil {
		c |= Steppable
	}
	return c
}

// Is reports whether the block has every capability in c.
func (b *Block) Is(c Capability) bool { return b.Capabilities().Has(c) }

// PortIDs returns the block's ports in declaration order.
func (b *Block) PortIDs() []PortID {
	out := make([]PortID, len(b.ports))
	copy(out, b.ports)
	return out
}

// Valid reports whether the block may be evaluated.
func (b *Block) Valid() bool { return !b.invalid }

// Reason explains why the block is invalid.
func (b *Block) Reason() string { return b.reason }

// Invalidate marks the block invalid. It stays invalid until Revalidate.
func (b *Block) Invalidate(reason string) {
	b.invalid = true
	b.reason = reason
}

// Revalidate clears a previous invalidation.
func (b *Block) Revalidate() {
	b.invalid = false
	b.reason = ""
}

// Setting returns the named setting.
func (b *Block) Setting(name string) (*Setting, bool) {
	for i := range b.Settings {
		if b.Settings[i].Name == name {
			return &b.Settings[i], true
		}
	}
	return nil, false
}

// SettingValues snapshots the settings as a name-value map.
func (b *Block) SettingValues() schema.Values {
	out := make(schema.Values, len(b.Settings))
	for _, s := range b.Settings {
		out[s.Name] = s.Value
	}
	return out
}

// SetSetting assigns a setting, casting the value to its declared type.
func (b *Block) SetSetting(name string, v schema.Value) error {
	s, ok := b.Setting(name)
	if !ok {
		return structural("set setting", b.ID, 0, fmt.Errorf("%w: %s", ErrSettingNotFound, name))
	}
	s.Value = v.Cast(s.Type)
	return nil
}
