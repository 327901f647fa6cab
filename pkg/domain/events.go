package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter      EventType = "step_enter"
	EventStepLeave      EventType = "step_leave"
	EventProcedureStart EventType = "procedure_start"
	EventProcedureStop  EventType = "procedure_stop"
	EventRound          EventType = "round"
	EventReconcile      EventType = "reconcile"
	EventInvalid        EventType = "invalid"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
}

// StepEvent is emitted when a step joins or leaves the active set.
type StepEvent struct {
	EventBase
	Procedure string   `json:"procedure"`
	BlockID   BlockID  `json:"block_id"`
	BlockName string   `json:"block_name"`
	Kind      string   `json:"kind"`
	Fired     []string `json:"fired,omitempty"`
}

// ProcedureEvent is emitted when an instance starts or goes idle.
type ProcedureEvent struct {
	EventBase
	Procedure string `json:"procedure"`
	Parent    string `json:"parent,omitempty"`
}

// RoundEvent summarises one dataflow update.
type RoundEvent struct {
	EventBase
	Graph     string        `json:"graph"`
	Evaluated int           `json:"evaluated"`
	Stalled   []string      `json:"stalled,omitempty"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
}

// ReconcileEvent summarises one applied reconciliation.
type ReconcileEvent struct {
	EventBase
	Block      string `json:"block"`
	Target     string `json:"target"` // ports, settings, inputs, outputs
	Matched    int    `json:"matched"`
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
	Positional int    `json:"positional"`
}

// InvalidEvent is emitted when a block flips invalid.
type InvalidEvent struct {
	EventBase
	BlockID   BlockID `json:"block_id"`
	BlockName string  `json:"block_name"`
	Reason    string  `json:"reason"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStepEnter      func(context.Context, *StepEvent)
	OnStepLeave      func(context.Context, *StepEvent)
	OnProcedureStart func(context.Context, *ProcedureEvent)
	OnProcedureStop  func(context.Context, *ProcedureEvent)
	OnRound          func(context.Context, *RoundEvent)
	OnReconcile      func(context.Context, *ReconcileEvent)
	OnInvalid        func(context.Context, *InvalidEvent)
}

// CombineHooks fans every event out to each set of hooks in order.
func CombineHooks(all ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter:      fanOut(all, func(h LifecycleHooks) func(context.Context, *StepEvent) { return h.OnStepEnter }),
		OnStepLeave:      fanOut(all, func(h LifecycleHooks) func(context.Context, *StepEvent) { return h.OnStepLeave }),
		OnProcedureStart: fanOut(all, func(h LifecycleHooks) func(context.Context, *ProcedureEvent) { return h.OnProcedureStart }),
		OnProcedureStop:  fanOut(all, func(h LifecycleHooks) func(context.Context, *ProcedureEvent) { return h.OnProcedureStop }),
		OnRound:          fanOut(all, func(h LifecycleHooks) func(context.Context, *RoundEvent) { return h.OnRound }),
		OnReconcile:      fanOut(all, func(h LifecycleHooks) func(context.Context, *ReconcileEvent) { return h.OnReconcile }),
		OnInvalid:        fanOut(all, func(h LifecycleHooks) func(context.Context, *InvalidEvent) { return h.OnInvalid }),
	}
}

func fanOut[E any](all []LifecycleHooks, pick func(LifecycleHooks) func(context.Context, *E)) func(context.Context, *E) {
	var fns []func(context.Context, *E)
	for _, h := range all {
		if fn := pick(h); fn != nil {
			fns = append(fns, fn)
		}
	}
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	}
	return func(ctx context.Context, e *E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}
