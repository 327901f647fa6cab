package domain

import (
	"time"

	"github.com/aretw0/weave/pkg/schema"
)

// Status is the lifecycle state of a procedure instance.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
)

// Snapshot is the serializable view of a procedure instance.
// Active and Steps are keyed by block name.
type Snapshot struct {
	ID        string               `json:"id"`
	Procedure string               `json:"procedure"`
	Parent    string               `json:"parent,omitempty"`
	Status    Status               `json:"status"`
	Active    []string             `json:"active,omitempty"`
	Steps     map[string]StepState `json:"steps,omitempty"`
	Outputs   schema.Values        `json:"outputs,omitempty"`
	Ticks     uint64               `json:"ticks"`
	StartedAt time.Time            `json:"started_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Running reports whether the snapshot was taken while steps were active.
func (s *Snapshot) Running() bool { return s.Status == StatusRunning }
