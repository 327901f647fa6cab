package ports

import (
	"context"

	"github.com/aretw0/weave/pkg/domain"
)

// InstanceStore persists procedure instance snapshots so a host can inspect
// or resume instances across restarts.
type InstanceStore interface {
	// Save persists the snapshot under its ID, replacing any previous one.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load retrieves a snapshot by instance ID.
	// Returns domain.ErrInstanceNotFound if the instance does not exist.
	Load(ctx context.Context, id string) (*domain.Snapshot, error)

	// Delete removes a snapshot. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of every stored snapshot.
	List(ctx context.Context) ([]string, error)
}
