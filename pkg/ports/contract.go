package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunInstanceStoreContract runs a suite of tests to verify that an
// InstanceStore implementation adheres to the interface contract.
func RunInstanceStoreContract(t *testing.T, store InstanceStore) {
	ctx := context.Background()
	instanceID := "contract-test-instance-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.Snapshot {
		now := time.Now().UTC().Truncate(time.Millisecond)
		return &domain.Snapshot{
			ID:        id,
			Procedure: "blink",
			Status:    domain.StatusRunning,
			Active:    []string{"wait"},
			Steps: map[string]domain.StepState{
				"loop": {Iteration: 2, ActivatedAt: now},
			},
			Outputs:   schema.Values{"lamp": schema.NewBoolean(true), "count": schema.NewNumber(3)},
			Ticks:     7,
			StartedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(instanceID)
		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Procedure, loaded.Procedure)
		assert.Equal(t, domain.StatusRunning, loaded.Status)
		assert.Equal(t, []string{"wait"}, loaded.Active)
		assert.Equal(t, 2, loaded.Steps["loop"].Iteration)
		assert.True(t, loaded.Outputs.Get("lamp").Bool())
		assert.Equal(t, 3.0, loaded.Outputs.Get("count").Float())
		assert.Equal(t, uint64(7), loaded.Ticks)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		snap := newSnapshot(instanceID)
		snap.Status = domain.StatusIdle
		snap.Active = nil
		require.NoError(t, store.Save(ctx, snap))

		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusIdle, loaded.Status)
		assert.Empty(t, loaded.Active)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot(instanceID)))
		require.NoError(t, store.Delete(ctx, instanceID), "Delete should not return error")

		_, err := store.Load(ctx, instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "Load after Delete should return ErrInstanceNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := instanceID + "-1"
		id2 := instanceID + "-2"
		_ = store.Save(ctx, newSnapshot(id1))
		_ = store.Save(ctx, newSnapshot(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
