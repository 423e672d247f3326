package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenshop/orderengine/internal/domain/shipment"
)

func TestShipmentUpdateVersionConflict(t *testing.T) {
	repo := NewShipmentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, shipment.New("s1", "o1")))

	first, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, first.MarkShipped("TRK-AAAAAAAAAAAA", time.Now()))
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.MarkShipped("TRK-BBBBBBBBBBBB", time.Now()))
	assert.ErrorIs(t, repo.Update(ctx, second), shipment.ErrVersionConflict)
}

func TestShipmentTrackingUniqueness(t *testing.T) {
	repo := NewShipmentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, shipment.New("s1", "o1")))
	require.NoError(t, repo.Insert(ctx, shipment.New("s2", "o2")))

	s1, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s1.MarkShipped("TRK-AAAAAAAAAAAA", time.Now()))
	require.NoError(t, repo.Update(ctx, s1))

	s2, err := repo.Get(ctx, "s2")
	require.NoError(t, err)
	require.NoError(t, s2.MarkShipped("TRK-AAAAAAAAAAAA", time.Now()))
	assert.ErrorIs(t, repo.Update(ctx, s2), shipment.ErrTrackingTaken)

	// The same shipment may rewrite itself keeping its own number.
	s1b, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s1b.MarkDelivered(time.Now()))
	assert.NoError(t, repo.Update(ctx, s1b))
}

func TestFindByTracking(t *testing.T) {
	repo := NewShipmentRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, shipment.New("s1", "o1")))

	s1, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s1.MarkShipped("TRK-AAAAAAAAAAAA", time.Now()))
	require.NoError(t, repo.Update(ctx, s1))

	got, err := repo.FindByTracking(ctx, "TRK-AAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	_, err = repo.FindByTracking(ctx, "TRK-CCCCCCCCCCCC")
	assert.ErrorIs(t, err, shipment.ErrNotFound)
}

func TestListPendingOlderThan(t *testing.T) {
	repo := NewShipmentRepository()
	ctx := context.Background()

	old := shipment.New("s1", "o1")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.Insert(ctx, old))
	require.NoError(t, repo.Insert(ctx, shipment.New("s2", "o2")))

	delayed, err := repo.ListPendingOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, delayed, 1)
	assert.Equal(t, "s1", delayed[0].ID)
}
