package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grod220/validator-finances/internal/domain"
)

func TestRewardStore_UpsertAndGetRange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRewardStore(pool)
	ctx := context.Background()

	commission := uint8(5)
	err := store.Upsert(ctx, []domain.EpochReward{
		{Epoch: 900, Lamports: 1_000_000, Commission: &commission, EffectiveSlot: 389_232_100, Date: "2025-12-24"},
		{Epoch: 901, Lamports: 2_000_000},
		{Epoch: 903, Lamports: 3_000_000},
	})
	require.NoError(t, err)

	got, err := store.GetRange(ctx, 900, 903)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, uint64(900), got[0].Epoch)
	require.Equal(t, uint64(1_000_000), got[0].Lamports)
	require.NotNil(t, got[0].Commission)
	require.Equal(t, uint8(5), *got[0].Commission)
	require.Equal(t, int64(389_232_100), got[0].EffectiveSlot)
	require.Equal(t, "2025-12-24", got[0].Date)

	// A backfilled row has no commission rate.
	require.Nil(t, got[1].Commission)
	require.Equal(t, uint64(903), got[2].Epoch)
}

func TestRewardStore_UpsertReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRewardStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.EpochReward{{Epoch: 900, Lamports: 100}}))
	require.NoError(t, store.Upsert(ctx, []domain.EpochReward{{Epoch: 900, Lamports: 250}}))

	got, err := store.GetRange(ctx, 900, 900)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(250), got[0].Lamports)
}

func TestRewardStore_MissingEpochs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRewardStore(pool)
	ctx := context.Background()

	// A zero-valued row counts as present.
	err := store.Upsert(ctx, []domain.EpochReward{
		{Epoch: 900, Lamports: 100},
		{Epoch: 901, Lamports: 0},
		{Epoch: 903, Lamports: 300},
	})
	require.NoError(t, err)

	missing, err := store.MissingEpochs(ctx, 900, 904)
	require.NoError(t, err)
	require.Equal(t, []uint64{902, 904}, missing)

	// Inverted range is empty, not an error.
	missing, err = store.MissingEpochs(ctx, 905, 904)
	require.NoError(t, err)
	require.Empty(t, missing)
}
