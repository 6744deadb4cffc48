package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

func TestTrackedWalletStore_UpsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrackedWalletStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{
		Address: "WalletB", Lineage: domain.LineageOne, PromotedAt: 2000, LastActiveAt: 2000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{
		Address: "WalletA", Lineage: domain.LineageOne, PromotedAt: 1000, LastActiveAt: 1000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{
		Address: "WalletA", Lineage: domain.LineageTwo, PromotedAt: 1500, LastActiveAt: 1500,
	}))

	// Refresh keeps promoted_at, moves last_active_at forward only
	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{
		Address: "WalletA", Lineage: domain.LineageOne, PromotedAt: 9000, LastActiveAt: 9000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{
		Address: "WalletA", Lineage: domain.LineageOne, PromotedAt: 1, LastActiveAt: 1,
	}))

	one, err := store.ListByLineage(ctx, domain.LineageOne)
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, "WalletA", one[0].Address)
	assert.Equal(t, int64(1000), one[0].PromotedAt)
	assert.Equal(t, int64(9000), one[0].LastActiveAt)
	assert.Equal(t, domain.LineageOne, one[0].Lineage)
	assert.Equal(t, "WalletB", one[1].Address)

	two, err := store.ListByLineage(ctx, domain.LineageTwo)
	require.NoError(t, err)
	require.Len(t, two, 1)
	assert.Equal(t, domain.LineageTwo, two[0].Lineage)
}

func TestTrackedWalletStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrackedWalletStore(pool)
	err := store.Upsert(context.Background(), &domain.DerivedWallet{Lineage: domain.LineageOne})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTrackedWalletStore_DeleteAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrackedWalletStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.DerivedWallet{Address: "W", Lineage: domain.LineageTwo, PromotedAt: 1, LastActiveAt: 1}))
	require.NoError(t, store.DeleteAll(ctx))

	got, err := store.ListByLineage(ctx, domain.LineageTwo)
	require.NoError(t, err)
	assert.Empty(t, got)
}
