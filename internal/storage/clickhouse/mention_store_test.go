package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

func TestMentionStore_InsertAndGetByAsset(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMentionStore(conn)
	ctx := context.Background()

	mentions := []*domain.AssetMention{
		{Asset: "MintA", Program: "Pump", Wallet: "W2", Lineage: domain.LineageTwo, Signature: "s2", Slot: 11, ObservedAt: 2000},
		{Asset: "MintA", Program: "Pump", Wallet: "W1", Lineage: domain.LineageOne, Signature: "s1", Slot: 10, ObservedAt: 1000},
		{Asset: "MintB", Program: "Pump", Wallet: "W1", Lineage: domain.LineageOne, Signature: "s3", Slot: 12, ObservedAt: 3000},
	}
	for _, m := range mentions {
		require.NoError(t, store.Insert(ctx, m))
	}

	got, err := store.GetByAsset(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].Signature)
	assert.Equal(t, domain.LineageOne, got[0].Lineage)
	assert.Equal(t, int64(10), got[0].Slot)
	assert.Equal(t, "s2", got[1].Signature)
}

func TestMentionStore_InsertDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMentionStore(conn)
	ctx := context.Background()

	m := &domain.AssetMention{Asset: "MintA", Lineage: domain.LineageOne, Signature: "s1", ObservedAt: 1}
	require.NoError(t, store.Insert(ctx, m))
	assert.ErrorIs(t, store.Insert(ctx, m), storage.ErrDuplicateKey)

	// Same signature from the other lineage is a separate mention
	other := *m
	other.Lineage = domain.LineageTwo
	assert.NoError(t, store.Insert(ctx, &other))
}

func TestMentionStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMentionStore(conn)
	ctx := context.Background()

	for i, ts := range []int64{1000, 2000, 3000} {
		require.NoError(t, store.Insert(ctx, &domain.AssetMention{
			Asset:      "MintA",
			Lineage:    domain.LineageOne,
			Signature:  string(rune('a' + i)),
			ObservedAt: ts,
		}))
	}

	got, err := store.GetByTimeRange(ctx, 1500, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].ObservedAt)
}
