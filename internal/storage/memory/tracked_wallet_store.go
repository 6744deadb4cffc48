package memory

import (
	"context"
	"sort"
	"sync"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

type walletKey struct {
	lineage domain.LineageID
	address string
}

// TrackedWalletStore is an in-memory implementation of storage.TrackedWalletStore.
type TrackedWalletStore struct {
	mu   sync.RWMutex
	data map[walletKey]*domain.DerivedWallet
}

// NewTrackedWalletStore creates a new in-memory tracked wallet store.
func NewTrackedWalletStore() *TrackedWalletStore {
	return &TrackedWalletStore{
		data: make(map[walletKey]*domain.DerivedWallet),
	}
}

var _ storage.TrackedWalletStore = (*TrackedWalletStore)(nil)

// Upsert inserts a wallet or refreshes its LastActiveAt.
func (s *TrackedWalletStore) Upsert(_ context.Context, w *domain.DerivedWallet) error {
	if w == nil || w.Address == "" || !w.Lineage.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := walletKey{w.Lineage, w.Address}
	if existing, ok := s.data[k]; ok {
		if w.LastActiveAt > existing.LastActiveAt {
			existing.LastActiveAt = w.LastActiveAt
		}
		return nil
	}

	walletCopy := *w
	s.data[k] = &walletCopy
	return nil
}

// ListByLineage retrieves all wallets of a lineage, ordered by PromotedAt ASC.
func (s *TrackedWalletStore) ListByLineage(_ context.Context, lineage domain.LineageID) ([]*domain.DerivedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DerivedWallet
	for k, w := range s.data {
		if k.lineage == lineage {
			walletCopy := *w
			result = append(result, &walletCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].PromotedAt != result[j].PromotedAt {
			return result[i].PromotedAt < result[j].PromotedAt
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// DeleteAll removes every tracked wallet.
func (s *TrackedWalletStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[walletKey]*domain.DerivedWallet)
	return nil
}
