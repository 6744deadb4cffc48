package memory

import (
	"context"
	"sort"
	"sync"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

type mentionKey struct {
	signature string
	asset     string
	lineage   domain.LineageID
}

// MentionStore is an in-memory implementation of storage.MentionStore.
type MentionStore struct {
	mu   sync.RWMutex
	data []*domain.AssetMention
	keys map[mentionKey]struct{}
}

// NewMentionStore creates a new in-memory mention store.
func NewMentionStore() *MentionStore {
	return &MentionStore{
		keys: make(map[mentionKey]struct{}),
	}
}

var _ storage.MentionStore = (*MentionStore)(nil)

// Insert adds a mention. Returns ErrDuplicateKey if (signature, asset, lineage) exists.
func (s *MentionStore) Insert(_ context.Context, m *domain.AssetMention) error {
	if m == nil || m.Asset == "" || m.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := mentionKey{m.Signature, m.Asset, m.Lineage}
	if _, exists := s.keys[k]; exists {
		return storage.ErrDuplicateKey
	}
	s.keys[k] = struct{}{}

	mentionCopy := *m
	s.data = append(s.data, &mentionCopy)
	return nil
}

// GetByAsset retrieves all mentions of an asset, ordered by ObservedAt ASC.
func (s *MentionStore) GetByAsset(_ context.Context, asset string) ([]*domain.AssetMention, error) {
	return s.filter(func(m *domain.AssetMention) bool { return m.Asset == asset }), nil
}

// GetByTimeRange retrieves mentions observed within [start, end] (inclusive).
func (s *MentionStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.AssetMention, error) {
	return s.filter(func(m *domain.AssetMention) bool {
		return m.ObservedAt >= start && m.ObservedAt <= end
	}), nil
}

func (s *MentionStore) filter(keep func(*domain.AssetMention) bool) []*domain.AssetMention {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AssetMention
	for _, m := range s.data {
		if keep(m) {
			mentionCopy := *m
			result = append(result, &mentionCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})
	return result
}
