package memory

import (
	"context"
	"sort"
	"sync"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.ConvergenceAlert // keyed by alert_id
	order []string
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.ConvergenceAlert),
	}
}

var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.ConvergenceAlert) error {
	if a == nil || a.AlertID == "" || a.Asset == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	alertCopy := *a
	s.data[a.AlertID] = &alertCopy
	s.order = append(s.order, a.AlertID)
	return nil
}

// GetByAsset retrieves all alerts for an asset, ordered by DetectedAt ASC.
func (s *AlertStore) GetByAsset(_ context.Context, asset string) ([]*domain.ConvergenceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ConvergenceAlert
	for _, id := range s.order {
		a := s.data[id]
		if a.Asset == asset {
			alertCopy := *a
			result = append(result, &alertCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DetectedAt < result[j].DetectedAt
	})
	return result, nil
}

// ListRecent retrieves the newest alerts, ordered by DetectedAt DESC.
func (s *AlertStore) ListRecent(_ context.Context, limit int) ([]*domain.ConvergenceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ConvergenceAlert, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		alertCopy := *s.data[s.order[i]]
		result = append(result, &alertCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DetectedAt > result[j].DetectedAt
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
