package clickhouse

import (
	"context"
	"fmt"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

// MentionStore implements storage.MentionStore using ClickHouse.
type MentionStore struct {
	conn *Conn
}

// NewMentionStore creates a new MentionStore.
func NewMentionStore(conn *Conn) *MentionStore {
	return &MentionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MentionStore = (*MentionStore)(nil)

// Insert adds a mention. Returns ErrDuplicateKey if (signature, asset, lineage) exists.
// MergeTree does not enforce uniqueness, so the key is checked before insert.
func (s *MentionStore) Insert(ctx context.Context, m *domain.AssetMention) error {
	if m == nil || m.Asset == "" || m.Signature == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, m)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO asset_mentions (
			asset, program, wallet, lineage, signature, slot, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		m.Asset, m.Program, m.Wallet, uint8(m.Lineage),
		m.Signature, uint64(m.Slot), uint64(m.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAsset retrieves all mentions of an asset, ordered by observed_at ASC.
func (s *MentionStore) GetByAsset(ctx context.Context, asset string) ([]*domain.AssetMention, error) {
	query := `
		SELECT asset, program, wallet, lineage, signature, slot, observed_at
		FROM asset_mentions
		WHERE asset = ?
		ORDER BY observed_at ASC, signature ASC
	`
	return s.query(ctx, query, asset)
}

// GetByTimeRange retrieves mentions observed within [start, end] (inclusive).
func (s *MentionStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.AssetMention, error) {
	query := `
		SELECT asset, program, wallet, lineage, signature, slot, observed_at
		FROM asset_mentions
		WHERE observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC, signature ASC
	`
	return s.query(ctx, query, uint64(start), uint64(end))
}

func (s *MentionStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.AssetMention, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mentions: %w", err)
	}
	defer rows.Close()

	var result []*domain.AssetMention
	for rows.Next() {
		var (
			m          domain.AssetMention
			lineage    uint8
			slot       uint64
			observedAt uint64
		)
		if err := rows.Scan(&m.Asset, &m.Program, &m.Wallet, &lineage, &m.Signature, &slot, &observedAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.Lineage = domain.LineageID(lineage)
		m.Slot = int64(slot)
		m.ObservedAt = int64(observedAt)
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return result, nil
}

func (s *MentionStore) exists(ctx context.Context, m *domain.AssetMention) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count()
		FROM asset_mentions
		WHERE signature = ? AND asset = ? AND lineage = ?
	`, m.Signature, m.Asset, uint8(m.Lineage)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
