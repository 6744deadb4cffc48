package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

// TrackedWalletStore implements storage.TrackedWalletStore using PostgreSQL.
type TrackedWalletStore struct {
	pool *Pool
}

// NewTrackedWalletStore creates a new TrackedWalletStore.
func NewTrackedWalletStore(pool *Pool) *TrackedWalletStore {
	return &TrackedWalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackedWalletStore = (*TrackedWalletStore)(nil)

// Upsert inserts a wallet or moves last_active_at forward.
func (s *TrackedWalletStore) Upsert(ctx context.Context, w *domain.DerivedWallet) error {
	if w == nil || w.Address == "" || !w.Lineage.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tracked_wallets (lineage, address, promoted_at, last_active_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lineage, address) DO UPDATE
		SET last_active_at = GREATEST(tracked_wallets.last_active_at, EXCLUDED.last_active_at)
	`

	_, err := s.pool.Exec(ctx, query, int16(w.Lineage), w.Address, w.PromotedAt, w.LastActiveAt)
	if err != nil {
		return fmt.Errorf("upsert tracked wallet: %w", err)
	}
	return nil
}

// ListByLineage retrieves all wallets of a lineage, ordered by promoted_at ASC.
func (s *TrackedWalletStore) ListByLineage(ctx context.Context, lineage domain.LineageID) ([]*domain.DerivedWallet, error) {
	query := `
		SELECT lineage, address, promoted_at, last_active_at
		FROM tracked_wallets
		WHERE lineage = $1
		ORDER BY promoted_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, int16(lineage))
	if err != nil {
		return nil, fmt.Errorf("list tracked wallets: %w", err)
	}
	defer rows.Close()

	return scanWallets(rows)
}

// DeleteAll removes every tracked wallet.
func (s *TrackedWalletStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tracked_wallets`); err != nil {
		return fmt.Errorf("delete tracked wallets: %w", err)
	}
	return nil
}

func scanWallets(rows pgx.Rows) ([]*domain.DerivedWallet, error) {
	var result []*domain.DerivedWallet
	for rows.Next() {
		var (
			w       domain.DerivedWallet
			lineage int16
		)
		if err := rows.Scan(&lineage, &w.Address, &w.PromotedAt, &w.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan tracked wallet: %w", err)
		}
		w.Lineage = domain.LineageID(lineage)
		result = append(result, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked wallets: %w", err)
	}
	return result, nil
}
