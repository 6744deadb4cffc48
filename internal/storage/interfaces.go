package storage

import (
	"context"

	"solana-lineage-tracker/internal/domain"
)

// TrackedWalletStore provides access to tracked_wallets storage.
// A wallet is keyed by (lineage, address); the same address may be tracked by both lineages.
type TrackedWalletStore interface {
	// Upsert inserts a wallet or updates its last_active_at. promoted_at is never overwritten.
	Upsert(ctx context.Context, w *domain.DerivedWallet) error

	// ListByLineage retrieves all wallets of a lineage, ordered by promoted_at ASC.
	ListByLineage(ctx context.Context, lineage domain.LineageID) ([]*domain.DerivedWallet, error)

	// DeleteAll removes every tracked wallet.
	DeleteAll(ctx context.Context) error
}

// AlertStore provides access to convergence_alerts storage.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.ConvergenceAlert) error

	// GetByAsset retrieves all alerts for an asset, ordered by detected_at ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.ConvergenceAlert, error)

	// ListRecent retrieves the newest alerts, ordered by detected_at DESC.
	ListRecent(ctx context.Context, limit int) ([]*domain.ConvergenceAlert, error)
}

// MentionStore provides access to asset_mentions storage (append-only).
type MentionStore interface {
	// Insert adds a mention. Returns ErrDuplicateKey if (signature, asset, lineage) exists.
	Insert(ctx context.Context, m *domain.AssetMention) error

	// GetByAsset retrieves all mentions of an asset, ordered by observed_at ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.AssetMention, error)

	// GetByTimeRange retrieves mentions observed within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.AssetMention, error)
}
