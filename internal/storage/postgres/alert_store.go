package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

const alertColumns = `alert_id, asset, wallet, signature, lineage, first_lineage, refire, symbol, market_cap, detected_at`

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.ConvergenceAlert) error {
	if a == nil || a.AlertID == "" || a.Asset == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO convergence_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AlertID,
		a.Asset,
		a.Wallet,
		a.Signature,
		int16(a.Lineage),
		int16(a.FirstLineage),
		a.Refire,
		a.Symbol,
		a.MarketCap,
		a.DetectedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetByAsset retrieves all alerts for an asset, ordered by detected_at ASC.
func (s *AlertStore) GetByAsset(ctx context.Context, asset string) ([]*domain.ConvergenceAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM convergence_alerts
		WHERE asset = $1
		ORDER BY detected_at ASC, alert_id ASC
	`

	rows, err := s.pool.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("get alerts by asset: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListRecent retrieves the newest alerts, ordered by detected_at DESC.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]*domain.ConvergenceAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + alertColumns + `
		FROM convergence_alerts
		ORDER BY detected_at DESC, alert_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func scanAlerts(rows pgx.Rows) ([]*domain.ConvergenceAlert, error) {
	var result []*domain.ConvergenceAlert
	for rows.Next() {
		var (
			a                     domain.ConvergenceAlert
			lineage, firstLineage int16
		)
		err := rows.Scan(
			&a.AlertID,
			&a.Asset,
			&a.Wallet,
			&a.Signature,
			&lineage,
			&firstLineage,
			&a.Refire,
			&a.Symbol,
			&a.MarketCap,
			&a.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Lineage = domain.LineageID(lineage)
		a.FirstLineage = domain.LineageID(firstLineage)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return result, nil
}
