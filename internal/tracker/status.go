package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"solana-lineage-tracker/internal/correlation"
	"solana-lineage-tracker/internal/discovery"
	"solana-lineage-tracker/internal/domain"
)

const recentAlerts = 20

// Status is a point-in-time view of the tracker served at /status.
type Status struct {
	StartedAt time.Time       `json:"started_at"`
	Policy    string          `json:"policy"`
	Lineages  []LineageStatus `json:"lineages"`
	Tracked   int             `json:"tracked_assets"`
	Assets    map[string]int  `json:"assets"`
	Converged []AssetStatus   `json:"converged"`
	Alerts    []AlertStatus   `json:"recent_alerts,omitempty"`
}

// LineageStatus describes one lineage.
type LineageStatus struct {
	ID         domain.LineageID `json:"id"`
	Seed       string           `json:"seed"`
	Capacity   int              `json:"capacity"`
	Tracked    int              `json:"tracked"`
	Subscribed int              `json:"subscribed"`
	Wallets    []string         `json:"wallets"`

	// Unsubscribed wallets are retried on their next funding transfer.
	Unsubscribed []string `json:"unsubscribed,omitempty"`
}

// AssetStatus describes one converged asset.
type AssetStatus struct {
	Asset        string             `json:"asset"`
	FirstLineage domain.LineageID   `json:"first_lineage"`
	Lineages     []domain.LineageID `json:"lineages"`
	Mentions     int                `json:"mentions"`
	Notified     int                `json:"notified"`
	ConvergedAt  int64              `json:"converged_at"`
}

// AssetDetail is the per-asset view served at /status?asset=<mint>.
type AssetDetail struct {
	Asset        string             `json:"asset"`
	State        string             `json:"state"`
	FirstLineage domain.LineageID   `json:"first_lineage,omitempty"`
	Lineages     []domain.LineageID `json:"lineages,omitempty"`
	Mentions     []MentionStatus    `json:"mentions"`
	Alerts       []AlertStatus      `json:"alerts"`
}

// MentionStatus is one persisted asset mention.
type MentionStatus struct {
	Wallet     string           `json:"wallet"`
	Lineage    domain.LineageID `json:"lineage"`
	Program    string           `json:"program"`
	Signature  string           `json:"signature"`
	Slot       int64            `json:"slot"`
	ObservedAt int64            `json:"observed_at"`
}

// AlertStatus is one persisted alert.
type AlertStatus struct {
	Asset      string `json:"asset"`
	Symbol     string `json:"symbol"`
	MarketCap  string `json:"market_cap"`
	Wallet     string `json:"wallet"`
	Signature  string `json:"signature"`
	Refire     bool   `json:"refire"`
	DetectedAt int64  `json:"detected_at"`
}

// Status builds the current status snapshot.
func (t *Tracker) Status(ctx context.Context) Status {
	st := Status{
		StartedAt: t.started,
		Policy:    t.table.Policy().String(),
		Assets:    make(map[string]int),
	}

	for _, lin := range t.lineages {
		wallets := lin.registry.Snapshot()
		subscribed := make(map[string]bool)
		for _, addr := range lin.derived.Addresses() {
			subscribed[addr] = true
		}
		ls := LineageStatus{
			ID:         lin.seed.ID,
			Seed:       lin.seed.Address,
			Capacity:   lin.registry.Capacity(),
			Tracked:    len(wallets),
			Subscribed: len(subscribed),
			Wallets:    make([]string, 0, len(wallets)),
		}
		for _, w := range wallets {
			ls.Wallets = append(ls.Wallets, w.Address)
			if !subscribed[w.Address] {
				ls.Unsubscribed = append(ls.Unsubscribed, w.Address)
			}
		}
		st.Lineages = append(st.Lineages, ls)
	}

	st.Tracked = t.table.Len()

	for state, n := range t.table.Counts() {
		st.Assets[state.String()] = n
	}
	for _, e := range t.table.Snapshot() {
		if e.State != correlation.StateConverged {
			continue
		}
		st.Converged = append(st.Converged, AssetStatus{
			Asset:        e.Asset,
			FirstLineage: e.FirstLineage,
			Lineages:     e.Lineages,
			Mentions:     e.Mentions,
			Notified:     e.Fired,
			ConvergedAt:  e.ConvergedAt,
		})
	}

	if t.alerts != nil {
		alerts, err := t.alerts.ListRecent(ctx, recentAlerts)
		if err != nil {
			t.logger.Printf("status: list alerts: %v", err)
		}
		for _, a := range alerts {
			st.Alerts = append(st.Alerts, alertStatus(a))
		}
	}
	return st
}

// Asset builds the per-asset view from the table and the persisted history.
func (t *Tracker) Asset(ctx context.Context, asset string) (AssetDetail, error) {
	e, _ := t.table.Get(asset)
	d := AssetDetail{
		Asset:        asset,
		State:        e.State.String(),
		FirstLineage: e.FirstLineage,
		Lineages:     e.Lineages,
		Mentions:     []MentionStatus{},
		Alerts:       []AlertStatus{},
	}

	if t.mentions != nil {
		mentions, err := t.mentions.GetByAsset(ctx, asset)
		if err != nil {
			return d, fmt.Errorf("list mentions: %w", err)
		}
		for _, m := range mentions {
			d.Mentions = append(d.Mentions, MentionStatus{
				Wallet:     m.Wallet,
				Lineage:    m.Lineage,
				Program:    m.Program,
				Signature:  m.Signature,
				Slot:       m.Slot,
				ObservedAt: m.ObservedAt,
			})
		}
	}
	if t.alerts != nil {
		alerts, err := t.alerts.GetByAsset(ctx, asset)
		if err != nil {
			return d, fmt.Errorf("list alerts: %w", err)
		}
		for _, a := range alerts {
			d.Alerts = append(d.Alerts, alertStatus(a))
		}
	}
	return d, nil
}

func alertStatus(a *domain.ConvergenceAlert) AlertStatus {
	return AlertStatus{
		Asset:      a.Asset,
		Symbol:     a.Symbol,
		MarketCap:  a.MarketCap,
		Wallet:     a.Wallet,
		Signature:  a.Signature,
		Refire:     a.Refire,
		DetectedAt: a.DetectedAt,
	}
}

// StatusHandler serves Status as JSON, or the AssetDetail of one asset when
// the asset query parameter is set.
func (t *Tracker) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body interface{}
		if asset := r.URL.Query().Get("asset"); asset != "" {
			if !discovery.IsValidAddress(asset) {
				http.Error(w, "invalid asset address", http.StatusBadRequest)
				return
			}
			d, err := t.Asset(r.Context(), asset)
			if err != nil {
				t.logger.Printf("status: asset %s: %v", asset, err)
				http.Error(w, "asset lookup failed", http.StatusInternalServerError)
				return
			}
			body = d
		} else {
			body = t.Status(r.Context())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.logger.Printf("status: encode: %v", err)
		}
	})
}
