package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/observability"
	"solana-lineage-tracker/internal/storage"
)

// MetadataResolver resolves display metadata. It must not fail; unresolved
// fields carry placeholders.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) domain.AssetMetadata
}

// Gateway turns a convergence decision into a delivered message.
// Delivery is best effort: failures are logged and counted, never retried.
type Gateway struct {
	resolver MetadataResolver
	notifier *Multi
	alerts   storage.AlertStore
	logger   *log.Logger
	now      func() time.Time
}

// GatewayConfig holds the optional parts of a Gateway.
type GatewayConfig struct {
	Resolver MetadataResolver   // nil uses placeholders
	Alerts   storage.AlertStore // nil skips alert history
}

// NewGateway creates a gateway delivering through notifiers.
func NewGateway(cfg GatewayConfig, logger *log.Logger, notifiers ...Notifier) *Gateway {
	return &Gateway{
		resolver: cfg.Resolver,
		notifier: NewMulti(notifiers...),
		alerts:   cfg.Alerts,
		logger:   logger,
		now:      time.Now,
	}
}

// Send resolves metadata for alert.Asset, records the alert and delivers it.
// The returned error reports delivery failures only.
func (g *Gateway) Send(ctx context.Context, alert domain.ConvergenceAlert) error {
	start := g.now()
	defer func() {
		observability.RecordNotifyLatency(time.Since(start).Seconds())
	}()

	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	if alert.DetectedAt == 0 {
		alert.DetectedAt = start.UnixMilli()
	}

	meta := domain.AssetMetadata{
		Mint:      alert.Asset,
		Symbol:    domain.UnknownSymbol,
		MarketCap: domain.UnknownMarketCap,
	}
	if g.resolver != nil {
		meta = g.resolver.Resolve(ctx, alert.Asset)
	}
	alert.Symbol = meta.Symbol
	alert.MarketCap = meta.MarketCap

	if g.alerts != nil {
		if err := g.alerts.Insert(ctx, &alert); err != nil {
			g.logger.Printf("store alert %s: %v", alert.AlertID, err)
		}
	}

	msg := Message{
		Alert:    alert,
		Metadata: meta,
		HTML:     FormatAlert(alert, meta),
	}
	if err := g.notifier.Notify(ctx, msg); err != nil {
		g.logger.Printf("notify asset=%s tx=%s: %v", alert.Asset, alert.Signature, err)
		return err
	}
	return nil
}
