package notify

import (
	"context"
	"log"
)

// LogNotifier writes alerts to a logger. Used when no external channel is configured.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Name returns "log".
func (l *LogNotifier) Name() string { return "log" }

// Notify logs the alert.
func (l *LogNotifier) Notify(_ context.Context, msg Message) error {
	a := msg.Alert
	l.logger.Printf("ALERT asset=%s symbol=%s mcap=%s wallet=%s lineage=%s first=%s refire=%t tx=%s",
		a.Asset, msg.Metadata.Symbol, msg.Metadata.MarketCap, a.Wallet, a.Lineage, a.FirstLineage, a.Refire, a.Signature)
	return nil
}
