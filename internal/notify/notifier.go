// Package notify formats convergence alerts and delivers them to operators.
package notify

import (
	"context"
	"errors"
	"fmt"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/observability"
)

// Message is one rendered alert.
type Message struct {
	Alert    domain.ConvergenceAlert
	Metadata domain.AssetMetadata
	HTML     string
}

// Notifier delivers a message to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every notifier. All notifiers are attempted;
// the returned error joins every failure.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Name returns "multi".
func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify delivers msg through every notifier.
func (m *Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Notify(ctx, msg)
		observability.RecordNotification(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
