// Package tracker wires the seed and derived wallet streams of both lineages
// into the correlation table and the notifier gateway.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-lineage-tracker/internal/correlation"
	"solana-lineage-tracker/internal/discovery"
	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/lineage"
	"solana-lineage-tracker/internal/observability"
	"solana-lineage-tracker/internal/solana"
	"solana-lineage-tracker/internal/storage"
)

const (
	defaultDecodeAttempts = 3
	defaultRetryDelay     = 500 * time.Millisecond
)

// Config holds tracker settings.
type Config struct {
	Seeds          []domain.SeedLineage
	Capacity       int     // per lineage, lineage.DefaultCapacity when zero
	MaxTransferSOL float64 // lineage.DefaultMaxTransferSOL when zero
	Policy         correlation.Policy
	Commitment     string // subscription commitment, "confirmed" when empty

	DecodeAttempts int           // getTransaction attempts per notification
	RetryDelay     time.Duration // base backoff between attempts
}

// Sender delivers convergence alerts.
type Sender interface {
	Send(ctx context.Context, alert domain.ConvergenceAlert) error
}

// ActivityLog records operator-facing milestones.
type ActivityLog interface {
	Printf(format string, args ...interface{})
}

// Deps are the external collaborators of a Tracker. RPC, WS and Sender are
// required; the stores and the activity log are optional.
type Deps struct {
	RPC       solana.RPCClient
	WS        solana.WSClient
	Sender    Sender
	Extractor *discovery.MentionExtractor // pump.fun rules when nil
	Wallets   storage.TrackedWalletStore
	Mentions  storage.MentionStore
	Alerts    storage.AlertStore
	Activity  ActivityLog
}

// Lineage is one seed wallet with its registry and derived subscriptions.
type Lineage struct {
	seed     domain.SeedLineage
	registry *lineage.Registry
	derived  *ListenerPool
}

// ID returns the lineage identity.
func (l *Lineage) ID() domain.LineageID { return l.seed.ID }

// Seed returns the seed wallet address.
func (l *Lineage) Seed() string { return l.seed.Address }

// Registry returns the lineage registry.
func (l *Lineage) Registry() *lineage.Registry { return l.registry }

// Tracker follows two seed lineages and reports when they converge on an asset.
type Tracker struct {
	cfg       Config
	rpc       solana.RPCClient
	sender    Sender
	extractor *discovery.MentionExtractor
	filter    lineage.TransferFilter
	table     *correlation.Table
	wallets   storage.TrackedWalletStore
	mentions  storage.MentionStore
	alerts    storage.AlertStore
	activity  ActivityLog
	logger    *log.Logger

	lineages []*Lineage
	seeds    map[string]domain.LineageID
	seedPool *ListenerPool
	started  time.Time
	now      func() time.Time
}

// New creates a tracker for exactly two seed lineages.
func New(cfg Config, deps Deps, logger *log.Logger) (*Tracker, error) {
	if deps.RPC == nil || deps.WS == nil || deps.Sender == nil {
		return nil, errors.New("tracker: RPC, WS and Sender are required")
	}
	if len(cfg.Seeds) != 2 {
		return nil, fmt.Errorf("tracker: need exactly 2 seed lineages, got %d", len(cfg.Seeds))
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = lineage.DefaultCapacity
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.DecodeAttempts <= 0 {
		cfg.DecodeAttempts = defaultDecodeAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = log.Default()
	}

	t := &Tracker{
		cfg:       cfg,
		rpc:       deps.RPC,
		sender:    deps.Sender,
		extractor: deps.Extractor,
		filter:    lineage.NewTransferFilter(cfg.MaxTransferSOL),
		wallets:   deps.Wallets,
		mentions:  deps.Mentions,
		alerts:    deps.Alerts,
		activity:  deps.Activity,
		logger:    logger,
		seeds:     make(map[string]domain.LineageID, len(cfg.Seeds)),
		seedPool:  NewListenerPool("seed", deps.WS, cfg.Commitment, logger),
		now:       time.Now,
	}
	t.started = t.now()
	if t.extractor == nil {
		t.extractor = discovery.NewMentionExtractor()
	}
	if t.activity == nil {
		t.activity = nopActivity{}
	}

	seen := make(map[domain.LineageID]bool)
	addrs := make([]string, 0, len(cfg.Seeds))
	for _, s := range cfg.Seeds {
		if !s.ID.IsValid() || seen[s.ID] {
			return nil, fmt.Errorf("tracker: invalid or duplicate lineage %d", s.ID)
		}
		if _, dup := t.seeds[s.Address]; dup || s.Address == "" {
			return nil, fmt.Errorf("tracker: invalid or duplicate seed address %q", s.Address)
		}
		seen[s.ID] = true
		t.seeds[s.Address] = s.ID

		reg, err := lineage.NewRegistry(s.ID, cfg.Capacity)
		if err != nil {
			return nil, fmt.Errorf("tracker: %s: %w", s.ID, err)
		}
		t.lineages = append(t.lineages, &Lineage{
			seed:     s,
			registry: reg,
			derived:  NewListenerPool("derived", deps.WS, cfg.Commitment, logger),
		})
		addrs = append(addrs, s.Address)
	}
	t.table = correlation.NewTable(cfg.Policy, addrs...)
	return t, nil
}

// Lineages returns both lineages in configuration order.
func (t *Tracker) Lineages() []*Lineage {
	return t.lineages
}

// Table returns the shared correlation table.
func (t *Tracker) Table() *correlation.Table {
	return t.table
}

// Run restores persisted wallets, subscribes both seeds and their derived
// wallets, and blocks until ctx is cancelled. A failed seed subscription is
// returned as an error; derived subscription failures are only logged.
func (t *Tracker) Run(ctx context.Context) error {
	t.restore(ctx)

	var g errgroup.Group
	for _, lin := range t.lineages {
		lin := lin
		g.Go(func() error {
			if _, err := t.seedPool.Open(ctx, lin.seed.Address, t.seedHandler(lin)); err != nil {
				return fmt.Errorf("%s seed subscription: %w", lin.seed.ID, err)
			}
			t.logger.Printf("[%s] watching seed %s", lin.seed.ID, lin.seed.Address)
			t.activity.Printf("%s watching seed %s", lin.seed.ID, lin.seed.Address)

			for _, w := range lin.registry.Snapshot() {
				t.openDerived(ctx, lin, w.Address)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Close()
		return err
	}

	t.logger.Printf("tracking started: policy=%s capacity=%d max_transfer=%.2f SOL programs=%v",
		t.table.Policy(), t.cfg.Capacity, t.filter.MaxTransferSOL, t.extractor.Programs())

	<-ctx.Done()
	t.Close()
	t.logger.Printf("tracking stopped")
	return nil
}

// Close tears down every subscription. Safe to call more than once.
func (t *Tracker) Close() {
	t.seedPool.Close()
	for _, lin := range t.lineages {
		lin.derived.Close()
	}
}

// restore loads persisted wallets into the registries.
func (t *Tracker) restore(ctx context.Context) {
	if t.wallets == nil {
		return
	}
	for _, lin := range t.lineages {
		stored, err := t.wallets.ListByLineage(ctx, lin.seed.ID)
		if err != nil {
			t.logger.Printf("[%s] load tracked wallets: %v", lin.seed.ID, err)
			continue
		}
		wallets := make([]domain.DerivedWallet, 0, len(stored))
		for _, w := range stored {
			wallets = append(wallets, *w)
		}
		restored := lin.registry.Restore(wallets)
		observability.SetTrackedWallets(lin.seed.ID.String(), lin.registry.Len())
		if len(restored) > 0 {
			t.logger.Printf("[%s] restored %d of %d tracked wallets", lin.seed.ID, len(restored), len(stored))
		}
	}
}

// isSeed reports whether address is one of the seed wallets.
func (t *Tracker) isSeed(address string) bool {
	_, ok := t.seeds[address]
	return ok
}

type nopActivity struct{}

func (nopActivity) Printf(string, ...interface{}) {}
