package lineage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"solana-lineage-tracker/internal/domain"
)

// DefaultCapacity is the derived wallet ceiling per lineage.
const DefaultCapacity = 100

// ErrInvalidCapacity is returned for a non-positive registry capacity.
var ErrInvalidCapacity = errors.New("registry capacity must be positive")

// Outcome is the result of PromoteOrRefresh.
type Outcome int

const (
	// Promoted means the address was inserted; the caller should subscribe to it.
	Promoted Outcome = iota + 1
	// Refreshed means the address was already tracked; LastActiveAt moved.
	Refreshed
	// Dropped means the registry is at capacity and the address is not tracked.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Promoted:
		return "promoted"
	case Refreshed:
		return "refreshed"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Registry is the bounded set of derived wallets owned by one lineage.
// All methods are safe for concurrent use.
type Registry struct {
	lineage  domain.LineageID
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	wallets map[string]*domain.DerivedWallet
}

// NewRegistry creates an empty registry for lineage.
func NewRegistry(lineage domain.LineageID, capacity int) (*Registry, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Registry{
		lineage:  lineage,
		capacity: capacity,
		now:      time.Now,
		wallets:  make(map[string]*domain.DerivedWallet),
	}, nil
}

// Lineage returns the owning lineage.
func (r *Registry) Lineage() domain.LineageID {
	return r.lineage
}

// Capacity returns the configured ceiling.
func (r *Registry) Capacity() int {
	return r.capacity
}

// PromoteOrRefresh inserts address or refreshes its activity time.
// A tracked address is refreshed even when the registry is full.
func (r *Registry) PromoteOrRefresh(address string) (Outcome, domain.DerivedWallet) {
	ts := r.now().UnixMilli()

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.wallets[address]; ok {
		w.LastActiveAt = ts
		return Refreshed, *w
	}
	if len(r.wallets) >= r.capacity {
		return Dropped, domain.DerivedWallet{Address: address, Lineage: r.lineage}
	}

	w := &domain.DerivedWallet{
		Address:      address,
		Lineage:      r.lineage,
		PromotedAt:   ts,
		LastActiveAt: ts,
	}
	r.wallets[address] = w
	return Promoted, *w
}

// Contains reports whether address is tracked.
func (r *Registry) Contains(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.wallets[address]
	return ok
}

// Get returns a copy of the tracked wallet.
func (r *Registry) Get(address string) (domain.DerivedWallet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[address]
	if !ok {
		return domain.DerivedWallet{}, false
	}
	return *w, true
}

// Len returns the number of tracked wallets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wallets)
}

// Snapshot returns copies of all tracked wallets ordered by promotion time, then address.
func (r *Registry) Snapshot() []domain.DerivedWallet {
	r.mu.Lock()
	out := make([]domain.DerivedWallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, *w)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PromotedAt != out[j].PromotedAt {
			return out[i].PromotedAt < out[j].PromotedAt
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Restore loads previously persisted wallets. Wallets of another lineage and
// duplicates are skipped, and loading stops at capacity. Returns the wallets
// that were inserted, in input order.
func (r *Registry) Restore(wallets []domain.DerivedWallet) []domain.DerivedWallet {
	r.mu.Lock()
	defer r.mu.Unlock()

	var restored []domain.DerivedWallet
	for _, w := range wallets {
		if w.Lineage != r.lineage || w.Address == "" {
			continue
		}
		if _, ok := r.wallets[w.Address]; ok {
			continue
		}
		if len(r.wallets) >= r.capacity {
			break
		}
		wc := w
		r.wallets[w.Address] = &wc
		restored = append(restored, wc)
	}
	return restored
}
