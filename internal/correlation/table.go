// Package correlation tracks which lineages have mentioned each asset and
// decides when a cross-lineage convergence should be announced.
package correlation

import (
	"sort"
	"sync"
	"time"

	"solana-lineage-tracker/internal/domain"
)

// State is the correlation state of one asset.
type State int

const (
	// StateAbsent is reported for assets the table has never seen.
	StateAbsent State = iota
	// StateSeen means exactly one lineage has mentioned the asset.
	StateSeen
	// StateConverged means at least two lineages have mentioned the asset.
	StateConverged
	// StateExcluded is terminal; the asset is one of the seed addresses.
	StateExcluded
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateSeen:
		return "seen"
	case StateConverged:
		return "converged"
	case StateExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Policy controls what happens when a converged asset is mentioned again.
type Policy int

const (
	// RefireOnReobservation notifies on every later mention of a converged asset.
	RefireOnReobservation Policy = iota
	// NotifyOnce treats Converged as terminal.
	NotifyOnce
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "", "refire":
		return RefireOnReobservation, true
	case "once":
		return NotifyOnce, true
	default:
		return 0, false
	}
}

func (p Policy) String() string {
	if p == NotifyOnce {
		return "once"
	}
	return "refire"
}

// Mention is one observation of an asset by a lineage.
type Mention struct {
	Asset     string
	Lineage   domain.LineageID
	Wallet    string
	Signature string
}

// Entry is the per-asset record.
type Entry struct {
	Asset        string
	State        State
	FirstLineage domain.LineageID // lineage of the first mention; zero when Excluded
	Lineages     []domain.LineageID
	Mentions     int
	FirstSeenAt  int64 // Unix ms
	ConvergedAt  int64 // Unix ms, zero unless Converged
	Fired        int   // notifications decided so far
}

// Transition is the outcome of one Observe call.
type Transition struct {
	Asset        string
	From         State
	To           State
	Notify       bool
	Refire       bool // Notify for an asset that had already converged
	FirstLineage domain.LineageID
}

type entry struct {
	Entry
	lineages map[domain.LineageID]struct{}
	fired    map[string]struct{} // signatures that produced a notification
}

// Table is the shared asset correlation table.
// Observe is atomic per call; all methods are safe for concurrent use.
type Table struct {
	policy Policy
	seeds  map[string]struct{}
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewTable creates a table. Mentions of any of seeds become Excluded.
func NewTable(policy Policy, seeds ...string) *Table {
	s := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		s[seed] = struct{}{}
	}
	return &Table{
		policy:  policy,
		seeds:   s,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Policy returns the configured re-fire policy.
func (t *Table) Policy() Policy {
	return t.policy
}

// Observe records m and returns the resulting transition.
func (t *Table) Observe(m Mention) Transition {
	ts := t.now().UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[m.Asset]
	if !ok {
		e = &entry{
			Entry:    Entry{Asset: m.Asset, FirstSeenAt: ts},
			lineages: make(map[domain.LineageID]struct{}),
			fired:    make(map[string]struct{}),
		}
		t.entries[m.Asset] = e
		if _, isSeed := t.seeds[m.Asset]; isSeed {
			e.State = StateExcluded
			e.Mentions = 1
			return Transition{Asset: m.Asset, From: StateAbsent, To: StateExcluded}
		}
		e.State = StateSeen
		e.FirstLineage = m.Lineage
		e.lineages[m.Lineage] = struct{}{}
		e.Mentions = 1
		return Transition{Asset: m.Asset, From: StateAbsent, To: StateSeen, FirstLineage: m.Lineage}
	}

	from := e.State
	tr := Transition{Asset: m.Asset, From: from, To: from, FirstLineage: e.FirstLineage}
	e.Mentions++

	switch from {
	case StateExcluded:
		return tr
	case StateSeen:
		if _, same := e.lineages[m.Lineage]; same {
			return tr
		}
		e.lineages[m.Lineage] = struct{}{}
		e.State = StateConverged
		e.ConvergedAt = ts
		tr.To = StateConverged
		tr.Notify = true
	case StateConverged:
		e.lineages[m.Lineage] = struct{}{}
		if t.policy == NotifyOnce {
			return tr
		}
		if _, dup := e.fired[m.Signature]; dup && m.Signature != "" {
			return tr
		}
		tr.Notify = true
		tr.Refire = true
	}

	if tr.Notify {
		e.Fired++
		if m.Signature != "" {
			e.fired[m.Signature] = struct{}{}
		}
	}
	return tr
}

// Get returns a copy of the entry for asset.
func (t *Table) Get(asset string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[asset]
	if !ok {
		return Entry{Asset: asset, State: StateAbsent}, false
	}
	return e.export(), true
}

// Len returns the number of assets in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Counts returns the number of assets per state.
func (t *Table) Counts() map[State]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[State]int, 3)
	for _, e := range t.entries {
		out[e.State]++
	}
	return out
}

// Snapshot returns copies of all entries ordered by asset.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.export())
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (e *entry) export() Entry {
	c := e.Entry
	c.Lineages = make([]domain.LineageID, 0, len(e.lineages))
	for l := range e.lineages {
		c.Lineages = append(c.Lineages, l)
	}
	sort.Slice(c.Lineages, func(i, j int) bool { return c.Lineages[i] < c.Lineages[j] })
	return c
}
