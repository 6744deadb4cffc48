package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"solana-lineage-tracker/internal/observability"
	"solana-lineage-tracker/internal/solana"
)

// ErrPoolClosed is returned when opening a subscription on a closed pool.
var ErrPoolClosed = errors.New("listener pool closed")

// Handler processes one notification of a subscribed address.
type Handler func(ctx context.Context, address string, n solana.LogNotification)

// ListenerPool owns log subscriptions keyed by address. Each subscription is
// consumed by its own goroutine, so notifications of one address are handled
// in delivery order while different addresses run concurrently.
type ListenerPool struct {
	kind       string
	ws         solana.WSClient
	commitment string
	logger     *log.Logger

	mu     sync.Mutex
	subs   map[string]*solana.LogSubscription
	closed bool
	wg     sync.WaitGroup
}

// NewListenerPool creates an empty pool. kind labels logs and metrics.
func NewListenerPool(kind string, ws solana.WSClient, commitment string, logger *log.Logger) *ListenerPool {
	return &ListenerPool{
		kind:       kind,
		ws:         ws,
		commitment: commitment,
		logger:     logger,
		subs:       make(map[string]*solana.LogSubscription),
	}
}

// Open subscribes to address and hands every notification to h until ctx is
// done, the subscription ends or the pool is closed. It returns false with a
// nil error when address already has a live subscription.
func (p *ListenerPool) Open(ctx context.Context, address string, h Handler) (bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrPoolClosed
	}
	if _, ok := p.subs[address]; ok {
		p.mu.Unlock()
		return false, nil
	}
	p.mu.Unlock()

	sub, err := p.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []string{address},
		Commitment: p.commitment,
	})
	if err != nil {
		observability.RecordSubscribeError(p.kind)
		return false, fmt.Errorf("subscribe %s: %w", address, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		sub.Unsubscribe()
		return false, ErrPoolClosed
	}
	if _, ok := p.subs[address]; ok {
		// Lost a race with a concurrent Open of the same address.
		p.mu.Unlock()
		sub.Unsubscribe()
		return false, nil
	}
	p.subs[address] = sub
	p.wg.Add(1)
	p.mu.Unlock()

	observability.AddActiveSubscriptions(p.kind, 1)
	go p.consume(ctx, address, sub, h)
	return true, nil
}

func (p *ListenerPool) consume(ctx context.Context, address string, sub *solana.LogSubscription, h Handler) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		if p.subs[address] == sub {
			delete(p.subs, address)
		}
		p.mu.Unlock()
		observability.AddActiveSubscriptions(p.kind, -1)
		if err := sub.Unsubscribe(); err != nil {
			p.logger.Printf("[%s] unsubscribe %s: %v", p.kind, address, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case n := <-sub.Notifications():
			p.dispatch(ctx, address, n, h)
		}
	}
}

// dispatch runs h with panic recovery so one bad event never ends the stream.
func (p *ListenerPool) dispatch(ctx context.Context, address string, n solana.LogNotification, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordPanic()
			p.logger.Printf("[%s] panic handling %s tx=%s: %v", p.kind, address, n.Signature, r)
		}
	}()
	h(ctx, address, n)
}

// Contains reports whether address has a live subscription.
func (p *ListenerPool) Contains(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[address]
	return ok
}

// Len returns the number of live subscriptions.
func (p *ListenerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Addresses returns the subscribed addresses in sorted order.
func (p *ListenerPool) Addresses() []string {
	p.mu.Lock()
	out := make([]string, 0, len(p.subs))
	for addr := range p.subs {
		out = append(out, addr)
	}
	p.mu.Unlock()
	sort.Strings(out)
	return out
}

// Close tears down every subscription and waits for the consumers to return.
func (p *ListenerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	subs := make([]*solana.LogSubscription, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	p.wg.Wait()
}
