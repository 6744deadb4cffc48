package stub

import (
	"context"
	"errors"
	"sync"

	"solana-lineage-tracker/internal/solana"
)

// ErrClosed is returned when subscribing on a closed stub.
var ErrClosed = errors.New("ws stub closed")

// WSClient implements solana.WSClient for testing. Tests publish
// notifications per mentioned address with Publish.
type WSClient struct {
	mu     sync.Mutex
	subs   map[string][]*solana.LogSubscription
	fail   map[string]error
	closed bool
	opened []string
}

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{
		subs: make(map[string][]*solana.LogSubscription),
		fail: make(map[string]error),
	}
}

// SubscribeLogs registers a subscription for every address in filter.Mentions.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (*solana.LogSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	for _, addr := range filter.Mentions {
		if err, ok := c.fail[addr]; ok {
			return nil, err
		}
	}

	var sub *solana.LogSubscription
	sub = solana.NewLogSubscription(64, func() error {
		c.remove(sub)
		return nil
	})
	for _, addr := range filter.Mentions {
		c.subs[addr] = append(c.subs[addr], sub)
		c.opened = append(c.opened, addr)
	}
	return sub, nil
}

func (c *WSClient) remove(sub *solana.LogSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, list := range c.subs {
		kept := list[:0]
		for _, s := range list {
			if s != sub {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(c.subs, addr)
		} else {
			c.subs[addr] = kept
		}
	}
}

// Publish delivers n to every live subscription mentioning address.
// Returns the number of subscriptions it reached.
func (c *WSClient) Publish(address string, n solana.LogNotification) int {
	c.mu.Lock()
	targets := append([]*solana.LogSubscription(nil), c.subs[address]...)
	c.mu.Unlock()

	delivered := 0
	for _, sub := range targets {
		if sub.Push(n) {
			delivered++
		}
	}
	return delivered
}

// FailSubscribe makes subscriptions mentioning address fail with err.
// Passing a nil err clears the failure.
func (c *WSClient) FailSubscribe(address string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, address)
		return
	}
	c.fail[address] = err
}

// Subscribed reports whether address has a live subscription.
func (c *WSClient) Subscribed(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[address]) > 0
}

// Active returns the number of addresses with a live subscription.
func (c *WSClient) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Opened returns every address ever subscribed, in order.
func (c *WSClient) Opened() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...)
}

// Close tears down all subscriptions.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var all []*solana.LogSubscription
	for _, list := range c.subs {
		all = append(all, list...)
	}
	c.subs = make(map[string][]*solana.LogSubscription)
	c.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
	return nil
}

var _ solana.WSClient = (*WSClient)(nil)
