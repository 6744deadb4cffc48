package tracker

import (
	"context"
	"errors"
	"time"

	"solana-lineage-tracker/internal/correlation"
	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/lineage"
	"solana-lineage-tracker/internal/observability"
	"solana-lineage-tracker/internal/solana"
	"solana-lineage-tracker/internal/storage"
)

// seedHandler promotes the recipients of small outgoing seed transfers.
func (t *Tracker) seedHandler(lin *Lineage) Handler {
	id := lin.seed.ID.String()
	return func(ctx context.Context, seed string, n solana.LogNotification) {
		start := time.Now()
		defer func() {
			observability.RecordEventLatency("seed", time.Since(start).Seconds())
		}()

		if n.Err != nil {
			observability.RecordSeedTransaction(id, "failed")
			return
		}

		tx, err := t.fetchTransaction(ctx, n.Signature)
		if err != nil {
			observability.RecordSeedTransaction(id, "decode_error")
			t.logger.Printf("[%s] decode seed tx %s: %v", lin.seed.ID, n.Signature, err)
			return
		}
		if tx == nil {
			observability.RecordSeedTransaction(id, "decode_miss")
			return
		}

		candidates := t.filter.Candidates(seed, tx)
		if len(candidates) == 0 {
			observability.RecordSeedTransaction(id, "ignored")
			return
		}
		observability.RecordSeedTransaction(id, "accepted")

		for _, addr := range candidates {
			t.promote(ctx, lin, addr, tx.Signature)
		}
	}
}

// promote records a transfer recipient and makes sure it is subscribed.
func (t *Tracker) promote(ctx context.Context, lin *Lineage, address, signature string) {
	if t.isSeed(address) {
		return
	}

	outcome, w := lin.registry.PromoteOrRefresh(address)
	observability.RecordPromotion(lin.seed.ID.String(), outcome.String())

	switch outcome {
	case lineage.Dropped:
		observability.RecordDropped("capacity")
		t.logger.Printf("[%s] registry full (%d), not tracking %s", lin.seed.ID, lin.registry.Capacity(), address)
		return
	case lineage.Promoted:
		observability.SetTrackedWallets(lin.seed.ID.String(), lin.registry.Len())
		t.logger.Printf("[%s] tracking %s (tx %s)", lin.seed.ID, address, signature)
		t.activity.Printf("%s promoted %s tx=%s", lin.seed.ID, address, signature)
	}

	if t.wallets != nil {
		if err := t.wallets.Upsert(ctx, &w); err != nil {
			t.logger.Printf("[%s] persist %s: %v", lin.seed.ID, address, err)
		}
	}

	// Refreshed wallets whose subscription failed earlier get another attempt.
	if outcome == lineage.Promoted || !lin.derived.Contains(address) {
		t.openDerived(ctx, lin, address)
	}
}

// openDerived subscribes a derived wallet. Failures are logged; the next
// refresh of the wallet retries.
func (t *Tracker) openDerived(ctx context.Context, lin *Lineage, address string) {
	opened, err := lin.derived.Open(ctx, address, t.derivedHandler(lin))
	if err != nil {
		if !errors.Is(err, ErrPoolClosed) && ctx.Err() == nil {
			t.logger.Printf("[%s] derived subscription for %s failed, retrying on next transfer: %v", lin.seed.ID, address, err)
		}
		return
	}
	if opened {
		t.activity.Printf("%s listening on %s", lin.seed.ID, address)
	}
}

// derivedHandler feeds asset mentions of a derived wallet into the table.
func (t *Tracker) derivedHandler(lin *Lineage) Handler {
	return func(ctx context.Context, wallet string, n solana.LogNotification) {
		if n.Err != nil {
			return
		}
		if !t.extractor.MentionsProgram(n.Logs) {
			observability.RecordDropped("no_program")
			return
		}

		start := time.Now()
		defer func() {
			observability.RecordEventLatency("derived", time.Since(start).Seconds())
		}()

		tx, err := t.fetchTransaction(ctx, n.Signature)
		if err != nil {
			t.logger.Printf("[%s] decode derived tx %s: %v", lin.seed.ID, n.Signature, err)
			return
		}
		mention, ok := t.extractor.Extract(tx)
		if !ok {
			return
		}
		mention.Wallet = wallet
		mention.Lineage = lin.seed.ID
		mention.ObservedAt = t.now().UnixMilli()
		observability.RecordMention(lin.seed.ID.String())

		if t.mentions != nil {
			err := t.mentions.Insert(ctx, &mention)
			if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				t.logger.Printf("[%s] store mention %s: %v", lin.seed.ID, mention.Signature, err)
			}
		}

		t.observe(ctx, mention)
	}
}

// observe applies a mention to the table and sends the alert it calls for.
func (t *Tracker) observe(ctx context.Context, m domain.AssetMention) {
	tr := t.table.Observe(correlation.Mention{
		Asset:     m.Asset,
		Lineage:   m.Lineage,
		Wallet:    m.Wallet,
		Signature: m.Signature,
	})
	observability.RecordTransition(tr.From.String(), tr.To.String(), tr.Notify, tr.Refire)

	if tr.From != tr.To {
		t.activity.Printf("%s %s -> %s via %s (%s) tx=%s", m.Asset, tr.From, tr.To, m.Wallet, m.Lineage, m.Signature)
	}
	if !tr.Notify {
		return
	}

	if tr.Refire {
		t.logger.Printf("re-observed converged asset %s via %s (%s)", m.Asset, m.Wallet, m.Lineage)
	} else {
		t.logger.Printf("CONVERGENCE asset=%s first=%s second=%s wallet=%s tx=%s",
			m.Asset, tr.FirstLineage, m.Lineage, m.Wallet, m.Signature)
	}

	alert := domain.ConvergenceAlert{
		Asset:        m.Asset,
		Wallet:       m.Wallet,
		Signature:    m.Signature,
		Lineage:      m.Lineage,
		FirstLineage: tr.FirstLineage,
		Refire:       tr.Refire,
	}
	if err := t.sender.Send(ctx, alert); err != nil {
		t.logger.Printf("alert for %s not delivered: %v", m.Asset, err)
		return
	}
	t.activity.Printf("alert sent for %s tx=%s", m.Asset, m.Signature)
}

// fetchTransaction decodes signature, retrying RPC errors and transactions
// the node has not indexed yet with exponential backoff. It returns nil, nil
// when the transaction never shows up.
func (t *Tracker) fetchTransaction(ctx context.Context, signature string) (*solana.ParsedTransaction, error) {
	var lastErr error
	for attempt := 0; attempt < t.cfg.DecodeAttempts; attempt++ {
		if attempt > 0 {
			delay := t.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		tx, err := t.rpc.GetParsedTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if err != nil {
			t.logger.Printf("[rpc] attempt %d/%d for getTransaction %s: %v", attempt+1, t.cfg.DecodeAttempts, signature, err)
		}
	}
	return nil, lastErr
}
