// Package metadata resolves display metadata for assets named in alerts.
package metadata

import (
	"context"
	"log"
	"sync"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/solana"
)

// AccountReader is the subset of the RPC client the resolver needs.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// Resolver looks up symbol, supply and market cap for a mint.
// It never fails: fields that cannot be resolved carry placeholders.
type Resolver struct {
	accounts AccountReader
	market   MarketData
	logger   *log.Logger

	mu      sync.Mutex
	symbols map[string]symbolEntry
}

type symbolEntry struct {
	name   string
	symbol string
}

// NewResolver creates a resolver. market may be nil to skip market cap lookups.
func NewResolver(accounts AccountReader, market MarketData, logger *log.Logger) *Resolver {
	return &Resolver{
		accounts: accounts,
		market:   market,
		logger:   logger,
		symbols:  make(map[string]symbolEntry),
	}
}

// Resolve returns metadata for mint.
func (r *Resolver) Resolve(ctx context.Context, mint string) domain.AssetMetadata {
	meta := domain.AssetMetadata{
		Mint:      mint,
		Symbol:    domain.UnknownSymbol,
		MarketCap: domain.UnknownMarketCap,
	}

	if r.accounts != nil {
		r.resolveMint(ctx, &meta)
		r.resolveSymbol(ctx, &meta)
	}

	if r.market != nil {
		mc, err := r.market.MarketCap(ctx, mint)
		if err != nil {
			r.logf("market cap %s: %v", mint, err)
		} else {
			meta.MarketCap = FormatUSD(mc)
		}
	}

	return meta
}

func (r *Resolver) resolveMint(ctx context.Context, meta *domain.AssetMetadata) {
	info, err := r.accounts.GetAccountInfo(ctx, meta.Mint)
	if err != nil {
		r.logf("mint account %s: %v", meta.Mint, err)
		return
	}
	if info == nil {
		return
	}
	m, err := decodeMint(info.Data)
	if err != nil {
		r.logf("mint %s: %v", meta.Mint, err)
		return
	}
	meta.Decimals = m.decimals
	supply := m.supply
	meta.Supply = &supply
}

// resolveSymbol reads the Metaplex metadata account. Results are cached per mint.
func (r *Resolver) resolveSymbol(ctx context.Context, meta *domain.AssetMetadata) {
	r.mu.Lock()
	cached, ok := r.symbols[meta.Mint]
	r.mu.Unlock()
	if ok {
		meta.Name = cached.name
		meta.Symbol = cached.symbol
		return
	}

	pda, err := MetadataAddress(meta.Mint)
	if err != nil {
		return
	}
	info, err := r.accounts.GetAccountInfo(ctx, pda)
	if err != nil {
		r.logf("metadata account %s: %v", pda, err)
		return
	}
	if info == nil {
		return
	}
	name, symbol, err := decodeMetadata(info.Data)
	if err != nil || symbol == "" {
		return
	}

	meta.Name = name
	meta.Symbol = symbol
	r.mu.Lock()
	r.symbols[meta.Mint] = symbolEntry{name: name, symbol: symbol}
	r.mu.Unlock()
}

func (r *Resolver) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
