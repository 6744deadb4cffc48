package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"solana-lineage-tracker/internal/config"
	"solana-lineage-tracker/internal/discovery"
	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/lineage"
	"solana-lineage-tracker/internal/solana"
	"solana-lineage-tracker/internal/storage"
	chstore "solana-lineage-tracker/internal/storage/clickhouse"
)

// inspect prints what the tracker would do with the recent transactions of an
// address: promotion candidates when treated as a seed, and asset mentions
// when treated as a derived wallet. With -since it lists the mentions the
// tracker persisted to ClickHouse instead.
func main() {
	address := flag.String("address", "", "Wallet address to inspect (required unless -since is set)")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint (defaults to SOLANA_RPC_URL or config)")
	configPath := flag.String("config", "", "Path to TOML config file")
	limit := flag.Int("limit", 20, "Number of recent signatures to inspect")
	maxSOL := flag.Float64("max-transfer-sol", 0, "Promotion threshold in SOL (defaults to config)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	since := flag.Duration("since", 0, "List persisted asset mentions of this window (e.g. 6h) instead of inspecting an address")
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	if *since > 0 {
		cfg, err := config.Load(*configPath, ".env")
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
		if cfg.Storage.ClickhouseDSN == "" {
			logger.Fatal("-since needs storage.clickhouse_dsn (CLICKHOUSE_DSN)")
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer conn.Close()

		if _, err := mentionsSince(ctx, chstore.NewMentionStore(conn), *since, time.Now()); err != nil {
			logger.Fatalf("Error: %v", err)
		}
		return
	}

	if *address == "" {
		logger.Fatal("--address is required")
	}
	if !discovery.IsValidAddress(*address) {
		logger.Fatalf("invalid address: %s", *address)
	}

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	endpoint := cfg.Solana.RPCURL
	if *rpcEndpoint != "" {
		endpoint = *rpcEndpoint
	}
	threshold := cfg.Tracker.MaxTransferSOL
	if *maxSOL > 0 {
		threshold = *maxSOL
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rpc := solana.NewHTTPClient(endpoint, solana.WithCommitment(cfg.Solana.Commitment))
	if err := inspect(ctx, rpc, *address, *limit, lineage.NewTransferFilter(threshold), discovery.NewMentionExtractor()); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

// mentionsSince prints the mentions observed in the window ending at now and
// which of their assets were bought by both lineages.
func mentionsSince(ctx context.Context, mentions storage.MentionStore, window time.Duration, now time.Time) ([]*domain.AssetMention, error) {
	start := now.Add(-window).UnixMilli()
	list, err := mentions.GetByTimeRange(ctx, start, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ObservedAt < list[j].ObservedAt })

	fmt.Printf("%d asset mentions in the last %v\n\n", len(list), window)
	lineages := make(map[string]map[domain.LineageID]bool)
	for _, m := range list {
		fmt.Printf("%s %s %s wallet=%s sig=%s\n",
			time.UnixMilli(m.ObservedAt).UTC().Format(time.RFC3339), m.Lineage, m.Asset, m.Wallet, m.Signature)
		if lineages[m.Asset] == nil {
			lineages[m.Asset] = make(map[domain.LineageID]bool)
		}
		lineages[m.Asset][m.Lineage] = true
	}

	var both []string
	for a, ls := range lineages {
		if len(ls) > 1 {
			both = append(both, a)
		}
	}
	sort.Strings(both)
	if len(both) > 0 {
		fmt.Printf("\nbought by both lineages: %s\n", strings.Join(both, ", "))
	}
	return list, nil
}

func inspect(ctx context.Context, rpc solana.RPCClient, address string, limit int, filter lineage.TransferFilter, extractor *discovery.MentionExtractor) error {
	sigs, err := rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{Limit: limit})
	if err != nil {
		return fmt.Errorf("get signatures: %w", err)
	}
	fmt.Printf("%d recent transactions of %s (threshold %.2f SOL)\n\n", len(sigs), address, filter.MaxTransferSOL)

	for _, s := range sigs {
		fmt.Printf("%s slot=%d\n", s.Signature, s.Slot)
		if s.Err != nil {
			fmt.Println("  failed, ignored")
			continue
		}

		tx, err := rpc.GetParsedTransaction(ctx, s.Signature)
		if err != nil {
			fmt.Printf("  decode error: %v\n", err)
			continue
		}
		if tx == nil {
			fmt.Println("  not available")
			continue
		}

		if change, ok := tx.BalanceChange(address); ok {
			fmt.Printf("  balance change: %+.4f SOL\n", float64(change)/solana.LamportsPerSOL)
		}
		if c := filter.Candidates(address, tx); len(c) > 0 {
			fmt.Printf("  as seed: would promote %s\n", strings.Join(c, ", "))
		} else {
			fmt.Println("  as seed: nothing to promote")
		}
		if m, ok := extractor.Extract(tx); ok {
			fmt.Printf("  as derived: mentions %s via %s\n", m.Asset, m.Program)
		} else {
			fmt.Println("  as derived: no asset mention")
		}
	}
	return nil
}
