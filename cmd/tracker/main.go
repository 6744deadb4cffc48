package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-lineage-tracker/internal/activitylog"
	"solana-lineage-tracker/internal/config"
	"solana-lineage-tracker/internal/correlation"
	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/metadata"
	"solana-lineage-tracker/internal/notify"
	"solana-lineage-tracker/internal/observability"
	"solana-lineage-tracker/internal/solana"
	"solana-lineage-tracker/internal/storage"
	chstore "solana-lineage-tracker/internal/storage/clickhouse"
	"solana-lineage-tracker/internal/storage/memory"
	"solana-lineage-tracker/internal/storage/migrations"
	pgstore "solana-lineage-tracker/internal/storage/postgres"
	"solana-lineage-tracker/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	envFile := flag.String("env-file", ".env", "Path to .env file (ignored if missing)")
	seedOne := flag.String("seed-one", "", "Seed wallet of lineage 1 (overrides config)")
	seedTwo := flag.String("seed-two", "", "Seed wallet of lineage 2 (overrides config)")
	policy := flag.String("policy", "", "Re-fire policy: refire or once (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Metrics/status HTTP address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage even if DSNs are configured")
	resetWallets := flag.Bool("reset-wallets", false, "Delete persisted tracked wallets before starting")
	flag.Parse()

	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *seedOne != "" {
		cfg.Seeds.LineageOne = *seedOne
	}
	if *seedTwo != "" {
		cfg.Seeds.LineageTwo = *seedTwo
	}
	if *policy != "" {
		cfg.Tracker.RefirePolicy = *policy
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *useMemory {
		cfg.Storage = config.StorageConfig{}
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, *resetWallets)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, resetWallets bool) error {
	policy, _ := correlation.ParsePolicy(cfg.Tracker.RefirePolicy)

	activity, err := activitylog.Open(cfg.ActivityLog.Path, activitylog.Options{
		MaxBytes: cfg.ActivityLog.MaxBytes,
		Truncate: cfg.ActivityLog.Truncate,
	})
	if err != nil {
		return err
	}
	defer activity.Close()

	var rpcOpts []solana.ClientOption
	rpcOpts = append(rpcOpts, solana.WithCommitment(cfg.Solana.Commitment))
	if cfg.Solana.RPCRateLimit > 0 {
		burst := int(cfg.Solana.RPCRateLimit)
		if burst < 1 {
			burst = 1
		}
		rpcOpts = append(rpcOpts, solana.WithRateLimit(cfg.Solana.RPCRateLimit, burst))
	}
	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL, rpcOpts...)

	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("rpc endpoint %s unreachable: %w", cfg.Solana.RPCURL, err)
	}
	logger.Printf("Connected to RPC at slot %d", slot)

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Commitment = cfg.Solana.Commitment
	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, &wsCfg, log.New(os.Stdout, "[ws] ", log.LstdFlags))
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	st, closeStores, err := openStores(ctx, logger, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStores()
	if resetWallets {
		if err := resetTrackedWallets(ctx, logger, st.wallets); err != nil {
			return err
		}
	}

	var market metadata.MarketData
	if !cfg.Market.Disable {
		market = metadata.NewDexScreenerClient(cfg.Market.URL, 10*time.Second)
	}
	resolver := metadata.NewResolver(rpc, market, logger)

	notifiers, closeNotifiers, err := buildNotifiers(logger, cfg)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	gateway := notify.NewGateway(notify.GatewayConfig{
		Resolver: resolver,
		Alerts:   st.alerts,
	}, logger, notifiers...)

	t, err := tracker.New(tracker.Config{
		Seeds: []domain.SeedLineage{
			{ID: domain.LineageOne, Address: cfg.Seeds.LineageOne},
			{ID: domain.LineageTwo, Address: cfg.Seeds.LineageTwo},
		},
		Capacity:       cfg.Tracker.Capacity,
		MaxTransferSOL: cfg.Tracker.MaxTransferSOL,
		Policy:         policy,
		Commitment:     cfg.Solana.Commitment,
	}, tracker.Deps{
		RPC:      rpc,
		WS:       ws,
		Sender:   gateway,
		Wallets:  st.wallets,
		Mentions: st.mentions,
		Alerts:   st.alerts,
		Activity: activity,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := startHTTP(logger, cfg.MetricsAddr, t)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	activity.Printf("tracker started: seeds %s", strings.Join(cfg.SeedAddresses(), ", "))
	return t.Run(ctx)
}

type stores struct {
	wallets  storage.TrackedWalletStore
	mentions storage.MentionStore
	alerts   storage.AlertStore
}

// openStores uses Postgres and ClickHouse when DSNs are set and memory otherwise.
func openStores(ctx context.Context, logger *log.Logger, cfg config.StorageConfig) (*stores, func(), error) {
	s := &stores{
		wallets:  memory.NewTrackedWalletStore(),
		mentions: memory.NewMentionStore(),
		alerts:   memory.NewAlertStore(),
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.wallets = pgstore.NewTrackedWalletStore(pool)
		s.alerts = pgstore.NewAlertStore(pool)
		logger.Println("Using PostgreSQL for tracked wallets and alerts")
	} else {
		logger.Println("Using in-memory tracked wallets; lineages reset on restart")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		s.mentions = chstore.NewMentionStore(conn)
		logger.Println("Using ClickHouse for asset mentions")
	}

	return s, closeAll, nil
}

// resetTrackedWallets clears every persisted lineage so both restart from their seeds.
func resetTrackedWallets(ctx context.Context, logger *log.Logger, wallets storage.TrackedWalletStore) error {
	if err := wallets.DeleteAll(ctx); err != nil {
		return fmt.Errorf("reset tracked wallets: %w", err)
	}
	logger.Println("Cleared tracked wallets")
	return nil
}

// buildNotifiers returns the configured notifiers, falling back to the log.
func buildNotifiers(logger *log.Logger, cfg *config.Config) ([]notify.Notifier, func(), error) {
	var notifiers []notify.Notifier
	closeFn := func() {}

	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.ChannelID)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, tg)
		logger.Printf("Alerts go to Telegram channel %s", cfg.Telegram.ChannelID)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, nil)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				logger.Printf("Close kafka producer: %v", err)
			}
		}
		logger.Printf("Alerts go to Kafka topic %s", cfg.Kafka.Topic)
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
		logger.Println("No notifier configured, alerts are logged only")
	}
	return notifiers, closeFn, nil
}

func startHTTP(logger *log.Logger, addr string, t *tracker.Tracker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/status", t.StatusHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}
