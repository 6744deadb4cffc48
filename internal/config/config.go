// Package config loads tracker configuration. Sources are applied in order
// defaults, TOML file, .env file, process environment; later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/pelletier/go-toml/v2"
)

type SolanaConfig struct {
	RPCURL       string  `toml:"rpc_url"`
	WSURL        string  `toml:"ws_url"`
	Commitment   string  `toml:"commitment"`
	RPCRateLimit float64 `toml:"rpc_rate_limit"` // requests per second, 0 disables
}

type SeedsConfig struct {
	LineageOne string `toml:"lineage_one"`
	LineageTwo string `toml:"lineage_two"`
}

type TrackerConfig struct {
	Capacity       int     `toml:"capacity"`
	MaxTransferSOL float64 `toml:"max_transfer_sol"`
	RefirePolicy   string  `toml:"refire_policy"` // "refire" or "once"
}

type TelegramConfig struct {
	Token     string `toml:"token"`
	ChannelID string `toml:"channel_id"`
	APIURL    string `toml:"api_url"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type StorageConfig struct {
	PostgresDSN   string `toml:"postgres_dsn"`
	ClickhouseDSN string `toml:"clickhouse_dsn"`
}

type ActivityLogConfig struct {
	Path     string `toml:"path"`
	MaxBytes int64  `toml:"max_bytes"`
	Truncate bool   `toml:"truncate"`
}

type MarketConfig struct {
	URL     string `toml:"url"`
	Disable bool   `toml:"disable"`
}

type Config struct {
	Solana      SolanaConfig      `toml:"solana"`
	Seeds       SeedsConfig       `toml:"seeds"`
	Tracker     TrackerConfig     `toml:"tracker"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Kafka       KafkaConfig       `toml:"kafka"`
	Storage     StorageConfig     `toml:"storage"`
	ActivityLog ActivityLogConfig `toml:"activity_log"`
	Market      MarketConfig      `toml:"market"`
	MetricsAddr string            `toml:"metrics_addr"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
		},
		Tracker: TrackerConfig{
			Capacity:       100,
			MaxTransferSOL: 25,
			RefirePolicy:   "refire",
		},
		ActivityLog: ActivityLogConfig{
			Path:     "wallet_tracker.log",
			MaxBytes: 10 << 20,
			Truncate: true,
		},
		MetricsAddr: ":9090",
	}
}

// Load reads defaults, then the TOML file at path (skipped when empty),
// then a .env file (skipped when missing), then the process environment.
func Load(path, dotenvPath string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SOLANA_RPC_URL", &c.Solana.RPCURL)
	str("SOLANA_WS_URL", &c.Solana.WSURL)
	str("SOLANA_COMMITMENT", &c.Solana.Commitment)
	str("MAIN_WALLET_ADDRESS", &c.Seeds.LineageOne)
	str("SEED_WALLET_ONE", &c.Seeds.LineageOne)
	str("SEED_WALLET_TWO", &c.Seeds.LineageTwo)
	str("REFIRE_POLICY", &c.Tracker.RefirePolicy)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	str("TELEGRAM_CHANNEL_ID", &c.Telegram.ChannelID)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("LOG_FILE", &c.ActivityLog.Path)
	str("MARKET_DATA_URL", &c.Market.URL)
	str("METRICS_ADDR", &c.MetricsAddr)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("TRACKED_WALLETS_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACKED_WALLETS_SIZE: %w", err)
		}
		c.Tracker.Capacity = n
	}
	if v, ok := lookup("MAX_TRANSFER_SOL"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MAX_TRANSFER_SOL: %w", err)
		}
		c.Tracker.MaxTransferSOL = f
	}
	if v, ok := lookup("LOG_MAX_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LOG_MAX_SIZE: %w", err)
		}
		c.ActivityLog.MaxBytes = n
	}
	if v, ok := lookup("RPC_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RPC_RATE_LIMIT: %w", err)
		}
		c.Solana.RPCRateLimit = f
	}
	return nil
}

// Validate checks the configuration and fills derived values.
func (c *Config) Validate() error {
	var errs []error

	if c.Solana.RPCURL == "" {
		errs = append(errs, errors.New("solana.rpc_url is required"))
	}
	if c.Solana.WSURL == "" {
		c.Solana.WSURL = DeriveWSURL(c.Solana.RPCURL)
	}
	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("solana.commitment %q must be processed, confirmed or finalized", c.Solana.Commitment))
	}
	if c.Solana.RPCRateLimit < 0 {
		errs = append(errs, errors.New("solana.rpc_rate_limit must not be negative"))
	}

	if err := validateAddress("seeds.lineage_one", c.Seeds.LineageOne); err != nil {
		errs = append(errs, err)
	}
	if err := validateAddress("seeds.lineage_two", c.Seeds.LineageTwo); err != nil {
		errs = append(errs, err)
	}
	if c.Seeds.LineageOne != "" && c.Seeds.LineageOne == c.Seeds.LineageTwo {
		errs = append(errs, errors.New("seed wallets must be distinct"))
	}

	if c.Tracker.Capacity <= 0 {
		errs = append(errs, errors.New("tracker.capacity must be positive"))
	}
	if c.Tracker.MaxTransferSOL <= 0 {
		errs = append(errs, errors.New("tracker.max_transfer_sol must be positive"))
	}
	switch c.Tracker.RefirePolicy {
	case "", "refire", "once":
	default:
		errs = append(errs, fmt.Errorf("tracker.refire_policy %q must be refire or once", c.Tracker.RefirePolicy))
	}

	if (c.Telegram.Token == "") != (c.Telegram.ChannelID == "") {
		errs = append(errs, errors.New("telegram token and channel_id must be set together"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}

// SeedAddresses returns the two seed addresses in lineage order.
func (c *Config) SeedAddresses() []string {
	return []string{c.Seeds.LineageOne, c.Seeds.LineageTwo}
}

// DeriveWSURL maps an http(s) RPC endpoint to its ws(s) counterpart.
func DeriveWSURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}

func validateAddress(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%s: invalid base58: %w", field, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%s: expected 32-byte key, got %d bytes", field, len(raw))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
