package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultMarketDataURL is a DexScreener-compatible token pairs endpoint.
const DefaultMarketDataURL = "https://api.dexscreener.com/latest/dex/tokens/"

// ErrNoMarket is returned when the endpoint knows no pair for the token.
var ErrNoMarket = errors.New("no market for token")

// MarketData looks up the market capitalization of a token in USD.
type MarketData interface {
	MarketCap(ctx context.Context, mint string) (float64, error)
}

// DexScreenerClient queries a DexScreener-compatible HTTP API.
type DexScreenerClient struct {
	baseURL string
	client  *http.Client
}

// NewDexScreenerClient creates a market data client. An empty baseURL uses DefaultMarketDataURL.
func NewDexScreenerClient(baseURL string, timeout time.Duration) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DefaultMarketDataURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DexScreenerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type pairsResponse struct {
	Pairs []struct {
		MarketCap *float64 `json:"marketCap"`
		FDV       *float64 `json:"fdv"`
	} `json:"pairs"`
}

// MarketCap returns the first pair's market cap, falling back to its FDV.
func (c *DexScreenerClient) MarketCap(ctx context.Context, mint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+mint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("market data status %d", resp.StatusCode)
	}

	var body pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	for _, p := range body.Pairs {
		if p.MarketCap != nil && *p.MarketCap > 0 {
			return *p.MarketCap, nil
		}
		if p.FDV != nil && *p.FDV > 0 {
			return *p.FDV, nil
		}
	}
	return 0, ErrNoMarket
}

// FormatUSD renders a dollar amount compactly, e.g. $1.25M.
func FormatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return "$" + trimFloat(v/1e9) + "B"
	case v >= 1e6:
		return "$" + trimFloat(v/1e6) + "M"
	case v >= 1e3:
		return "$" + trimFloat(v/1e3) + "K"
	default:
		return "$" + trimFloat(v)
	}
}

func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
