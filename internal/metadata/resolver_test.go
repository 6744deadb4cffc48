package metadata

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/solana"
	"solana-lineage-tracker/internal/solana/stub"
)

const testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func mintData(supply uint64, decimals byte) string {
	raw := make([]byte, mintAccountLen)
	binary.LittleEndian.PutUint64(raw[supplyOffset:], supply)
	raw[decimalsOffset] = decimals
	raw[decimalsOffset+1] = 1
	return base64.StdEncoding.EncodeToString(raw)
}

func borsh(s string, pad int) []byte {
	out := make([]byte, 4, 4+pad)
	binary.LittleEndian.PutUint32(out, uint32(pad))
	body := make([]byte, pad)
	copy(body, s)
	return append(out, body...)
}

func metadataData(name, symbol string) string {
	raw := make([]byte, nameOffset)
	raw[0] = metadataV1Key
	raw = append(raw, borsh(name, 32)...)
	raw = append(raw, borsh(symbol, 10)...)
	raw = append(raw, borsh("https://example.com", 200)...)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestMetadataAddress(t *testing.T) {
	pda, err := MetadataAddress(testMint)
	if err != nil {
		t.Fatalf("MetadataAddress: %v", err)
	}
	raw, err := base58.Decode(pda)
	if err != nil || len(raw) != 32 {
		t.Fatalf("expected 32-byte address, got %q", pda)
	}
	if onCurve(raw) {
		t.Error("program address must be off curve")
	}

	again, _ := MetadataAddress(testMint)
	if again != pda {
		t.Error("derivation should be deterministic")
	}

	if _, err := MetadataAddress("bad"); err == nil {
		t.Error("expected error for invalid mint")
	}
}

func TestDecodeMint(t *testing.T) {
	m, err := decodeMint(mintData(1_000_000_000_000_000, 6))
	if err != nil {
		t.Fatalf("decodeMint: %v", err)
	}
	if m.decimals != 6 || m.supply != 1_000_000_000 {
		t.Errorf("unexpected mint info: %+v", m)
	}

	if _, err := decodeMint(base64.StdEncoding.EncodeToString([]byte{1, 2, 3})); err == nil {
		t.Error("expected error for short data")
	}
}

func TestDecodeMetadata(t *testing.T) {
	name, symbol, err := decodeMetadata(metadataData("Test Coin", "TEST"))
	if err != nil {
		t.Fatalf("decodeMetadata: %v", err)
	}
	if name != "Test Coin" || symbol != "TEST" {
		t.Errorf("got %q / %q", name, symbol)
	}

	raw := make([]byte, 100)
	raw[0] = 1
	if _, _, err := decodeMetadata(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Error("expected error for wrong key")
	}
}

type fixedMarket struct {
	value float64
	err   error
}

func (m fixedMarket) MarketCap(context.Context, string) (float64, error) {
	return m.value, m.err
}

func TestResolver_Resolve(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddAccount(testMint, &solana.AccountInfo{Data: mintData(500_000_000_000, 3)})
	pda, _ := MetadataAddress(testMint)
	rpc.AddAccount(pda, &solana.AccountInfo{Data: metadataData("Test Coin", "TEST")})

	r := NewResolver(rpc, fixedMarket{value: 1_250_000}, nil)
	meta := r.Resolve(context.Background(), testMint)

	if meta.Symbol != "TEST" || meta.Name != "Test Coin" {
		t.Errorf("unexpected symbol/name: %+v", meta)
	}
	if meta.Decimals != 3 || meta.Supply == nil || *meta.Supply != 500_000_000 {
		t.Errorf("unexpected supply: %+v", meta)
	}
	if meta.MarketCap != "$1.25M" {
		t.Errorf("expected $1.25M, got %s", meta.MarketCap)
	}
}

func TestResolver_Placeholders(t *testing.T) {
	rpc := stub.NewRPCClient()
	r := NewResolver(rpc, fixedMarket{err: errors.New("boom")}, nil)

	meta := r.Resolve(context.Background(), testMint)
	if meta.Symbol != domain.UnknownSymbol || meta.MarketCap != domain.UnknownMarketCap {
		t.Errorf("expected placeholders, got %+v", meta)
	}
	if meta.Mint != testMint {
		t.Errorf("mint should be kept, got %s", meta.Mint)
	}

	none := NewResolver(nil, nil, nil).Resolve(context.Background(), "anything")
	if none.Symbol != domain.UnknownSymbol || none.MarketCap != domain.UnknownMarketCap {
		t.Errorf("expected placeholders without sources, got %+v", none)
	}
}

func TestDexScreenerClient_MarketCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens/" + testMint:
			fmt.Fprint(w, `{"pairs":[{"marketCap":null,"fdv":42000},{"marketCap":1}]}`)
		case "/tokens/empty":
			fmt.Fprint(w, `{"pairs":null}`)
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	c := NewDexScreenerClient(server.URL+"/tokens", time.Second)
	ctx := context.Background()

	mc, err := c.MarketCap(ctx, testMint)
	if err != nil || mc != 42000 {
		t.Errorf("expected fdv fallback 42000, got %v (%v)", mc, err)
	}
	if _, err := c.MarketCap(ctx, "empty"); !errors.Is(err, ErrNoMarket) {
		t.Errorf("expected ErrNoMarket, got %v", err)
	}
	if _, err := c.MarketCap(ctx, "other"); err == nil {
		t.Error("expected error on non-200 status")
	}
}

func TestFormatUSD(t *testing.T) {
	tests := map[float64]string{
		999:           "$999",
		1500:          "$1.5K",
		1_250_000:     "$1.25M",
		3_000_000_000: "$3B",
		12.5:          "$12.5",
	}
	for in, want := range tests {
		if got := FormatUSD(in); got != want {
			t.Errorf("FormatUSD(%v) = %s, want %s", in, got, want)
		}
	}
}
