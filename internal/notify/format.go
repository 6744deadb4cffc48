package notify

import (
	"fmt"
	"html"
	"strings"

	"solana-lineage-tracker/internal/domain"
)

const solscanURL = "https://solscan.io"

// ShortenAddress keeps the first and last chars characters of address.
func ShortenAddress(address string, chars int) string {
	if chars <= 0 || len(address) <= 2*chars {
		return address
	}
	return address[:chars] + "..." + address[len(address)-chars:]
}

// AccountLink renders a shortened solscan account link.
func AccountLink(address string) string {
	return fmt.Sprintf(`<a href="%s/account/%s">%s</a>`, solscanURL, address, html.EscapeString(ShortenAddress(address, 4)))
}

// TokenLink renders a shortened solscan token link.
func TokenLink(mint string) string {
	return fmt.Sprintf(`<a href="%s/token/%s">%s</a>`, solscanURL, mint, html.EscapeString(ShortenAddress(mint, 4)))
}

// TxLink renders a solscan transaction link.
func TxLink(signature string) string {
	return fmt.Sprintf(`<a href="%s/tx/%s">Txn</a>`, solscanURL, signature)
}

// FormatAlert renders an alert as Telegram HTML.
func FormatAlert(a domain.ConvergenceAlert, meta domain.AssetMetadata) string {
	symbol := meta.Symbol
	if symbol == "" {
		symbol = domain.UnknownSymbol
	}
	marketCap := meta.MarketCap
	if marketCap == "" {
		marketCap = domain.UnknownMarketCap
	}

	var b strings.Builder
	if a.Refire {
		b.WriteString("🔁 Converged asset traded again\n")
	} else {
		b.WriteString("🚨 Lineage convergence\n")
	}
	fmt.Fprintf(&b, "Token: <b>%s</b> %s\n", html.EscapeString(symbol), TokenLink(a.Asset))
	fmt.Fprintf(&b, "Market cap: %s\n", html.EscapeString(marketCap))
	fmt.Fprintf(&b, "Wallet: %s (%s, first seen on %s)\n", AccountLink(a.Wallet), a.Lineage, a.FirstLineage)
	b.WriteString(TxLink(a.Signature))
	return b.String()
}
