package domain

// Placeholder values used when asset metadata cannot be resolved.
const (
	UnknownSymbol    = "???"
	UnknownMarketCap = "N/A"
)

// AssetMetadata represents display metadata for an asset.
type AssetMetadata struct {
	Mint      string   // asset mint address
	Name      string   // token name, empty if unknown
	Symbol    string   // token symbol or UnknownSymbol
	Decimals  int      // token decimals
	Supply    *float64 // total supply adjusted for decimals (nullable)
	MarketCap string   // formatted market cap or UnknownMarketCap
}
