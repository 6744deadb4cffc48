package domain

// AssetMention is a derived wallet transaction that references a tracked program's asset.
// Corresponds to asset_mentions table in ClickHouse.
type AssetMention struct {
	Asset      string    // asset mint address
	Program    string    // program ID that referenced the asset
	Wallet     string    // derived wallet the transaction was observed on
	Lineage    LineageID // lineage that owns the wallet
	Signature  string    // transaction signature
	Slot       int64     // Solana slot number
	ObservedAt int64     // Unix timestamp in milliseconds
}
