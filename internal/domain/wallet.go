package domain

// DerivedWallet is an address promoted because a seed wallet transferred value to it.
// Corresponds to tracked_wallets table in PostgreSQL.
type DerivedWallet struct {
	Address      string    // derived wallet address (base58)
	Lineage      LineageID // owning lineage
	PromotedAt   int64     // first promotion, Unix ms
	LastActiveAt int64     // last seed transfer to this address, Unix ms
}
