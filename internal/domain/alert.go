package domain

// ConvergenceAlert is emitted when two lineages have mentioned the same asset.
// Corresponds to convergence_alerts table in PostgreSQL.
type ConvergenceAlert struct {
	AlertID      string    // PRIMARY KEY, UUID
	Asset        string    // asset mint address
	Wallet       string    // derived wallet whose mention triggered the alert
	Signature    string    // triggering transaction signature
	Lineage      LineageID // lineage of the triggering mention
	FirstLineage LineageID // lineage that mentioned the asset first
	Refire       bool      // true when re-observed after convergence
	Symbol       string    // resolved symbol or placeholder
	MarketCap    string    // display string or placeholder
	DetectedAt   int64     // Unix timestamp in milliseconds
}
