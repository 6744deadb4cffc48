package lineage

import (
	"math"

	"solana-lineage-tracker/internal/solana"
)

// DefaultMaxTransferSOL is the seed balance change at or above which a
// transaction is ignored.
const DefaultMaxTransferSOL = 25.0

// TransferFilter selects promotion candidates from a seed wallet transaction.
type TransferFilter struct {
	// MaxTransferSOL is an exclusive upper bound on |net seed balance change|.
	MaxTransferSOL float64
}

// NewTransferFilter creates a filter with the given threshold.
// A non-positive threshold falls back to DefaultMaxTransferSOL.
func NewTransferFilter(maxSOL float64) TransferFilter {
	if maxSOL <= 0 {
		maxSOL = DefaultMaxTransferSOL
	}
	return TransferFilter{MaxTransferSOL: maxSOL}
}

// Candidates returns the recipients of system transfers sent by seed in tx.
// The result is empty when tx failed, seed is not part of tx, or the seed's
// net balance moved by MaxTransferSOL or more. Order is first occurrence.
func (f TransferFilter) Candidates(seed string, tx *solana.ParsedTransaction) []string {
	if tx == nil || tx.Failed() {
		return nil
	}

	change, ok := tx.BalanceChange(seed)
	if !ok {
		return nil
	}
	sol := math.Abs(float64(change)) / solana.LamportsPerSOL
	if sol >= f.MaxTransferSOL {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, ix := range tx.Instructions {
		if !isSystemTransfer(ix) || ix.Source != seed || ix.Destination == "" {
			continue
		}
		if _, dup := seen[ix.Destination]; dup {
			continue
		}
		seen[ix.Destination] = struct{}{}
		out = append(out, ix.Destination)
	}
	return out
}

func isSystemTransfer(ix solana.ParsedInstruction) bool {
	return ix.Program == "system" && ix.Type == "transfer"
}
