package solana

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SystemProgramID is the native system program.
const SystemProgramID = "11111111111111111111111111111111"

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// ParsedTransaction is a transaction decoded with jsonParsed encoding.
type ParsedTransaction struct {
	Signature         string
	Slot              int64
	BlockTime         int64 // Unix timestamp (seconds), 0 if unknown
	Err               interface{}
	AccountKeys       []string
	PreBalances       []uint64 // lamports, indexed like AccountKeys
	PostBalances      []uint64
	Instructions      []ParsedInstruction // top-level instructions
	InnerInstructions []ParsedInstruction // CPI instructions, flattened in order
	LogMessages       []string
}

// ParsedInstruction is one instruction of a parsed transaction.
// Parsed instructions carry Program/Type and transfer info, raw ones carry Accounts/Data.
type ParsedInstruction struct {
	ProgramID   string
	Program     string // e.g. "system", empty for raw instructions
	Type        string // e.g. "transfer"
	Source      string
	Destination string
	Lamports    uint64
	Accounts    []string
	Data        string // base58 instruction data
}

// BalanceChange returns the net lamport change of address in the transaction.
// The second result is false when the address is not part of the transaction
// or the balance arrays are incomplete.
func (t *ParsedTransaction) BalanceChange(address string) (int64, bool) {
	if t == nil {
		return 0, false
	}
	for i, key := range t.AccountKeys {
		if key != address {
			continue
		}
		if i >= len(t.PreBalances) || i >= len(t.PostBalances) {
			return 0, false
		}
		return int64(t.PostBalances[i]) - int64(t.PreBalances[i]), true
	}
	return 0, false
}

// Failed reports whether the transaction carries an execution error.
func (t *ParsedTransaction) Failed() bool {
	return t != nil && t.Err != nil
}
