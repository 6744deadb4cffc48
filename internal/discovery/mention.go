package discovery

import (
	"bytes"
	"strings"

	"github.com/mr-tron/base58"

	"solana-lineage-tracker/internal/domain"
	"solana-lineage-tracker/internal/solana"
)

// PumpFun is the pump.fun bonding curve program ID.
const PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// Anchor instruction discriminators of the pump.fun program.
var (
	PumpFunCreateDiscriminator = []byte{24, 30, 200, 40, 5, 28, 7, 119}
	PumpFunBuyDiscriminator    = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	PumpFunSellDiscriminator   = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// IndexOverride selects a different asset account index for instructions whose
// data starts with Discriminator.
type IndexOverride struct {
	Discriminator []byte
	AccountIndex  int
}

// ProgramRule says where a program's instructions carry the asset address.
type ProgramRule struct {
	ProgramID    string
	AccountIndex int // default asset account index
	Overrides    []IndexOverride
}

// indexFor returns the asset account index for base58 instruction data.
func (r ProgramRule) indexFor(data string) int {
	if len(r.Overrides) == 0 || data == "" {
		return r.AccountIndex
	}
	raw, err := base58.Decode(data)
	if err != nil {
		return r.AccountIndex
	}
	for _, o := range r.Overrides {
		if bytes.HasPrefix(raw, o.Discriminator) {
			return o.AccountIndex
		}
	}
	return r.AccountIndex
}

// DefaultRules returns the built-in program rules.
// pump.fun buy/sell carry the mint at account 2, create at account 0.
func DefaultRules() []ProgramRule {
	return []ProgramRule{
		{
			ProgramID:    PumpFun,
			AccountIndex: 2,
			Overrides: []IndexOverride{
				{Discriminator: PumpFunCreateDiscriminator, AccountIndex: 0},
			},
		},
	}
}

// MentionExtractor finds the asset a transaction touches through a tracked program.
type MentionExtractor struct {
	rules map[string]ProgramRule
	order []string
}

// NewMentionExtractor creates an extractor. With no rules DefaultRules is used.
func NewMentionExtractor(rules ...ProgramRule) *MentionExtractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	e := &MentionExtractor{rules: make(map[string]ProgramRule, len(rules))}
	for _, r := range rules {
		e.RegisterRule(r)
	}
	return e
}

// RegisterRule adds or replaces the rule for r.ProgramID.
func (e *MentionExtractor) RegisterRule(r ProgramRule) {
	if _, exists := e.rules[r.ProgramID]; !exists {
		e.order = append(e.order, r.ProgramID)
	}
	e.rules[r.ProgramID] = r
}

// Programs returns the tracked program IDs in registration order.
func (e *MentionExtractor) Programs() []string {
	return append([]string(nil), e.order...)
}

// MentionsProgram reports whether raw notification logs show a tracked program
// being invoked. Used to skip decoding transactions that cannot yield a mention.
func (e *MentionExtractor) MentionsProgram(logs []string) bool {
	for _, line := range logs {
		if !strings.HasPrefix(line, "Program ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if _, ok := e.rules[fields[1]]; ok {
			return true
		}
	}
	return false
}

// Extract returns the first asset mention found in tx, scanning top-level
// instructions before inner ones. Only Asset, Program, Signature and Slot are
// filled; the caller owns wallet and lineage.
func (e *MentionExtractor) Extract(tx *solana.ParsedTransaction) (domain.AssetMention, bool) {
	if tx == nil || tx.Failed() {
		return domain.AssetMention{}, false
	}
	for _, group := range [][]solana.ParsedInstruction{tx.Instructions, tx.InnerInstructions} {
		for _, ix := range group {
			asset, ok := e.assetOf(ix)
			if !ok {
				continue
			}
			return domain.AssetMention{
				Asset:     asset,
				Program:   ix.ProgramID,
				Signature: tx.Signature,
				Slot:      tx.Slot,
			}, true
		}
	}
	return domain.AssetMention{}, false
}

func (e *MentionExtractor) assetOf(ix solana.ParsedInstruction) (string, bool) {
	rule, ok := e.rules[ix.ProgramID]
	if !ok {
		return "", false
	}
	idx := rule.indexFor(ix.Data)
	if idx < 0 || idx >= len(ix.Accounts) {
		return "", false
	}
	addr := ix.Accounts[idx]
	if !IsValidAddress(addr) {
		return "", false
	}
	return addr, true
}

// IsValidAddress reports whether s is a base58 encoded 32-byte public key.
func IsValidAddress(s string) bool {
	if s == "" {
		return false
	}
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}
