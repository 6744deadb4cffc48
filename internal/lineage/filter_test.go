package lineage

import (
	"reflect"
	"testing"

	"solana-lineage-tracker/internal/solana"
)

const seed = "Seed1111111111111111111111111111111111111111"

func transfer(src, dst string, lamports uint64) solana.ParsedInstruction {
	return solana.ParsedInstruction{
		ProgramID:   solana.SystemProgramID,
		Program:     "system",
		Type:        "transfer",
		Source:      src,
		Destination: dst,
		Lamports:    lamports,
	}
}

// seedTx builds a transaction where seed is the second account and moves delta lamports.
func seedTx(pre, post uint64, ixs ...solana.ParsedInstruction) *solana.ParsedTransaction {
	return &solana.ParsedTransaction{
		Signature:    "sig",
		AccountKeys:  []string{"FeePayer", seed, "D1", "D2"},
		PreBalances:  []uint64{1_000_000, pre, 0, 0},
		PostBalances: []uint64{995_000, post, 0, 0},
		Instructions: ixs,
	}
}

func TestTransferFilter_Candidates(t *testing.T) {
	f := NewTransferFilter(25)
	sol := uint64(solana.LamportsPerSOL)

	tests := []struct {
		name string
		tx   *solana.ParsedTransaction
		want []string
	}{
		{
			name: "nil transaction",
			tx:   nil,
			want: nil,
		},
		{
			name: "failed transaction",
			tx: func() *solana.ParsedTransaction {
				tx := seedTx(10*sol, 9*sol, transfer(seed, "D1", sol))
				tx.Err = "InstructionError"
				return tx
			}(),
			want: nil,
		},
		{
			name: "single small transfer",
			tx:   seedTx(10*sol, 9*sol, transfer(seed, "D1", sol)),
			want: []string{"D1"},
		},
		{
			name: "change at threshold is excluded",
			tx:   seedTx(30*sol, 5*sol, transfer(seed, "D1", 25*sol)),
			want: nil,
		},
		{
			name: "large incoming is excluded",
			tx:   seedTx(1*sol, 40*sol),
			want: nil,
		},
		{
			name: "just below threshold",
			tx:   seedTx(30*sol, 5*sol+1, transfer(seed, "D1", 25*sol-1)),
			want: []string{"D1"},
		},
		{
			name: "duplicates removed in order",
			tx: seedTx(10*sol, 7*sol,
				transfer(seed, "D2", sol),
				transfer(seed, "D1", sol),
				transfer(seed, "D2", sol)),
			want: []string{"D2", "D1"},
		},
		{
			name: "transfers from other sources ignored",
			tx: seedTx(10*sol, 9*sol,
				transfer("Other", "D1", sol),
				transfer(seed, "D2", sol)),
			want: []string{"D2"},
		},
		{
			name: "non system instructions ignored",
			tx: seedTx(10*sol, 9*sol,
				solana.ParsedInstruction{Program: "spl-token", Type: "transfer", Source: seed, Destination: "D1"},
				solana.ParsedInstruction{Program: "system", Type: "createAccount", Source: seed, Destination: "D2"}),
			want: nil,
		},
		{
			name: "empty destination ignored",
			tx:   seedTx(10*sol, 9*sol, transfer(seed, "", sol)),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Candidates(seed, tt.tx)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransferFilter_SeedAbsent(t *testing.T) {
	f := NewTransferFilter(25)
	tx := &solana.ParsedTransaction{
		AccountKeys:  []string{"A", "B"},
		PreBalances:  []uint64{10, 0},
		PostBalances: []uint64{5, 5},
		Instructions: []solana.ParsedInstruction{transfer(seed, "B", 5)},
	}
	if got := f.Candidates(seed, tx); len(got) != 0 {
		t.Errorf("expected no candidates when seed is absent, got %v", got)
	}
}

func TestTransferFilter_InnerTransfersIgnored(t *testing.T) {
	f := NewTransferFilter(25)
	tx := seedTx(10*solana.LamportsPerSOL, 9*solana.LamportsPerSOL)
	tx.InnerInstructions = []solana.ParsedInstruction{transfer(seed, "D1", solana.LamportsPerSOL)}
	if got := f.Candidates(seed, tx); len(got) != 0 {
		t.Errorf("expected inner transfers to be ignored, got %v", got)
	}
}

func TestTransferFilter_Pure(t *testing.T) {
	f := NewTransferFilter(25)
	tx := seedTx(10*solana.LamportsPerSOL, 8*solana.LamportsPerSOL,
		transfer(seed, "D1", solana.LamportsPerSOL),
		transfer(seed, "D2", solana.LamportsPerSOL))

	first := f.Candidates(seed, tx)
	second := f.Candidates(seed, tx)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated calls differ: %v vs %v", first, second)
	}
}

func TestNewTransferFilter_Default(t *testing.T) {
	if f := NewTransferFilter(0); f.MaxTransferSOL != DefaultMaxTransferSOL {
		t.Errorf("expected default threshold, got %v", f.MaxTransferSOL)
	}
}
