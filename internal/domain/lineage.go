package domain

import "strconv"

// LineageID identifies one independently tracked seed lineage.
type LineageID int

const (
	LineageOne LineageID = 1
	LineageTwo LineageID = 2
)

// String returns the string representation of LineageID.
func (l LineageID) String() string {
	return "lineage-" + strconv.Itoa(int(l))
}

// IsValid checks if the lineage is one of the two supported values.
func (l LineageID) IsValid() bool {
	return l == LineageOne || l == LineageTwo
}

// SeedLineage is a top-level wallet watched directly by the operator.
type SeedLineage struct {
	ID      LineageID // lineage identity
	Address string    // seed wallet address (base58)
}
