package metadata

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// MetaplexProgramID is the Metaplex Token Metadata program.
const MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

var (
	errBadMint  = errors.New("mint is not a 32-byte base58 key")
	errNoBump   = errors.New("no off-curve bump found")
	pdaMarker   = []byte("ProgramDerivedAddress")
	metadataTag = []byte("metadata")
)

// MetadataAddress derives the Metaplex metadata account for mint.
// Seeds are "metadata", program id, mint.
func MetadataAddress(mint string) (string, error) {
	mintKey, err := base58.Decode(mint)
	if err != nil || len(mintKey) != 32 {
		return "", errBadMint
	}
	program, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", err
	}
	return findProgramAddress([][]byte{metadataTag, program, mintKey}, program)
}

// findProgramAddress searches bumps from 255 down for the first hash that is
// not a valid ed25519 point.
func findProgramAddress(seeds [][]byte, program []byte) (string, error) {
	var buf []byte
	for bump := 255; bump >= 0; bump-- {
		buf = buf[:0]
		for _, s := range seeds {
			buf = append(buf, s...)
		}
		buf = append(buf, byte(bump))
		buf = append(buf, program...)
		buf = append(buf, pdaMarker...)

		sum := sha256.Sum256(buf)
		if !onCurve(sum[:]) {
			return base58.Encode(sum[:]), nil
		}
	}
	return "", errNoBump
}

func onCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
