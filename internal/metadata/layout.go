package metadata

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// SPL mint account: mintAuthority option (36) | supply u64 | decimals u8 | ...
const (
	mintAccountLen = 82
	supplyOffset   = 36
	decimalsOffset = 44
)

// Metaplex metadata account: key u8 | update authority (32) | mint (32) | name | symbol | uri
const (
	metadataV1Key = 4
	nameOffset    = 65
	maxNameLen    = 64
	maxSymbolLen  = 16
)

type mintInfo struct {
	decimals int
	supply   float64
}

func decodeMint(data string) (mintInfo, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return mintInfo{}, fmt.Errorf("decode mint data: %w", err)
	}
	if len(raw) < mintAccountLen {
		return mintInfo{}, fmt.Errorf("mint data too short: %d", len(raw))
	}
	supply := binary.LittleEndian.Uint64(raw[supplyOffset : supplyOffset+8])
	decimals := int(raw[decimalsOffset])
	return mintInfo{
		decimals: decimals,
		supply:   float64(supply) / math.Pow10(decimals),
	}, nil
}

// decodeMetadata returns name and symbol from a Metaplex metadata account.
func decodeMetadata(data string) (name, symbol string, err error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", "", fmt.Errorf("decode metadata: %w", err)
	}
	if len(raw) < nameOffset+8 || raw[0] != metadataV1Key {
		return "", "", fmt.Errorf("not a metadata v1 account")
	}

	off := nameOffset
	name, off, err = borshString(raw, off, maxNameLen)
	if err != nil {
		return "", "", fmt.Errorf("name: %w", err)
	}
	symbol, _, err = borshString(raw, off, maxSymbolLen)
	if err != nil {
		return name, "", fmt.Errorf("symbol: %w", err)
	}
	return name, symbol, nil
}

func borshString(raw []byte, off, max int) (string, int, error) {
	if off+4 > len(raw) {
		return "", off, fmt.Errorf("truncated length at %d", off)
	}
	n := int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	if n > max || off+n > len(raw) {
		return "", off, fmt.Errorf("bad length %d", n)
	}
	s := strings.TrimRight(string(raw[off:off+n]), "\x00 ")
	return s, off + n, nil
}
