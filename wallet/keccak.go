package wallet

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy (pre-NIST) Keccak-256 digest of data.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Keccak256Hex returns the hex-encoded Keccak-256 digest of data.
func Keccak256Hex(data []byte) string {
	return hex.EncodeToString(Keccak256(data))
}
