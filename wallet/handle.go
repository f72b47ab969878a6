package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	// HandleLen is the length of an account handle in hex characters.
	HandleLen = 128

	// KeyLen is the length of the private key and the chain code in bytes.
	KeyLen = 32
)

// Handle is a parsed account handle: privateKey(32B) || chainCode(32B).
type Handle struct {
	PrivateKey []byte
	ChainCode  []byte
}

// ParseHandle validates and decodes a 128-character hex account handle.
// The private key half must be a valid secp256k1 scalar.
func ParseHandle(s string) (*Handle, error) {
	if len(s) != HandleLen {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidHandle, HandleLen, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}

	priv := raw[:KeyLen]
	d := new(big.Int).SetBytes(priv)
	if d.Sign() == 0 || d.Cmp(ec.S256().Params().N) >= 0 {
		return nil, fmt.Errorf("%w: private key out of range", ErrInvalidHandle)
	}

	return &Handle{
		PrivateKey: priv,
		ChainCode:  raw[KeyLen:],
	}, nil
}

// String returns the handle in its 128-character hex form.
func (h *Handle) String() string {
	return hex.EncodeToString(h.PrivateKey) + hex.EncodeToString(h.ChainCode)
}

// GenerateHandle returns a fresh random account handle.
func GenerateHandle() (string, error) {
	for {
		raw := make([]byte, 2*KeyLen)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("wallet: generate handle: %w", err)
		}
		s := hex.EncodeToString(raw)
		if _, err := ParseHandle(s); err == nil {
			return s, nil
		}
	}
}
