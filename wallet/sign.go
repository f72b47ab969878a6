package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// SignatureLen is the length of an r||s signature in bytes.
const SignatureLen = 64

// Envelope is the authenticated wrapper sent with every broker request.
type Envelope struct {
	RequestBody string `json:"requestBody"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	Hash        string `json:"hash"`
}

// Signer produces request envelopes.
type Signer interface {
	Sign(payload []byte) (*Envelope, error)
}

// Sign hashes payload with Keccak-256 and signs the digest with the account
// private key. The signature is hex(r||s) without a recovery byte.
func (w *Wallet) Sign(payload []byte) (*Envelope, error) {
	hash := Keccak256(payload)
	sig, err := w.privKey.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	raw := make([]byte, SignatureLen)
	sig.R.FillBytes(raw[:SignatureLen/2])
	sig.S.FillBytes(raw[SignatureLen/2:])

	return &Envelope{
		RequestBody: string(payload),
		Signature:   hex.EncodeToString(raw),
		PublicKey:   w.PublicKeyHex(),
		Hash:        hex.EncodeToString(hash),
	}, nil
}

// VerifyEnvelope checks that env.Hash is the Keccak-256 digest of
// env.RequestBody and that env.Signature verifies under env.PublicKey.
func VerifyEnvelope(env *Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: envelope", ErrNilParam)
	}

	hash := Keccak256([]byte(env.RequestBody))
	claimed, err := hex.DecodeString(env.Hash)
	if err != nil || !bytes.Equal(claimed, hash) {
		return fmt.Errorf("%w: hash mismatch", ErrInvalidSignature)
	}

	pubBytes, err := hex.DecodeString(env.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}
	pub, err := ec.PublicKeyFromBytes(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}

	raw, err := hex.DecodeString(env.Signature)
	if err != nil || len(raw) != SignatureLen {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	sig := &ec.Signature{
		R: new(big.Int).SetBytes(raw[:SignatureLen/2]),
		S: new(big.Int).SetBytes(raw[SignatureLen/2:]),
	}
	if !sig.Verify(hash, pub) {
		return ErrInvalidSignature
	}
	return nil
}
