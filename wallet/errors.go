package wallet

import "errors"

var (
	// ErrInvalidHandle indicates the account handle is not 128 hex characters
	// or does not carry a usable secp256k1 private key.
	ErrInvalidHandle = errors.New("wallet: invalid account handle")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrInvalidHash indicates a folder path hash is not 64 hex characters.
	ErrInvalidHash = errors.New("wallet: invalid path hash")

	// ErrSigningFailed indicates the request payload could not be signed.
	ErrSigningFailed = errors.New("wallet: signing failed")

	// ErrInvalidSignature indicates an envelope signature or hash does not verify.
	ErrInvalidSignature = errors.New("wallet: invalid signature")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("wallet: required parameter is nil")
)
