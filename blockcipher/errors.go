package blockcipher

import "errors"

var (
	// ErrInvalidKey indicates the key is not 32 bytes.
	ErrInvalidKey = errors.New("blockcipher: key must be 32 bytes")

	// ErrInvalidCiphertext indicates the blob is too short to hold tag and IV.
	// Minimum length: 16 (GCM tag) + 16 (IV) = 32 bytes.
	ErrInvalidCiphertext = errors.New("blockcipher: invalid ciphertext")

	// ErrAuthentication indicates AES-GCM tag verification failed. It is never
	// retried: the key is wrong or the data was altered.
	ErrAuthentication = errors.New("blockcipher: authentication failed")

	// ErrInvalidBlockSize indicates a non-positive block size.
	ErrInvalidBlockSize = errors.New("blockcipher: block size must be positive")
)
