package blockcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// KeyLen is the AES-256 key length in bytes.
	KeyLen = 32

	// IVLen is the length of the GCM nonce in bytes.
	IVLen = 16

	// TagLen is the length of the GCM authentication tag in bytes.
	TagLen = 16

	// Overhead is the number of bytes added to every encrypted block.
	Overhead = TagLen + IVLen

	// DefaultBlockSize is the plaintext size of one file block.
	DefaultBlockSize = 64 * 1024
)

// Encrypt encrypts plaintext with AES-256-GCM under a fresh random 16-byte IV.
//
// Output format: ciphertext || tag(16B) || iv(16B).
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("blockcipher: random iv generation failed: %w", err)
	}

	out := make([]byte, 0, len(plaintext)+Overhead)
	out = gcm.Seal(out, iv, plaintext, nil)
	return append(out, iv...), nil
}

// Decrypt reverses Encrypt. A blob that fails tag verification returns
// ErrAuthentication.
func Decrypt(blob, key []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCiphertext, len(blob))
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	split := len(blob) - IVLen
	iv := blob[split:]
	plaintext, err := gcm.Open(nil, iv, blob[:split], nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	// Normalize nil to empty slice for consistency.
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// DecryptChunk decrypts one stored file block.
func DecryptChunk(chunk, key []byte) ([]byte, error) {
	return Decrypt(chunk, key)
}

// EncryptBlocks splits part into blockSize pieces and encrypts each one with
// its own IV. The result is the concatenation of the encrypted blocks.
func EncryptBlocks(part []byte, blockSize int, key []byte) ([]byte, error) {
	if blockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}

	blocks := (len(part) + blockSize - 1) / blockSize
	out := make([]byte, 0, len(part)+blocks*Overhead)
	for off := 0; off < len(part); off += blockSize {
		end := min(off+blockSize, len(part))
		enc, err := Encrypt(part[off:end], key)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// EncryptedSize returns the stored size of size plaintext bytes.
func EncryptedSize(size int64, blockSize int) int64 {
	if size <= 0 {
		return 0
	}
	bs := int64(blockSize)
	return size + (size+bs-1)/bs*Overhead
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("blockcipher: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVLen)
	if err != nil {
		return nil, fmt.Errorf("blockcipher: GCM creation failed: %w", err)
	}
	return gcm, nil
}
