package wallet

import (
	"encoding/hex"
	"fmt"
	"strconv"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// FolderPrefix is prepended to a folder path before it is hashed into a
	// derivation path.
	FolderPrefix = "folder: "

	// PathSegmentHex is the number of hex characters per derivation index.
	PathSegmentHex = 4

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet holds the master key of one logged-in account.
type Wallet struct {
	handle    *Handle
	masterKey *bip32.ExtendedKey
	privKey   *ec.PrivateKey
	pubKey    *ec.PublicKey
}

// FolderKey is the extended key that guards one folder's metadata document.
type FolderKey struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"` // Human-readable derivation path
	Folder     string         `json:"folder"`
}

// NewWallet parses the account handle and builds the master extended key.
// It performs no I/O.
func NewWallet(handle string) (*Wallet, error) {
	h, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	masterKey := bip32.NewExtendedKey(
		chaincfg.MainNet.HDPrivateKeyID[:],
		h.PrivateKey,
		h.ChainCode,
		[]byte{0x00, 0x00, 0x00, 0x00},
		0, 0, true,
	)
	privKey, err := masterKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %w", ErrDerivationFailed, err)
	}

	return &Wallet{
		handle:    h,
		masterKey: masterKey,
		privKey:   privKey,
		pubKey:    privKey.PubKey(),
	}, nil
}

// Handle returns the parsed account handle.
func (w *Wallet) Handle() *Handle {
	return w.handle
}

// PublicKeyHex returns the hex-encoded compressed master public key.
func (w *Wallet) PublicKeyHex() string {
	return hex.EncodeToString(w.pubKey.Compressed())
}

// DeriveFolderKey derives the key for folderPath.
//
//	hash: Keccak256("folder: " + folderPath)
//	Path: m/h[0:4]'/h[4:8]'/.../h[60:64]'
//
// The same path always yields the same key; no I/O is performed.
func (w *Wallet) DeriveFolderKey(folderPath string) (*FolderKey, error) {
	hash := hex.EncodeToString(Keccak256([]byte(FolderPrefix + folderPath)))
	indices, err := HashToPath(hash)
	if err != nil {
		return nil, err
	}

	key := w.masterKey
	for i, idx := range indices {
		key, err = key.Child(idx + Hardened)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: %w", ErrDerivationFailed, i, err)
		}
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	return &FolderKey{
		PrivateKey: privKey,
		PublicKey:  privKey.PubKey(),
		Path:       FormatPath(indices),
		Folder:     folderPath,
	}, nil
}

// HashToPath splits a 64-character hex hash into sixteen 2-byte indices.
func HashToPath(hash string) ([]uint32, error) {
	if len(hash) != 64 {
		return nil, fmt.Errorf("%w: got %d characters", ErrInvalidHash, len(hash))
	}
	indices := make([]uint32, 0, len(hash)/PathSegmentHex)
	for i := 0; i < len(hash); i += PathSegmentHex {
		v, err := strconv.ParseUint(hash[i:i+PathSegmentHex], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
		}
		indices = append(indices, uint32(v))
	}
	return indices, nil
}

// FormatPath renders hardened indices as a BIP32 path string.
func FormatPath(indices []uint32) string {
	path := "m"
	for _, idx := range indices {
		path += "/" + strconv.FormatUint(uint64(idx), 10) + "'"
	}
	return path
}

// HashedKey returns the folder's server-side lookup key:
// hex(Keccak256(hex(compressed public key))).
func (k *FolderKey) HashedKey() string {
	return Keccak256Hex([]byte(hex.EncodeToString(k.PublicKey.Compressed())))
}

// KeyString returns hex(Keccak256(hex(private key))). Decoded, it is the
// AES-256 key of the folder's metadata document.
func (k *FolderKey) KeyString() string {
	return Keccak256Hex([]byte(hex.EncodeToString(k.PrivateKey.Serialize())))
}

// EncryptionKey returns the 32-byte metadata key.
func (k *FolderKey) EncryptionKey() []byte {
	return Keccak256([]byte(hex.EncodeToString(k.PrivateKey.Serialize())))
}
