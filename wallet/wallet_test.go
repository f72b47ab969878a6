package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHandle = "0101010101010101010101010101010101010101010101010101010101010101" +
	"0202020202020202020202020202020202020202020202020202020202020202"

func testWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := NewWallet(testHandle)
	require.NoError(t, err)
	return w
}

// --- Handle tests ---

func TestParseHandle(t *testing.T) {
	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{"valid", testHandle, false},
		{"empty", "", true},
		{"too short", testHandle[:127], true},
		{"too long", testHandle + "0", true},
		{"non hex", "zz" + testHandle[2:], true},
		{"zero key", strings.Repeat("0", 64) + testHandle[64:], true},
		{"key above curve order", strings.Repeat("f", 64) + testHandle[64:], true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHandle(tt.handle)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidHandle)
				return
			}
			require.NoError(t, err)
			assert.Len(t, h.PrivateKey, KeyLen)
			assert.Len(t, h.ChainCode, KeyLen)
			assert.Equal(t, tt.handle, h.String())
		})
	}
}

func TestNewWallet_InvalidHandle(t *testing.T) {
	_, err := NewWallet("not-a-handle")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestGenerateHandle(t *testing.T) {
	h1, err := GenerateHandle()
	require.NoError(t, err)
	h2, err := GenerateHandle()
	require.NoError(t, err)

	assert.Len(t, h1, HandleLen)
	assert.NotEqual(t, h1, h2)
	_, err = NewWallet(h1)
	assert.NoError(t, err)
}

// --- Keccak tests ---

func TestKeccak256_KnownVector(t *testing.T) {
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256Hex(nil))
}

// --- Folder key derivation tests ---

func TestHashToPath(t *testing.T) {
	indices, err := HashToPath("0001ffff" + strings.Repeat("0", 56))
	require.NoError(t, err)
	require.Len(t, indices, 16)
	assert.Equal(t, uint32(1), indices[0])
	assert.Equal(t, uint32(0xffff), indices[1])
	assert.Equal(t, uint32(0), indices[15])

	_, err = HashToPath("abcd")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = HashToPath(strings.Repeat("g", 64))
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestDeriveFolderKey_Deterministic(t *testing.T) {
	w1 := testWallet(t)
	w2 := testWallet(t)

	for _, p := range []string{"/", "/docs", "/docs/reports/2024"} {
		k1, err := w1.DeriveFolderKey(p)
		require.NoError(t, err)
		k2, err := w2.DeriveFolderKey(p)
		require.NoError(t, err)

		assert.Equal(t, k1.HashedKey(), k2.HashedKey(), "path %s", p)
		assert.Equal(t, k1.KeyString(), k2.KeyString(), "path %s", p)
		assert.Equal(t, k1.Path, k2.Path)
		assert.True(t, strings.HasPrefix(k1.Path, "m/"))
	}
}

func TestDeriveFolderKey_DistinctPaths(t *testing.T) {
	w := testWallet(t)
	a, err := w.DeriveFolderKey("/a")
	require.NoError(t, err)
	b, err := w.DeriveFolderKey("/b")
	require.NoError(t, err)

	assert.NotEqual(t, a.HashedKey(), b.HashedKey())
	assert.NotEqual(t, a.KeyString(), b.KeyString())
}

func TestDeriveFolderKey_DistinctAccounts(t *testing.T) {
	other, err := GenerateHandle()
	require.NoError(t, err)
	w2, err := NewWallet(other)
	require.NoError(t, err)

	k1, err := testWallet(t).DeriveFolderKey("/")
	require.NoError(t, err)
	k2, err := w2.DeriveFolderKey("/")
	require.NoError(t, err)
	assert.NotEqual(t, k1.HashedKey(), k2.HashedKey())
}

func TestFolderKey_Encodings(t *testing.T) {
	k, err := testWallet(t).DeriveFolderKey("/photos")
	require.NoError(t, err)

	assert.Len(t, k.HashedKey(), 64)
	assert.Len(t, k.KeyString(), 64)
	assert.NotEqual(t, k.HashedKey(), k.KeyString())
	assert.Equal(t, k.KeyString(), hex.EncodeToString(k.EncryptionKey()))
	assert.Equal(t, Keccak256Hex([]byte(hex.EncodeToString(k.PublicKey.Compressed()))), k.HashedKey())
}

// --- Signing tests ---

func TestSign_Envelope(t *testing.T) {
	w := testWallet(t)
	payload := []byte(`{"timestamp":1700000000000,"metadataKey":"abc"}`)

	env, err := w.Sign(payload)
	require.NoError(t, err)

	assert.Equal(t, string(payload), env.RequestBody)
	assert.Len(t, env.Signature, 2*SignatureLen)
	assert.Equal(t, w.PublicKeyHex(), env.PublicKey)
	assert.Len(t, env.PublicKey, 66)
	assert.Equal(t, Keccak256Hex(payload), env.Hash)
	assert.False(t, strings.HasPrefix(env.Hash, "0x"))
	assert.NoError(t, VerifyEnvelope(env))
}

func TestSign_Deterministic(t *testing.T) {
	w := testWallet(t)
	e1, err := w.Sign([]byte("payload"))
	require.NoError(t, err)
	e2, err := w.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, e1.Signature, e2.Signature)
}

func TestVerifyEnvelope_Tampered(t *testing.T) {
	w := testWallet(t)
	env, err := w.Sign([]byte(`{"fileId":"aa"}`))
	require.NoError(t, err)

	t.Run("body", func(t *testing.T) {
		bad := *env
		bad.RequestBody = `{"fileId":"bb"}`
		assert.ErrorIs(t, VerifyEnvelope(&bad), ErrInvalidSignature)
	})

	t.Run("signature", func(t *testing.T) {
		bad := *env
		bad.Signature = strings.Repeat("1", 2*SignatureLen)
		assert.ErrorIs(t, VerifyEnvelope(&bad), ErrInvalidSignature)
	})

	t.Run("public key", func(t *testing.T) {
		other, err := GenerateHandle()
		require.NoError(t, err)
		w2, err := NewWallet(other)
		require.NoError(t, err)

		bad := *env
		bad.PublicKey = w2.PublicKeyHex()
		assert.ErrorIs(t, VerifyEnvelope(&bad), ErrInvalidSignature)
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, VerifyEnvelope(nil), ErrNilParam)
	})
}
