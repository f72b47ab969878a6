package blockcipher

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := randomBytes(t, KeyLen)

	for _, size := range []int{0, 1, 31, 32, 1000, DefaultBlockSize} {
		plaintext := randomBytes(t, size)
		blob, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		assert.Len(t, blob, size+Overhead)

		got, err := Decrypt(blob, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got, "size %d", size)
	}
}

func TestEncrypt_FreshIV(t *testing.T) {
	key := randomBytes(t, KeyLen)
	plaintext := []byte("same plaintext")

	a, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	b, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, a[len(a)-IVLen:], b[len(b)-IVLen:], "iv must differ per call")
	assert.NotEqual(t, a, b)
}

func TestDecrypt_WrongKey(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), randomBytes(t, KeyLen))
	require.NoError(t, err)

	_, err = Decrypt(blob, randomBytes(t, KeyLen))
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecrypt_Tampered(t *testing.T) {
	key := randomBytes(t, KeyLen)
	blob, err := Encrypt([]byte("secret payload"), key)
	require.NoError(t, err)

	for _, pos := range []int{0, len(blob) - IVLen - 1, len(blob) - 1} {
		bad := bytes.Clone(blob)
		bad[pos] ^= 0x01
		_, err := Decrypt(bad, key)
		assert.ErrorIs(t, err, ErrAuthentication, "flip at %d", pos)
	}
}

func TestDecrypt_Invalid(t *testing.T) {
	_, err := Decrypt(make([]byte, Overhead-1), randomBytes(t, KeyLen))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = Decrypt(make([]byte, 64), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Encrypt([]byte("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEncryptBlocks_Layout(t *testing.T) {
	key := randomBytes(t, KeyLen)
	plaintext := randomBytes(t, 2*100+7)

	enc, err := EncryptBlocks(plaintext, 100, key)
	require.NoError(t, err)
	assert.Len(t, enc, len(plaintext)+3*Overhead)
	assert.Equal(t, EncryptedSize(int64(len(plaintext)), 100), int64(len(enc)))

	first, err := DecryptChunk(enc[:100+Overhead], key)
	require.NoError(t, err)
	assert.Equal(t, plaintext[:100], first)

	_, err = EncryptBlocks(plaintext, 0, key)
	assert.ErrorIs(t, err, ErrInvalidBlockSize)
}

func TestEncryptedSize(t *testing.T) {
	tests := []struct {
		size int64
		want int64
	}{
		{0, 0},
		{1, 33},
		{DefaultBlockSize, DefaultBlockSize + Overhead},
		{DefaultBlockSize + 1, DefaultBlockSize + 1 + 2*Overhead},
		{200000, 200128},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncryptedSize(tt.size, DefaultBlockSize), "size %d", tt.size)
	}
}

func TestDecryptStream(t *testing.T) {
	key := randomBytes(t, KeyLen)

	for _, size := range []int{0, 1, 64, 65, 1000} {
		plaintext := randomBytes(t, size)
		enc, err := EncryptBlocks(plaintext, 64, key)
		require.NoError(t, err)

		var out bytes.Buffer
		n, err := DecryptStream(&out, bytes.NewReader(enc), 64, key)
		require.NoError(t, err)
		assert.Equal(t, int64(size), n)
		assert.True(t, bytes.Equal(plaintext, out.Bytes()), "size %d", size)
	}
}

func TestDecryptStream_CorruptBlock(t *testing.T) {
	key := randomBytes(t, KeyLen)
	enc, err := EncryptBlocks(randomBytes(t, 300), 64, key)
	require.NoError(t, err)
	enc[2*(64+Overhead)+5] ^= 0xff

	var out bytes.Buffer
	n, err := DecryptStream(&out, bytes.NewReader(enc), 64, key)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int64(128), n, "blocks before the corrupt one are written")
}
