package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratch_ReaderCrossesPartBoundaries(t *testing.T) {
	s, err := NewScratch(filepath.Join(t.TempDir(), "tmp"))
	require.NoError(t, err)

	parts := [][]byte{[]byte("abc"), []byte("defgh"), {}, []byte("ij")}
	for i, p := range parts {
		require.NoError(t, s.WritePart(i, p))
	}

	r := s.Reader(len(parts))
	defer r.Close()

	// Seven-byte reads straddle the first and second files.
	buf := make([]byte, 7)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", string(buf))

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hij", string(rest))
}

func TestScratch_ReaderMissingPart(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.WritePart(0, []byte("x")))

	_, err = io.ReadAll(s.Reader(2))
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestScratch_CleanupRemovesEmptyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	s, err := NewScratch(root)
	require.NoError(t, err)
	require.NoError(t, s.WritePart(0, bytes.Repeat([]byte{1}, 10)))

	require.NoError(t, s.Cleanup())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "empty root should be removed")
}

func TestScratch_CleanupKeepsSharedRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	a, err := NewScratch(root)
	require.NoError(t, err)
	b, err := NewScratch(root)
	require.NoError(t, err)
	assert.NotEqual(t, a.Dir(), b.Dir())
	require.NoError(t, b.WritePart(0, []byte("in flight")))

	require.NoError(t, a.Cleanup())
	_, err = os.Stat(a.Dir())
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(b.PartPath(0))
	require.NoError(t, err)
	assert.Equal(t, "in flight", string(data))

	require.NoError(t, b.Cleanup())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestNewScratch_EmptyRoot(t *testing.T) {
	_, err := NewScratch("")
	assert.ErrorIs(t, err, ErrInvalidBaseDir)
}

func TestNewScratch_RootRemovedConcurrently(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tmp")
	removed := 0
	rootCreated = func(r string) {
		if removed == 0 {
			removed++
			require.NoError(t, os.Remove(r))
		}
	}
	t.Cleanup(func() { rootCreated = nil })

	s, err := NewScratch(root)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	info, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
