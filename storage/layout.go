package storage

import (
	"fmt"

	"github.com/Mavahu/opacity-go/blockcipher"
)

const (
	// DefaultPartSize is the plaintext size of one upload part (10MB).
	DefaultPartSize = 10 * 1024 * 1024

	// DefaultDownloadPartSize is the size of one ranged download request:
	// 80 stored blocks of the default block size.
	DefaultDownloadPartSize = 80 * (blockcipher.DefaultBlockSize + blockcipher.Overhead)
)

// Layout describes how a file of Size plaintext bytes maps onto stored blocks
// and upload parts.
//
//	uploadSize    = size + ceil(size/blockSize) * 32
//	chunkSize     = blockSize + 32
//	blocksPerPart = ceil(partSize / chunkSize)
//	endIndex      = ceil(ceil(uploadSize/chunkSize) / blocksPerPart)
type Layout struct {
	Size          int64
	BlockSize     int
	PartSize      int64
	ChunkSize     int64
	UploadSize    int64
	BlockCount    int64
	BlocksPerPart int64
	EndIndex      int
}

// NewLayout computes the block and part layout of a file.
func NewLayout(size int64, blockSize int, partSize int64) (*Layout, error) {
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if blockSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if partSize < int64(blockSize) {
		return nil, fmt.Errorf("%w: part %d < block %d", ErrInvalidPartSize, partSize, blockSize)
	}

	chunkSize := int64(blockSize) + blockcipher.Overhead
	uploadSize := UploadSize(size, blockSize)
	blockCount := ceilDiv(uploadSize, chunkSize)
	blocksPerPart := ceilDiv(partSize, chunkSize)

	return &Layout{
		Size:          size,
		BlockSize:     blockSize,
		PartSize:      partSize,
		ChunkSize:     chunkSize,
		UploadSize:    uploadSize,
		BlockCount:    blockCount,
		BlocksPerPart: blocksPerPart,
		EndIndex:      EndIndex(uploadSize, blockSize, partSize),
	}, nil
}

// UploadSize returns the stored size of size plaintext bytes.
func UploadSize(size int64, blockSize int) int64 {
	return blockcipher.EncryptedSize(size, blockSize)
}

// EndIndex returns the number of upload parts for a stored size.
func EndIndex(uploadSize int64, blockSize int, partSize int64) int {
	chunkSize := int64(blockSize) + blockcipher.Overhead
	return int(ceilDiv(ceilDiv(uploadSize, chunkSize), ceilDiv(partSize, chunkSize)))
}

// PlainRange returns the plaintext byte range [off, off+n) read for part.
func (l *Layout) PlainRange(part int) (off, n int64, err error) {
	if part < 0 || part >= l.EndIndex {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrPartOutOfRange, part, l.EndIndex)
	}
	span := l.BlocksPerPart * int64(l.BlockSize)
	off = int64(part) * span
	return off, min(span, l.Size-off), nil
}

// CipherRange returns the stored byte range [off, off+n) produced by part.
func (l *Layout) CipherRange(part int) (off, n int64, err error) {
	if part < 0 || part >= l.EndIndex {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrPartOutOfRange, part, l.EndIndex)
	}
	span := l.BlocksPerPart * l.ChunkSize
	off = int64(part) * span
	return off, min(span, l.UploadSize-off), nil
}

// RangeCount returns the number of ranged requests of partSize bytes needed
// to fetch total bytes.
func RangeCount(total, partSize int64) int {
	if total <= 0 || partSize <= 0 {
		return 0
	}
	return int(ceilDiv(total, partSize))
}

// Range returns the half-open byte range [from, to) of request i.
func Range(i int, total, partSize int64) (from, to int64) {
	from = int64(i) * partSize
	return from, min(from+partSize, total)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
