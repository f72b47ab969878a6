package storage

import "errors"

var (
	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the scratch root path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrInvalidChunkSize indicates the block size is not a positive integer.
	ErrInvalidChunkSize = errors.New("storage: chunk size must be positive")

	// ErrInvalidPartSize indicates the part size cannot hold a single block.
	ErrInvalidPartSize = errors.New("storage: part size must hold at least one block")

	// ErrInvalidSize indicates a negative file size.
	ErrInvalidSize = errors.New("storage: size must not be negative")

	// ErrPartOutOfRange indicates a part index outside [0, EndIndex).
	ErrPartOutOfRange = errors.New("storage: part index out of range")
)
