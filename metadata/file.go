package metadata

import (
	"encoding/json"
	"fmt"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/storage"
)

// FileMetadata is the per-file document stored next to the file blob and
// encrypted with the file key.
type FileMetadata struct {
	Name string          `json:"name"`
	Type string          `json:"type"`
	Size int64           `json:"size"`
	P    FileMetaOptions `json:"p"`
}

// FileMetaOptions carries the block and part sizes a file was uploaded with.
type FileMetaOptions struct {
	BlockSize int   `json:"blockSize"`
	PartSize  int64 `json:"partSize"`
}

// DefaultFileOptions returns the standard block and part sizes.
func DefaultFileOptions() FileMetaOptions {
	return FileMetaOptions{
		BlockSize: blockcipher.DefaultBlockSize,
		PartSize:  storage.DefaultPartSize,
	}
}

// ParseFileMetadata decodes a decrypted file document. Missing or zero
// options fall back to the defaults.
func ParseFileMetadata(data []byte) (*FileMetadata, error) {
	var fm FileMetadata
	if err := json.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("%w: file metadata: %w", ErrMalformed, err)
	}
	defaults := DefaultFileOptions()
	if fm.P.BlockSize <= 0 {
		fm.P.BlockSize = defaults.BlockSize
	}
	if fm.P.PartSize <= 0 {
		fm.P.PartSize = defaults.PartSize
	}
	if fm.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrMalformed, fm.Size)
	}
	return &fm, nil
}
