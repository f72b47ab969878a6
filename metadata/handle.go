package metadata

import (
	"encoding/hex"
	"fmt"
)

const (
	// FileHandleLen is the hex length of a file capability: fileId || fileKey.
	FileHandleLen = 128

	// FileIDLen is the hex length of the fileId half.
	FileIDLen = 64

	// FolderHandleLen is the hex length of a hashed folder key.
	FolderHandleLen = 64
)

// ValidateFileHandle checks a 128-character hex file capability.
func ValidateFileHandle(handle string) error {
	return validateHex(handle, FileHandleLen, "file")
}

// ValidateFolderHandle checks a 64-character hex hashed folder key.
func ValidateFolderHandle(handle string) error {
	return validateHex(handle, FolderHandleLen, "folder")
}

// SplitFileHandle returns the server-side file id and the 32-byte file key.
func SplitFileHandle(handle string) (fileID string, key []byte, err error) {
	if err := ValidateFileHandle(handle); err != nil {
		return "", nil, err
	}
	key, _ = hex.DecodeString(handle[FileIDLen:])
	return handle[:FileIDLen], key, nil
}

func validateHex(s string, n int, what string) error {
	if len(s) != n {
		return fmt.Errorf("%w: %s handle must be %d hex characters, got %d", ErrInvalidHandle, what, n, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("%w: %s handle: %w", ErrInvalidHandle, what, err)
	}
	return nil
}
