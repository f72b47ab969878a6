//go:build windows

package vault

import (
	"fmt"
	"os"
)

// On Windows the tree is serialized by its mutex only; the lock file is
// opened so a bad path still surfaces as an error.

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
