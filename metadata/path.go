package metadata

import (
	"fmt"
	"path"
	"strings"
)

// RootPath is the path of the account's root folder.
const RootPath = "/"

// CleanPath normalizes a folder path to an absolute POSIX path. Backslash
// separators are converted, duplicate separators and trailing slashes dropped.
func CleanPath(p string) (string, error) {
	if strings.ContainsAny(p, "\x00") {
		return "", fmt.Errorf("%w: contains null byte", ErrInvalidPath)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	return path.Clean("/" + p), nil
}

// Join joins a folder path and a child name.
func Join(folder, name string) string {
	return path.Join(folder, name)
}

// Parent returns the parent folder of p. The root is its own parent.
func Parent(p string) string {
	return path.Dir(p)
}

// Base returns the last element of p, or "/" for the root.
func Base(p string) string {
	return path.Base(p)
}

// IsWithin reports whether p is ancestor or one of its descendants. Paths are
// compared component-wise, so "/ab" is not within "/a".
func IsWithin(p, ancestor string) bool {
	if p == ancestor || ancestor == RootPath {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}
