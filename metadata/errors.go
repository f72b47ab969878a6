package metadata

import "errors"

var (
	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("metadata: required parameter is nil")

	// ErrInvalidName indicates a file or folder name is empty or contains invalid characters.
	ErrInvalidName = errors.New("metadata: invalid name")

	// ErrInvalidPath indicates a folder path is empty or malformed.
	ErrInvalidPath = errors.New("metadata: invalid path")

	// ErrInvalidHandle indicates a file or folder handle has the wrong length or alphabet.
	ErrInvalidHandle = errors.New("metadata: invalid handle")

	// ErrInvalidItem indicates an item reference is neither a file nor a folder.
	ErrInvalidItem = errors.New("metadata: invalid item reference")

	// ErrChildExists indicates an entry with the given name already exists.
	ErrChildExists = errors.New("metadata: entry already exists")

	// ErrChildNotFound indicates the requested entry does not exist.
	ErrChildNotFound = errors.New("metadata: entry not found")

	// ErrMalformed indicates a document that does not match the positional wire form.
	ErrMalformed = errors.New("metadata: malformed document")
)
