package journal

import "errors"

var (
	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("journal: required parameter is nil")

	// ErrInvalidEntry indicates an entry without source or destination path.
	ErrInvalidEntry = errors.New("journal: invalid entry")

	// ErrEntryNotFound indicates no pending entry has the given id.
	ErrEntryNotFound = errors.New("journal: entry not found")
)
