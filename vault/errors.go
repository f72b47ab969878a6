package vault

import "errors"

var (
	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("vault: required parameter is nil")

	// ErrCyclicMove indicates a folder move into itself or one of its descendants.
	ErrCyclicMove = errors.New("vault: cannot move a folder into itself or a descendant")

	// ErrNameExists indicates the destination folder already has an entry of that name.
	ErrNameExists = errors.New("vault: name already exists in destination")

	// ErrItemNotFound indicates the referenced file or folder is not in the folder.
	ErrItemNotFound = errors.New("vault: item not found")

	// ErrNotLoggedIn indicates an operation that requires Login first.
	ErrNotLoggedIn = errors.New("vault: not logged in")

	// ErrUnsupportedSource indicates a local upload source that is neither a
	// regular file nor a directory.
	ErrUnsupportedSource = errors.New("vault: unsupported upload source")
)
