package secretstore

import "errors"

var (
	// ErrNotFound indicates no secret is stored for the service and account.
	ErrNotFound = errors.New("secretstore: secret not found")

	// ErrBackend indicates the OS keyring could not be opened or used.
	ErrBackend = errors.New("secretstore: keyring backend failure")
)
