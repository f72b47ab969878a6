package transfer

import "errors"

var (
	// ErrTransfer indicates a network or server failure during upload or download.
	ErrTransfer = errors.New("transfer: transfer failed")

	// ErrVerificationExhausted indicates parts were still missing after every
	// verify-and-retry round.
	ErrVerificationExhausted = errors.New("transfer: upload verification exhausted")

	// ErrInvalidLimit indicates a concurrency limit outside [1, MaxLimit].
	ErrInvalidLimit = errors.New("transfer: concurrency limit out of range")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("transfer: required parameter is nil")

	// ErrLocalIO indicates the local source or destination could not be read or written.
	ErrLocalIO = errors.New("transfer: local I/O failure")

	// ErrSizeMismatch indicates a reconstructed file does not match its recorded size.
	ErrSizeMismatch = errors.New("transfer: reconstructed size mismatch")
)
