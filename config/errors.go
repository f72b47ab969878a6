// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidBrokerURL indicates the broker URL is not an absolute http(s) URL.
	ErrInvalidBrokerURL = errors.New("config: invalid broker URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidLimit indicates a concurrency limit below one.
	ErrInvalidLimit = errors.New("config: concurrency limits must be at least 1")

	// ErrInvalidSize indicates a block or part size that cannot be laid out.
	ErrInvalidSize = errors.New("config: invalid block or part size")

	// ErrInvalidRetries indicates a negative retry count or timeout.
	ErrInvalidRetries = errors.New("config: retries and timeout must not be negative")

	// ErrInvalidKeyringBackend indicates an unsupported secret store backend.
	ErrInvalidKeyringBackend = errors.New("config: invalid keyring backend")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrMalformedConfig indicates the configuration file is not valid TOML.
	ErrMalformedConfig = errors.New("config: malformed configuration file")
)
