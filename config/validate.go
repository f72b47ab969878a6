// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validKeyringBackends lists the accepted secret store backends. Empty
// selects the platform default.
var validKeyringBackends = map[string]bool{
	"":               true,
	"file":           true,
	"keychain":       true,
	"secret-service": true,
	"kwallet":        true,
	"wincred":        true,
	"pass":           true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validBrokerURL(cfg.BrokerURL) {
		return ErrInvalidBrokerURL
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if !validKeyringBackends[cfg.KeyringBackend] {
		return ErrInvalidKeyringBackend
	}

	if cfg.HTTPRetries < 0 || cfg.TimeoutSeconds < 0 {
		return ErrInvalidRetries
	}

	if cfg.MaxUploads < 1 || cfg.MaxDownloads < 1 ||
		cfg.MaxUploadParts < 1 || cfg.MaxDownloadParts < 1 {
		return ErrInvalidLimit
	}

	// A part must hold at least one block.
	if cfg.BlockSize < 1 || cfg.PartSize < int64(cfg.BlockSize) ||
		cfg.DownloadPartSize < 1 {
		return ErrInvalidSize
	}

	return nil
}

// validBrokerURL reports whether raw is an absolute http(s) URL.
func validBrokerURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
