// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the client settings file and builds the
// logger the rest of the client writes to.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/Mavahu/opacity-go/blockcipher"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/storage"
	"github.com/Mavahu/opacity-go/transfer"
)

const (
	// FileName is the settings file inside the data directory.
	FileName = "config.toml"

	dirName     = ".opacity"
	journalName = "journal.db"
	lockName    = "tree.lock"
	scratchName = "scratch"
	keyringName = "keyring"

	defaultMaxUploads   = 3
	defaultMaxDownloads = 3
	defaultRetries      = 3
	defaultTimeoutSecs  = 300
)

// Environment variables that override the settings file.
const (
	EnvBrokerURL = "OPACITY_BROKER_URL"
	EnvLogLevel  = "OPACITY_LOG_LEVEL"
	EnvDataDir   = "OPACITY_DATA_DIR"
)

// Config holds the client settings.
type Config struct {
	DataDir   string `toml:"data_dir"`
	BrokerURL string `toml:"broker_url"`
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`

	// KeyringBackend picks the secret store: empty for the OS default,
	// "file" for an encrypted file under the data directory.
	KeyringBackend string `toml:"keyring_backend"`

	HTTPRetries    int `toml:"http_retries"`
	TimeoutSeconds int `toml:"timeout_seconds"`

	MaxUploads       int `toml:"max_uploads"`
	MaxDownloads     int `toml:"max_downloads"`
	MaxUploadParts   int `toml:"max_upload_parts"`
	MaxDownloadParts int `toml:"max_download_parts"`

	BlockSize        int   `toml:"block_size"`
	PartSize         int64 `toml:"part_size"`
	DownloadPartSize int64 `toml:"download_part_size"`
}

// DefaultDataDir returns ~/.opacity, or .opacity in the working directory
// when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		BrokerURL:        network.DefaultBrokerURL,
		LogLevel:         "info",
		HTTPRetries:      defaultRetries,
		TimeoutSeconds:   defaultTimeoutSecs,
		MaxUploads:       defaultMaxUploads,
		MaxDownloads:     defaultMaxDownloads,
		MaxUploadParts:   transfer.DefaultMaxUploadParts,
		MaxDownloadParts: transfer.DefaultMaxDownloadParts,
		BlockSize:        blockcipher.DefaultBlockSize,
		PartSize:         storage.DefaultPartSize,
		DownloadPartSize: storage.DefaultDownloadPartSize,
	}
}

// ConfigPath returns the settings file path for dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// JournalPath returns the relocation journal database for the data directory.
func (c Config) JournalPath() string { return filepath.Join(c.DataDir, journalName) }

// LockPath returns the file used to serialize tree mutations across processes.
func (c Config) LockPath() string { return filepath.Join(c.DataDir, lockName) }

// ScratchDir returns the root for download part files.
func (c Config) ScratchDir() string { return filepath.Join(c.DataDir, scratchName) }

// KeyringDir returns the directory used by the file keyring backend.
func (c Config) KeyringDir() string { return filepath.Join(c.DataDir, keyringName) }

// ClientConfig maps the transport settings onto a network.ClientConfig.
func (c Config) ClientConfig() network.ClientConfig {
	cc := network.DefaultClientConfig()
	if c.BrokerURL != "" {
		cc.BaseURL = c.BrokerURL
	}
	cc.RetryMax = c.HTTPRetries
	if c.TimeoutSeconds > 0 {
		cc.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	return cc
}

// LoadConfig reads the settings file at path. Keys missing from the file
// keep their defaults and unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}
	return cfg, nil
}

// LoadOrDefault is LoadConfig that treats a missing file as the defaults.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, ErrConfigNotFound) {
		return cfg, nil
	}
	return cfg, err
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.WriteString(file, "# Opacity configuration\n\n"); err != nil {
		return err
	}
	return toml.NewEncoder(file).Encode(cfg)
}

// ApplyEnv overrides cfg with any non-empty values in env.
func ApplyEnv(cfg *Config, env map[string]string) {
	if cfg == nil || env == nil {
		return
	}
	if v := strings.TrimSpace(env[EnvBrokerURL]); v != "" {
		cfg.BrokerURL = v
	}
	if v := strings.TrimSpace(env[EnvLogLevel]); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(env[EnvDataDir]); v != "" {
		cfg.DataDir = v
	}
}

// Environ collects the override variables from the process environment.
func Environ() map[string]string {
	env := make(map[string]string, 3)
	for _, k := range []string{EnvBrokerURL, EnvLogLevel, EnvDataDir} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}

// NewLogger builds a logger at cfg.LogLevel. When LogFile is set the log is
// appended there and the returned closer releases the file.
func NewLogger(cfg Config) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.LogFile == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// String renders a setting by its TOML key, for display.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "data_dir = %s\n", c.DataDir)
	fmt.Fprintf(&b, "broker_url = %s\n", c.BrokerURL)
	fmt.Fprintf(&b, "log_level = %s\n", c.LogLevel)
	fmt.Fprintf(&b, "log_file = %s\n", c.LogFile)
	fmt.Fprintf(&b, "keyring_backend = %s\n", c.KeyringBackend)
	fmt.Fprintf(&b, "http_retries = %d\n", c.HTTPRetries)
	fmt.Fprintf(&b, "timeout_seconds = %d\n", c.TimeoutSeconds)
	fmt.Fprintf(&b, "max_uploads = %d\n", c.MaxUploads)
	fmt.Fprintf(&b, "max_downloads = %d\n", c.MaxDownloads)
	fmt.Fprintf(&b, "max_upload_parts = %d\n", c.MaxUploadParts)
	fmt.Fprintf(&b, "max_download_parts = %d\n", c.MaxDownloadParts)
	fmt.Fprintf(&b, "block_size = %d\n", c.BlockSize)
	fmt.Fprintf(&b, "part_size = %d\n", c.PartSize)
	fmt.Fprintf(&b, "download_part_size = %d\n", c.DownloadPartSize)
	return b.String()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
