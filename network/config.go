package network

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBrokerURL is the production broker API root.
const DefaultBrokerURL = "https://broker-1.opacitynodes.com:3000/api/v1/"

// ClientConfig holds the connection parameters for the broker API.
type ClientConfig struct {
	BaseURL   string        `json:"base_url"`
	RetryMax  int           `json:"retry_max"`
	RetryWait time.Duration `json:"retry_wait"`
	Timeout   time.Duration `json:"timeout"`
	UserAgent string        `json:"user_agent"`
}

// DefaultClientConfig returns production settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   DefaultBrokerURL,
		RetryMax:  3,
		RetryWait: time.Second,
		Timeout:   5 * time.Minute,
		UserAgent: "opacity-go",
	}
}

// ResolveConfig merges client configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (OPACITY_BROKER_URL, OPACITY_HTTP_RETRIES)
//  3. Defaults (lowest priority)
//
// A zero field in flags means unset.
func ResolveConfig(flags *ClientConfig, env map[string]string) (*ClientConfig, error) {
	result := DefaultClientConfig()
	if err := applyEnv(&result, env); err != nil {
		return nil, err
	}

	if flags != nil {
		if flags.BaseURL != "" {
			result.BaseURL = flags.BaseURL
		}
		if flags.RetryMax > 0 {
			result.RetryMax = flags.RetryMax
		}
		if flags.RetryWait > 0 {
			result.RetryWait = flags.RetryWait
		}
		if flags.Timeout > 0 {
			result.Timeout = flags.Timeout
		}
	}

	base, err := normalizeBaseURL(result.BaseURL)
	if err != nil {
		return nil, err
	}
	result.BaseURL = base
	return &result, nil
}

// ApplyEnv returns base with the environment overrides applied. Unlike
// ResolveConfig it keeps every field of base as given, so an explicit zero
// RetryMax survives unless OPACITY_HTTP_RETRIES is set to a value.
func ApplyEnv(base ClientConfig, env map[string]string) (*ClientConfig, error) {
	if err := applyEnv(&base, env); err != nil {
		return nil, err
	}
	u, err := normalizeBaseURL(base.BaseURL)
	if err != nil {
		return nil, err
	}
	base.BaseURL = u
	return &base, nil
}

// applyEnv overrides c from OPACITY_BROKER_URL and OPACITY_HTTP_RETRIES.
// Empty values are ignored.
func applyEnv(c *ClientConfig, env map[string]string) error {
	if v := env["OPACITY_BROKER_URL"]; v != "" {
		c.BaseURL = v
	}
	if v := env["OPACITY_HTTP_RETRIES"]; v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 {
			return fmt.Errorf("network: invalid OPACITY_HTTP_RETRIES %q", v)
		}
		c.RetryMax = n
	}
	return nil
}

// normalizeBaseURL validates an absolute http(s) URL and ensures a trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("network: invalid broker URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("network: broker URL %q must be absolute http(s)", raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}
