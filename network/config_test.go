package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := ResolveConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBrokerURL, cfg.BaseURL)
	assert.Equal(t, 3, cfg.RetryMax)
}

func TestResolveConfig_Layering(t *testing.T) {
	env := map[string]string{
		"OPACITY_BROKER_URL":   "http://env.example/api",
		"OPACITY_HTTP_RETRIES": "5",
	}
	cfg, err := ResolveConfig(nil, env)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example/api/", cfg.BaseURL)
	assert.Equal(t, 5, cfg.RetryMax)

	cfg, err = ResolveConfig(&ClientConfig{BaseURL: "https://flag.example/v1/"}, env)
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example/v1/", cfg.BaseURL)
	assert.Equal(t, 5, cfg.RetryMax)
}

func TestResolveConfig_Invalid(t *testing.T) {
	_, err := ResolveConfig(&ClientConfig{BaseURL: "not a url"}, nil)
	assert.Error(t, err)

	_, err = ResolveConfig(nil, map[string]string{"OPACITY_HTTP_RETRIES": "-1"})
	assert.Error(t, err)
}

func TestApplyEnv_KeepsExplicitZero(t *testing.T) {
	base := ClientConfig{BaseURL: "http://file.example/api", RetryMax: 0}

	cfg, err := ApplyEnv(base, map[string]string{"OPACITY_HTTP_RETRIES": ""})
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.RetryMax)
	assert.Equal(t, "http://file.example/api/", cfg.BaseURL)

	cfg, err = ApplyEnv(base, map[string]string{"OPACITY_HTTP_RETRIES": "4"})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.RetryMax)

	_, err = ApplyEnv(base, map[string]string{"OPACITY_HTTP_RETRIES": "many"})
	assert.Error(t, err)
}
