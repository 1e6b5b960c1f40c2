package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.Equal(t, "24h0m0s", cfg.Provision.RecordTTL.String())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NETPROV_HTTP_PORT", "9090")
	t.Setenv("WORKER_POOL_SIZE", "2")
	t.Setenv("PROVISION_READY_TIMEOUT", "10s")
	t.Setenv("PROVISION_READY_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2, cfg.Workers.PoolSize)
	assert.Equal(t, "10s", cfg.Provision.ReadyTimeout.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.HTTPPort = 0 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "missing redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis address is required",
		},
		{
			name:    "missing aws region",
			mutate:  func(c *Config) { c.AWS.Region = "" },
			wantErr: "AWS region is required",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers.PoolSize = 0 },
			wantErr: "worker pool size",
		},
		{
			name:    "non-positive record ttl",
			mutate:  func(c *Config) { c.Provision.RecordTTL = 0 },
			wantErr: "record TTL",
		},
		{
			name:    "poll interval exceeds timeout",
			mutate:  func(c *Config) { c.Provision.ReadyInterval = 2 * c.Provision.ReadyTimeout },
			wantErr: "readiness poll interval",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
