package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/ne")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/ne", cfg.Storage.DataDir)
	assert.Equal(t, time.Hour, cfg.Relay.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.Sync.InFlightTTL)
	assert.Equal(t, 2*time.Second, cfg.Sync.ResyncInterval)
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Sync.SeedDefaults)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"STORE_DRIVER=sqlite\nSYNC_OUTBOX_SIZE=12\nRELAY_ECHO=true\nCORS_ALLOWED_HEADERS=A, B\n",
	), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"STORE_DRIVER", "SYNC_OUTBOX_SIZE", "RELAY_ECHO", "CORS_ALLOWED_HEADERS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 12, cfg.Sync.OutboxSize)
	assert.True(t, cfg.Relay.Echo)
	assert.Equal(t, []string{"A", "B"}, cfg.CORS.AllowedHeaders)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SYNC_INFLIGHT_TTL", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "SYNC_INFLIGHT_TTL")
}

func TestLoad_ReconnectBounds(t *testing.T) {
	t.Setenv("SYNC_RECONNECT_MIN", "10s")
	t.Setenv("SYNC_RECONNECT_MAX", "1s")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
