package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seb7887/uibus/api"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, api.DefaultTokenInfoURL, cfg.Server.TokenInfoURL)
	assert.Equal(t, time.Minute, cfg.Client.PollInterval)
	assert.Equal(t, 3, cfg.Client.RetryAttempts)
	assert.Equal(t, "uibus", cfg.Nats.SubjectPrefix)
	assert.Empty(t, cfg.Nats.URL)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "uibus.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
app:
  version: "1.2.0"
client:
  poll_interval: 30s
nats:
  url: nats://localhost:4222
  forward: [AppInfo.Version.Received]
`), 0o600))

	t.Setenv("UIBUS_CLIENT_POLL_INTERVAL", "5s")
	t.Setenv("UIBUS_NATS_INGEST", "GoogleAuth.SignedIn,GoogleAuth.SignedOut")

	cfg, err := loadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cfg.App.Version)
	assert.Equal(t, 5*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, "nats://localhost:4222", cfg.Nats.URL)
	assert.Equal(t, []string{"AppInfo.Version.Received"}, cfg.Nats.Forward)
	assert.Equal(t, []string{"GoogleAuth.SignedIn", "GoogleAuth.SignedOut"}, cfg.Nats.Ingest)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDevIdentities(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    api.StaticVerifier
		wantErr bool
	}{
		{
			name:    "pairs",
			entries: []string{"tok-1:ada@example.com", "tok-2:"},
			want: api.StaticVerifier{
				"tok-1": {Subject: "tok-1", Email: "ada@example.com"},
				"tok-2": {Subject: "tok-2"},
			},
		},
		{name: "missing separator", entries: []string{"tok-1"}, wantErr: true},
		{name: "empty token", entries: []string{":ada@example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := devIdentities(tt.entries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
