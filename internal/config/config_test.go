package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "support-chat-api", cfg.ServiceName)
	assert.Equal(t, ":8190", cfg.Addr())
	assert.Equal(t, 5*time.Second, cfg.DBTxTimeout)
	assert.Equal(t, "support-chat.channel.", cfg.ChannelPrefix)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, cfg.ServiceName, cfg.ConsumerName)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.AuthEnabled)
}

func TestLoad_AuthDefaultsOnOutsideDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantAuth bool
		wantErr  string
	}{
		{name: "production requires auth settings", env: map[string]string{"ENVIRONMENT": "production"}, wantErr: "ISSUER"},
		{name: "production enables auth", env: map[string]string{"ENVIRONMENT": "production", "ISSUER": "http://issuer", "JWKS_URL": "http://jwks"}, wantAuth: true},
		{name: "staging enables auth", env: map[string]string{"ENVIRONMENT": "Staging", "ISSUER": "http://issuer", "JWKS_URL": "http://jwks"}, wantAuth: true},
		{name: "explicit opt out", env: map[string]string{"ENVIRONMENT": "production", "AUTH_ENABLED": "false"}, wantAuth: false},
		{name: "explicit opt in during development", env: map[string]string{"AUTH_ENABLED": "true", "ISSUER": "http://issuer", "JWKS_URL": "http://jwks"}, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, cfg.AuthEnabled)
		})
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "auth without issuer", env: map[string]string{"AUTH_ENABLED": "true", "JWKS_URL": "http://jwks"}, wantErr: "ISSUER"},
		{name: "auth without jwks", env: map[string]string{"AUTH_ENABLED": "true", "ISSUER": "http://issuer"}, wantErr: "JWKS_URL"},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}, wantErr: "DB_DRIVER"},
		{name: "unknown pii level", env: map[string]string{"PII_LEVEL": "partial"}, wantErr: "PII_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("INBOUND_WORKER_COUNT", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 4, cfg.InboundWorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
