package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SITE_URL", "")
	t.Setenv("DEFAULT_PER_PAGE", "")
	t.Setenv("REMOTE_IMAGE_DEFAULT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.SiteURL)
	assert.Equal(t, "http://localhost:8080/uploads", cfg.MediaBaseURL)
	assert.Equal(t, 50, cfg.DefaultPerPage)
	assert.Equal(t, "Yes", cfg.RemoteImageDefault)
	assert.Equal(t, 24*time.Hour, cfg.NonceTTL)
	assert.False(t, cfg.MediaAllowPrivateHosts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SITE_URL", "https://shop.example.com/")
	t.Setenv("NONCE_TTL", "2h")
	t.Setenv("MEDIA_FETCH_RETRIES", "3")
	t.Setenv("MEDIA_FETCH_RATE", "0.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("ENV", "production")
	t.Setenv("MEDIA_ALLOW_PRIVATE_HOSTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.SiteURL)
	assert.Equal(t, 2*time.Hour, cfg.NonceTTL)
	assert.Equal(t, 3, cfg.MediaFetchRetries)
	assert.Equal(t, 0.5, cfg.MediaFetchRate)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.MediaAllowPrivateHosts)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DEFAULT_PER_PAGE", "lots")
	t.Setenv("SETTINGS_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.DefaultPerPage)
	assert.Equal(t, 5*time.Minute, cfg.SettingsCacheTTL)
}

func TestValidate_NonceSecret(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"development default", "development", DefaultNonceSecret, false},
		{"production default", "production", DefaultNonceSecret, true},
		{"production empty", "production", "", true},
		{"production custom", "production", "s3cr3t-from-vault", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Env: tt.env, NonceSecret: tt.secret}
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInsecureNonceSecret)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_ProductionWithoutSecretFailsValidation(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("NONCE_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrInsecureNonceSecret)
}
