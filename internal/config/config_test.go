package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, BackendDynamoDB, cfg.StoreBackend)
	assert.Equal(t, "user-media", cfg.ToWatchTable)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, filepath.Join(dir, "towatch.db"), cfg.DatabaseFile)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Hour, cfg.CatalogCacheTTL)
	assert.Equal(t, "en-US", cfg.TMDBLanguage)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CATALOG_CACHE_TTL_MINUTES", "5")
	t.Setenv("TMDB_LANGUAGE", "fr-FR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendBolt, cfg.StoreBackend)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, "fr-FR", cfg.TMDBLanguage)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing session secret",
			env:     map[string]string{},
			wantErr: "SESSION_SECRET is required",
		},
		{
			name:    "short session secret",
			env:     map[string]string{"SESSION_SECRET": "short"},
			wantErr: "at least 32 characters",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"SESSION_SECRET": testSecret, "STORE_BACKEND": "postgres"},
			wantErr: "STORE_BACKEND must be",
		},
		{
			name:    "bad language",
			env:     map[string]string{"SESSION_SECRET": testSecret, "TMDB_LANGUAGE": "not a tag!"},
			wantErr: "TMDB_LANGUAGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv("SESSION_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "unexpected error: %v", err)
		})
	}
}
