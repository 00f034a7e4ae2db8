package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_ValidJSON(t *testing.T) {
	content := `{
		"platforms": {
			"wordpress": {"url": "https://blog.example.com", "username": "editor", "app_password": "abcd efgh"}
		},
		"max_retry_attempts": 5,
		"redis_url": "redis://cache:6379/1"
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadFile(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://blog.example.com", cfg.Platforms.WordPress.URL)
	assert.True(t, cfg.Platforms.WordPress.Configured())
	assert.False(t, cfg.Platforms.Instagram.Configured())
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
}

func TestLoadFile_ValidYAML(t *testing.T) {
	content := `
platforms:
  instagram:
    access_token: token
    business_account_id: "1784"
retry_delay_seconds: 2
cors_allowed_origins:
  - https://app.example.com
`

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadFile(tmpFile)
	require.NoError(t, err)

	assert.True(t, cfg.Platforms.Instagram.Configured())
	assert.Equal(t, "1784", cfg.Platforms.Instagram.BusinessAccountID)
	assert.Equal(t, 2, cfg.RetryDelaySeconds)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadFile(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("platforms: [unclosed"), 0644))

	cfg, err := LoadFile(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadFile_FileNotFound(t *testing.T) {
	cfg, err := LoadFile("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFile_EmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("WORDPRESS_URL", "https://env.example.com/")
	t.Setenv("WORDPRESS_USERNAME", "env-user")
	t.Setenv("WORDPRESS_APP_PASSWORD", "env-pass")
	t.Setenv("MAX_RETRY_ATTEMPTS", "4")
	t.Setenv("CONTENT_GENERATOR", "")

	content := `{"max_retry_attempts": 7, "retry_delay_seconds": 9, "platforms": {"wordpress": {"url": "https://file.example.com"}}}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Platforms.WordPress.URL)
	assert.Equal(t, 4, cfg.MaxRetryAttempts)
	assert.Equal(t, 9*time.Second, cfg.RetryDelay())
	assert.Equal(t, 3*time.Second, cfg.InstagramGrace())
	assert.Equal(t, 600*time.Second, cfg.TaskTimeout())
	assert.Equal(t, time.Hour, cfg.ResultExpires())
	assert.Equal(t, "service", cfg.ContentGenerator)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetryAttempts = -1 }, wantErr: "max_retry_attempts"},
		{name: "negative delay", mutate: func(c *Config) { c.RetryDelaySeconds = -1 }, wantErr: "retry_delay_seconds"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "port"},
		{name: "unknown generator", mutate: func(c *Config) { c.ContentGenerator = "magic" }, wantErr: "content_generator"},
		{name: "llm without key", mutate: func(c *Config) { c.ContentGenerator = "llm" }, wantErr: "gemini_api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{
		RedisURL: "redis://custom:6379/0",
		Platforms: Platforms{
			Instagram: InstagramConfig{AccessToken: "token"},
		},
	}
	defaults := Defaults()
	defaults.Platforms.Instagram.BusinessAccountID = "42"

	merged := cfg.MergeWithDefaults(defaults)

	assert.Equal(t, "redis://custom:6379/0", merged.RedisURL)
	assert.Equal(t, 3, merged.MaxRetryAttempts)
	assert.Equal(t, "token", merged.Platforms.Instagram.AccessToken)
	assert.Equal(t, "42", merged.Platforms.Instagram.BusinessAccountID)
	assert.Equal(t, 8080, merged.Port)
}
