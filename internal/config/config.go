// Package config provides configuration loading and validation for the
// autopublisher server, worker and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WordPressConfig holds WordPress REST API credentials.
type WordPressConfig struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	AppPassword string `json:"app_password,omitempty" yaml:"app_password,omitempty"`
}

// Configured reports whether every credential field is set.
func (c WordPressConfig) Configured() bool {
	return c.URL != "" && c.Username != "" && c.AppPassword != ""
}

// InstagramConfig holds Instagram Graph API credentials.
type InstagramConfig struct {
	AccessToken       string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	BusinessAccountID string `json:"business_account_id,omitempty" yaml:"business_account_id,omitempty"`
	GraphURL          string `json:"graph_url,omitempty" yaml:"graph_url,omitempty"`
}

// Configured reports whether the required credential fields are set.
func (c InstagramConfig) Configured() bool {
	return c.AccessToken != "" && c.BusinessAccountID != ""
}

// FacebookConfig holds Facebook page credentials. No publisher is registered
// for Facebook; the credentials are only reported by the platform status check.
type FacebookConfig struct {
	PageID      string `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
}

// Configured reports whether the required credential fields are set.
func (c FacebookConfig) Configured() bool {
	return c.PageID != "" && c.AccessToken != ""
}

// XConfig holds X API credentials.
type XConfig struct {
	APIKey            string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret         string `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	AccessToken       string `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	AccessTokenSecret string `json:"access_token_secret,omitempty" yaml:"access_token_secret,omitempty"`
}

// Configured reports whether the required credential fields are set.
func (c XConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Platforms groups the credentials of every platform. It is read-only after load.
type Platforms struct {
	WordPress WordPressConfig `json:"wordpress" yaml:"wordpress"`
	Instagram InstagramConfig `json:"instagram" yaml:"instagram"`
	Facebook  FacebookConfig  `json:"facebook" yaml:"facebook"`
	X         XConfig         `json:"x" yaml:"x"`
}

// Content generator backends.
const (
	GeneratorService = "service"
	GeneratorLLM     = "llm"
)

// Config is the full runtime configuration.
type Config struct {
	Platforms Platforms `json:"platforms" yaml:"platforms"`

	// Publishing
	MaxRetryAttempts      int `json:"max_retry_attempts,omitempty" yaml:"max_retry_attempts,omitempty"`
	RetryDelaySeconds     int `json:"retry_delay_seconds,omitempty" yaml:"retry_delay_seconds,omitempty"`
	InstagramGraceSeconds int `json:"instagram_grace_seconds,omitempty" yaml:"instagram_grace_seconds,omitempty"`

	// Collaborators and infrastructure
	ContentGenerator  string `json:"content_generator,omitempty" yaml:"content_generator,omitempty"` // "service" or "llm"
	ContentServiceURL string `json:"content_service_url,omitempty" yaml:"content_service_url,omitempty"`
	GeminiAPIKey      string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	RedisURL          string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	DatabaseURL       string `json:"database_url,omitempty" yaml:"database_url,omitempty"`

	// Worker
	MaxConcurrentTasks   int `json:"max_concurrent_tasks,omitempty" yaml:"max_concurrent_tasks,omitempty"`
	TaskTimeoutSeconds   int `json:"task_timeout_seconds,omitempty" yaml:"task_timeout_seconds,omitempty"`
	ResultExpiresSeconds int `json:"result_expires_seconds,omitempty" yaml:"result_expires_seconds,omitempty"`

	// Server
	Port               int      `json:"port,omitempty" yaml:"port,omitempty"`
	LogLevel           string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins,omitempty" yaml:"cors_allowed_origins,omitempty"`
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		MaxRetryAttempts:      3,
		RetryDelaySeconds:     5,
		InstagramGraceSeconds: 3,
		ContentGenerator:      GeneratorService,
		ContentServiceURL:     "http://content-service:8000",
		RedisURL:              "redis://localhost:6379/0",
		MaxConcurrentTasks:    10,
		TaskTimeoutSeconds:    600,
		ResultExpiresSeconds:  3600,
		Port:                  8080,
		LogLevel:              "info",
	}
}

// FromEnv builds a Config from environment variables. Unset variables keep
// their zero value so the result can be merged with a file config and defaults.
func FromEnv() Config {
	return Config{
		Platforms: Platforms{
			WordPress: WordPressConfig{
				URL:         strings.TrimRight(os.Getenv("WORDPRESS_URL"), "/"),
				Username:    os.Getenv("WORDPRESS_USERNAME"),
				AppPassword: os.Getenv("WORDPRESS_APP_PASSWORD"),
			},
			Instagram: InstagramConfig{
				AccessToken:       os.Getenv("INSTAGRAM_ACCESS_TOKEN"),
				BusinessAccountID: os.Getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID"),
				GraphURL:          os.Getenv("INSTAGRAM_GRAPH_URL"),
			},
			Facebook: FacebookConfig{
				PageID:      os.Getenv("FACEBOOK_PAGE_ID"),
				AccessToken: os.Getenv("FACEBOOK_ACCESS_TOKEN"),
			},
			X: XConfig{
				APIKey:            os.Getenv("X_API_KEY"),
				APISecret:         os.Getenv("X_API_SECRET"),
				AccessToken:       os.Getenv("X_ACCESS_TOKEN"),
				AccessTokenSecret: os.Getenv("X_ACCESS_TOKEN_SECRET"),
			},
		},
		MaxRetryAttempts:      getEnvInt("MAX_RETRY_ATTEMPTS"),
		RetryDelaySeconds:     getEnvInt("RETRY_DELAY_SECONDS"),
		InstagramGraceSeconds: getEnvInt("INSTAGRAM_GRACE_SECONDS"),
		ContentGenerator:      os.Getenv("CONTENT_GENERATOR"),
		ContentServiceURL:     strings.TrimRight(os.Getenv("CONTENT_SERVICE_URL"), "/"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		RedisURL:              os.Getenv("REDIS_URL"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MaxConcurrentTasks:    getEnvInt("MAX_CONCURRENT_TASKS"),
		TaskTimeoutSeconds:    getEnvInt("TASK_TIMEOUT_SECONDS"),
		ResultExpiresSeconds:  getEnvInt("RESULT_EXPIRES_SECONDS"),
		Port:                  getEnvInt("PORT"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		CORSAllowedOrigins:    splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

// Load returns the effective configuration: environment first, then the
// optional config file, then defaults.
func Load(path string) (*Config, error) {
	cfg := FromEnv()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
	}
	cfg = cfg.MergeWithDefaults(Defaults())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("config error: 'max_retry_attempts' must be non-negative")
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("config error: 'retry_delay_seconds' must be non-negative")
	}
	if c.InstagramGraceSeconds < 0 {
		return fmt.Errorf("config error: 'instagram_grace_seconds' must be non-negative")
	}
	if c.MaxConcurrentTasks < 0 {
		return fmt.Errorf("config error: 'max_concurrent_tasks' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	switch c.ContentGenerator {
	case "", GeneratorService, GeneratorLLM:
	default:
		return fmt.Errorf("config error: 'content_generator' must be \"service\" or \"llm\", got %q", c.ContentGenerator)
	}
	if c.ContentGenerator == GeneratorLLM && c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: 'gemini_api_key' is required when content_generator is \"llm\"")
	}
	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	result.Platforms.WordPress = mergeWordPress(result.Platforms.WordPress, defaults.Platforms.WordPress)
	result.Platforms.Instagram = mergeInstagram(result.Platforms.Instagram, defaults.Platforms.Instagram)
	if !result.Platforms.Facebook.Configured() {
		result.Platforms.Facebook = defaults.Platforms.Facebook
	}
	if !result.Platforms.X.Configured() {
		result.Platforms.X = defaults.Platforms.X
	}

	mergeString(&result.ContentGenerator, defaults.ContentGenerator)
	mergeString(&result.ContentServiceURL, defaults.ContentServiceURL)
	mergeString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&result.RedisURL, defaults.RedisURL)
	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.LogLevel, defaults.LogLevel)

	mergeInt(&result.MaxRetryAttempts, defaults.MaxRetryAttempts)
	mergeInt(&result.RetryDelaySeconds, defaults.RetryDelaySeconds)
	mergeInt(&result.InstagramGraceSeconds, defaults.InstagramGraceSeconds)
	mergeInt(&result.MaxConcurrentTasks, defaults.MaxConcurrentTasks)
	mergeInt(&result.TaskTimeoutSeconds, defaults.TaskTimeoutSeconds)
	mergeInt(&result.ResultExpiresSeconds, defaults.ResultExpiresSeconds)
	mergeInt(&result.Port, defaults.Port)

	if len(result.CORSAllowedOrigins) == 0 {
		result.CORSAllowedOrigins = defaults.CORSAllowedOrigins
	}

	return result
}

// RetryDelay returns the base retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// InstagramGrace returns the wait between container creation and publish.
func (c *Config) InstagramGrace() time.Duration {
	return time.Duration(c.InstagramGraceSeconds) * time.Second
}

// TaskTimeout returns the per-workflow execution limit.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// ResultExpires returns how long task state is kept in the queue backend.
func (c *Config) ResultExpires() time.Duration {
	return time.Duration(c.ResultExpiresSeconds) * time.Second
}

func mergeWordPress(c, d WordPressConfig) WordPressConfig {
	mergeString(&c.URL, d.URL)
	mergeString(&c.Username, d.Username)
	mergeString(&c.AppPassword, d.AppPassword)
	return c
}

func mergeInstagram(c, d InstagramConfig) InstagramConfig {
	mergeString(&c.AccessToken, d.AccessToken)
	mergeString(&c.BusinessAccountID, d.BusinessAccountID)
	mergeString(&c.GraphURL, d.GraphURL)
	return c
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func mergeInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func getEnvInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
