package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one route. A Path ending in "/"
// also matches every path below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int           // bucket capacity, Limit when 0
}

// LoadConfig reads RATE_LIMIT_* settings, falling back to the defaults for
// anything unset or unparsable.
func LoadConfig() *Config {
	if !envOr("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envOr("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envOr("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envOr("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that generate content or call
// remote platforms. Reads fall back to the default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	perMinute := func(method, path string, limit, burst int) EndpointConfig {
		return EndpointConfig{Path: path, Method: method, Limit: limit, Window: time.Minute, Burst: burst}
	}
	return []EndpointConfig{
		perMinute(http.MethodPost, "/api/v1/workflow/execute", 30, 10),
		perMinute(http.MethodPost, "/api/v1/workflow/execute/bulk", 5, 2),
		perMinute(http.MethodDelete, "/api/v1/workflow/cancel/", 60, 10),
		perMinute(http.MethodPost, "/api/v1/publish/publish", 60, 10),
		perMinute(http.MethodPost, "/api/v1/publish/bulk", 10, 2),
		perMinute(http.MethodDelete, "/api/v1/publish/delete/", 60, 10),
	}
}

// envOr parses the environment variable key, returning def when it is unset
// or does not parse.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// parseIPList turns "a, b,c" into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
