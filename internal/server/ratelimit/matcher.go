package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited are health checks and scrapes that must never be throttled.
var unlimited = map[string]bool{
	"/health":                 true,
	"/metrics":                true,
	"/api/v1/workflow/health": true,
}

var unlimitedConfig = EndpointConfig{}

// MatchEndpoint returns the config for path and method, or nil when none
// applies. An exact path wins over a prefix; among prefixes the longest wins,
// so "/api/v1/publish/delete/" matches "/api/v1/publish/delete/wordpress/12".
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && unlimited[path] {
		cfg := unlimitedConfig
		return &cfg
	}

	var best *EndpointConfig
	for i := range configs {
		cfg := &configs[i]
		if cfg.Method != method {
			continue
		}
		if cfg.Path == path {
			return cfg
		}
		if strings.HasSuffix(cfg.Path, "/") && strings.HasPrefix(path, cfg.Path) {
			if best == nil || len(cfg.Path) > len(best.Path) {
				best = cfg
			}
		}
	}
	return best
}
