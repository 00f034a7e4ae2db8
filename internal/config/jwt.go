package config

import (
	"fmt"
	"os"
	"strings"
)

// JWTConfig holds the settings used to verify bearer tokens on the API.
// Tokens are issued by the auth service; this process only verifies them.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// NewJWTConfig reads API_JWT_SECRET, API_JWT_ISSUER and API_JWT_AUDIENCE.
// It returns nil without error when API_JWT_SECRET is unset, which disables
// token verification.
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("API_JWT_SECRET")
	if secret == "" {
		return nil, nil
	}

	cfg := &JWTConfig{
		Secret:   secret,
		Issuer:   strings.TrimSpace(os.Getenv("API_JWT_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("API_JWT_AUDIENCE")),
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *JWTConfig) normalize() error {
	if len(c.Secret) < 32 {
		return fmt.Errorf("API_JWT_SECRET must be at least 32 characters, got: %d", len(c.Secret))
	}
	return nil
}
