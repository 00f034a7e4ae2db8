package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/server/middleware"
)

// Claims are the bearer token claims accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenSubject implements middleware.SubjectGetter.
func (c *Claims) TokenSubject() string {
	return c.Subject
}

// JWTService signs and verifies HMAC bearer tokens for one issuer and audience.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewJWTService builds a service from cfg. Issuer and audience are enforced
// only when set.
func NewJWTService(cfg *config.JWTConfig) *JWTService {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}
}

// GenerateToken signs an HS256 token for subject that expires after ttl.
func (s *JWTService) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: claims}).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

var tokenErrorPrefixes = []struct {
	target error
	prefix string
}{
	{jwt.ErrTokenSignatureInvalid, "invalid token signature"},
	{jwt.ErrTokenExpired, "token expired"},
	{jwt.ErrTokenMalformed, "malformed token"},
}

// ValidateToken verifies raw and returns its claims.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("token string is empty")
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		for _, e := range tokenErrorPrefixes {
			if errors.Is(err, e.target) {
				return nil, fmt.Errorf("%s: %w", e.prefix, err)
			}
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// AsTokenValidator adapts the service to the auth middleware.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{s}
}

type tokenValidator struct {
	service *JWTService
}

func (v tokenValidator) ValidateToken(raw string) (middleware.SubjectGetter, error) {
	claims, err := v.service.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
