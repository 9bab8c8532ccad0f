package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/toeic-session/internal/config"
)

// ErrTokenRevoked is returned for a token whose id was revoked.
var ErrTokenRevoked = errors.New("token revoked")

// TokenType distinguishes learner vs admin tokens.
type TokenType string

const (
	TokenTypeLearner TokenType = "learner"
	TokenTypeAdmin   TokenType = "admin"
)

// Admin permission codes.
const (
	PermissionTestsMonitor = "tests:monitor"
	PermissionTestsWrite   = "tests:write"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Permissions []string  `json:"permissions,omitempty"` // Admin only
}

// HasPermission reports whether the claims carry code.
func (c *Claims) HasPermission(code string) bool {
	for _, p := range c.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

// AuthService signs and validates bearer tokens. Accounts live in the external
// identity service; this process only trusts tokens signed with the shared secret.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService. rdb may be nil, which disables
// revocation checks.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// GenerateLearnerToken creates a JWT for a learner.
func (s *AuthService) GenerateLearnerToken(userID int, email string) (string, error) {
	return s.sign(Claims{
		TokenType: TokenTypeLearner,
		UserID:    userID,
		Email:     email,
	})
}

// GenerateAdminToken creates a JWT for an admin with permissions embedded.
func (s *AuthService) GenerateAdminToken(adminID int, permissions []string) (string, error) {
	return s.sign(Claims{
		TokenType:   TokenTypeAdmin,
		UserID:      adminID,
		Permissions: permissions,
	})
}

func (s *AuthService) sign(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   strconv.Itoa(claims.UserID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// CheckRevoked returns ErrTokenRevoked if the token id was revoked.
func (s *AuthService) CheckRevoked(ctx context.Context, jti string) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(jti)).Result()
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}

// RevokeToken marks a token id as revoked until the token would have expired.
func (s *AuthService) RevokeToken(ctx context.Context, jti string) error {
	if s.rdb == nil {
		return errors.New("revocation requires redis")
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(jti), 1, s.cfg.JWTExpiry).Err()
}
