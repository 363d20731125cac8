package services

import (
	"context"
	"time"

	"filepulse/config"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService issues and verifies the bearer tokens guarding upload and
// deletion. Read operations run without one.
type AuthService struct {
	jwtSecret []byte
	expiry    time.Duration
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		jwtSecret: []byte(cfg.JWTSecret),
		expiry:    time.Duration(cfg.JWTExpiryHours) * time.Hour,
	}
}

type AccessClaims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the given caller identity.
func (s *AuthService) IssueToken(username string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ParseToken verifies the token signature and expiry.
func (s *AuthService) ParseToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, filepulse_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, filepulse_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return AccessClaims{}, filepulse_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return AccessClaims{}, filepulse_errors.ErrUnauthorized
	}
	return *claims, nil
}

type userCtxKey struct{}

// WithUserContext attaches the verified caller identity to the context.
func WithUserContext(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, username)
}

// UserFromContext returns the caller identity, if one was attached.
func UserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(userCtxKey{}).(string)
	return username, ok
}
