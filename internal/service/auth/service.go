package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/logicinvent/project-portfolio-api/pkg/config"
	"github.com/logicinvent/project-portfolio-api/pkg/crypto"
	jwtpkg "github.com/logicinvent/project-portfolio-api/pkg/jwt"
)

// ErrInvalidCredentials is returned for any failed authentication attempt.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is the authenticated caller.
type Principal struct {
	Username string
	Role     string
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Service authenticates the configured operator account.
type Service struct {
	username     string
	role         string
	passwordHash []byte
	secret       string
	ttl          time.Duration
	logger       *slog.Logger
}

// New constructs a Service, hashing the configured password once.
func New(cfg config.AuthConfig, logger *slog.Logger) (Service, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" || cfg.Password == "" {
		return Service{}, errors.New("operator credentials are required")
	}
	if cfg.JWTSecret == "" {
		return Service{}, errors.New("jwt secret is required")
	}
	hash, err := crypto.HashPassword(cfg.Password, cfg.BcryptCost)
	if err != nil {
		return Service{}, err
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return Service{
		username:     username,
		role:         cfg.Role,
		passwordHash: hash,
		secret:       cfg.JWTSecret,
		ttl:          ttl,
		logger:       logger,
	}, nil
}

// Authenticate checks basic credentials against the operator account.
func (s Service) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.username)) != 1 {
		return Principal{}, ErrInvalidCredentials
	}
	if err := crypto.ComparePassword(s.passwordHash, password); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Username: s.username, Role: s.role}, nil
}

// IssueToken authenticates the caller and returns a signed bearer token.
func (s Service) IssueToken(ctx context.Context, username, password string) (Token, error) {
	principal, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}
	access, err := jwtpkg.GenerateToken(principal.Username, principal.Role, s.secret, s.ttl)
	if err != nil {
		return Token{}, err
	}
	s.logger.Info("access token issued", "username", principal.Username)
	return Token{AccessToken: access, TokenType: "Bearer", ExpiresIn: s.ttl}, nil
}

// Authorize validates a bearer token and returns the caller it was issued to.
func (s Service) Authorize(ctx context.Context, token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.secret)
	if err != nil {
		return Principal{}, err
	}
	if claims.Username != s.username {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{Username: claims.Username, Role: claims.Role}, nil
}
