package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/logicinvent/project-portfolio-api/pkg/config"
	jwtpkg "github.com/logicinvent/project-portfolio-api/pkg/jwt"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := New(config.AuthConfig{
		Username:       "admin",
		Password:       "s3cret",
		Role:           "ADMIN",
		JWTSecret:      "signing-key",
		AccessTokenTTL: time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	principal, err := svc.Authenticate(ctx, "admin", "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.Username != "admin" || principal.Role != "ADMIN" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if _, err := svc.Authenticate(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "root", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestIssueAndAuthorize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "admin", "s3cret")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token.TokenType != "Bearer" || token.ExpiresIn != time.Minute {
		t.Fatalf("unexpected token metadata: %+v", token)
	}
	principal, err := svc.Authorize(ctx, token.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if principal.Username != "admin" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestAuthorizeRejectsForeignSubject(t *testing.T) {
	svc := newTestService(t)
	foreign, err := jwtpkg.GenerateToken("someone", "ADMIN", "signing-key", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Authorize(context.Background(), foreign); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(config.AuthConfig{JWTSecret: "x"}, slog.Default()); err == nil {
		t.Fatal("expected error without credentials")
	}
}
