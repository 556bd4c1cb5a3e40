package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type authContextKey string

type authInfo struct {
	Username string
	Role     string
}

const contextKeyAuth authContextKey = "portfolio-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request carries valid credentials before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// ensureAuth accepts either HTTP Basic credentials or a bearer token and
// enriches the context with the caller.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	header := req.Header.Get("Authorization")
	if username, password, ok := req.BasicAuth(); ok {
		principal, err := r.auth.Authenticate(req.Context(), username, password)
		if err != nil {
			r.logger.Warn("basic authentication failed", "error", err, "path", req.URL.Path)
			unauthorized(w, "authentication failed")
			return req.Context(), authInfo{}, false
		}
		info := authInfo{Username: principal.Username, Role: principal.Role}
		return context.WithValue(req.Context(), contextKeyAuth, info), info, true
	}
	token, err := bearerToken(header)
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		unauthorized(w, "authentication required")
		return req.Context(), authInfo{}, false
	}
	principal, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		unauthorized(w, "authentication failed")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{Username: principal.Username, Role: principal.Role}
	return context.WithValue(req.Context(), contextKeyAuth, info), info, true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="portfolio", Bearer`)
	writeError(w, http.StatusUnauthorized, msg)
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
