package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/logicinvent/project-portfolio-api/internal/service/allocation"
	"github.com/logicinvent/project-portfolio-api/internal/service/auth"
	"github.com/logicinvent/project-portfolio-api/internal/service/member"
	"github.com/logicinvent/project-portfolio-api/internal/service/project"
	"github.com/logicinvent/project-portfolio-api/internal/service/report"
	"github.com/logicinvent/project-portfolio-api/internal/ws"
)

const (
	rateWindowDefault  = time.Minute
	rateLimitReadLimit = 120
	rateLimitWriteMax  = 60
	healthCheckTimeout = 2 * time.Second
)

// RateLimits are per-principal request budgets.
type RateLimits struct {
	Read   int
	Write  int
	Window time.Duration
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Logger      *slog.Logger
	Auth        auth.Service
	Projects    project.Service
	Members     member.Service
	Allocations *allocation.Engine
	Reports     report.Service
	Hub         *ws.Hub
	Limiter     RateLimiter
	Limits      RateLimits
	DBHealth    func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	handler     http.Handler
	logger      *slog.Logger
	auth        auth.Service
	projects    project.Service
	members     member.Service
	allocations *allocation.Engine
	reports     report.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	limits      RateLimits
	dbHealth    func(context.Context) error
	metrics     routerMetrics
}

// NewRouter assembles routes with dependencies.
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      deps.Logger,
		auth:        deps.Auth,
		projects:    deps.Projects,
		members:     deps.Members,
		allocations: deps.Allocations,
		reports:     deps.Reports,
		hub:         deps.Hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  deps.Limiter,
		limits:   deps.Limits,
		dbHealth: deps.DBHealth,
		metrics:  newRouterMetrics(),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.limits.Read <= 0 {
		r.limits.Read = rateLimitReadLimit
	}
	if r.limits.Write <= 0 {
		r.limits.Write = rateLimitWriteMax
	}
	if r.limits.Window <= 0 {
		r.limits.Window = rateWindowDefault
	}
	r.register()
	r.handler = otelhttp.NewHandler(r.mux, "portfolio-api")
	return r
}

// ServeHTTP delegates to the traced mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())
	r.handle("POST /auth/token", r.withRateLimit("POST /auth/token", r.limits.Write, r.limits.Window, rateLimitKeyIP, r.handleIssueToken))

	r.write("POST /api/v1/projects", r.handleCreateProject)
	r.read("GET /api/v1/projects", r.handleListProjects)
	r.read("GET /api/v1/projects/{id}", r.handleGetProject)
	r.write("PUT /api/v1/projects/{id}", r.handleUpdateProject)
	r.write("DELETE /api/v1/projects/{id}", r.handleDeleteProject)

	r.write("POST /api/v1/project-members", r.handleAllocate)
	r.read("GET /api/v1/project-members/projects/{projectId}", r.handleListAllocations)
	r.read("GET /api/v1/project-members/projects/{projectId}/members/{memberId}", r.handleGetAllocation)
	r.write("PUT /api/v1/project-members/projects/{projectId}/members/{memberId}", r.handleUpdateAllocation)
	r.write("DELETE /api/v1/project-members/projects/{projectId}/members/{memberId}", r.handleDeleteAllocation)

	r.write("POST /api/v1/members", r.handleCreateMember)
	r.read("GET /api/v1/members", r.handleListMembers)
	r.read("GET /api/v1/members/{id}", r.handleGetMember)
	r.write("PUT /api/v1/members/{id}", r.handleUpdateMember)
	r.write("DELETE /api/v1/members/{id}", r.handleDeleteMember)

	r.read("GET /api/v1/reports/unique-allocated-members", r.handleUniqueAllocatedMembers)
	r.read("GET /api/v1/reports/closed-projects-average-duration", r.handleAverageClosedDuration)
	r.read("GET /api/v1/reports/budget-by-status", r.handleBudgetByStatus)
	r.read("GET /api/v1/reports/projects-by-status", r.handleProjectsByStatus)

	r.read("GET /ws/projects", r.handleProjectsWS)
	r.handle("/", r.notFound)
}

func (r *Router) handle(pattern string, next http.HandlerFunc) {
	r.mux.HandleFunc(pattern, r.audit(pattern, next))
}

func (r *Router) read(pattern string, next http.HandlerFunc) {
	r.handle(pattern, r.handlerAuthRate(pattern, r.limits.Read, r.limits.Window, next))
}

func (r *Router) write(pattern string, next http.HandlerFunc) {
	r.handle(pattern, r.handlerAuthRate(pattern, r.limits.Write, r.limits.Window, next))
}

func (r *Router) handleIssueToken(w http.ResponseWriter, req *http.Request) {
	username, password, ok := req.BasicAuth()
	if !ok {
		unauthorized(w, "basic credentials required")
		return
	}
	token, err := r.auth.IssueToken(req.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			unauthorized(w, "authentication failed")
			return
		}
		r.writeServiceError(w, req, err)
		return
	}
	writeContent(w, http.StatusOK, "token issued", map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int64(token.ExpiresIn.Seconds()),
	})
}

func (r *Router) handleProjectsWS(w http.ResponseWriter, req *http.Request) {
	projectID := strings.TrimSpace(req.URL.Query().Get("project_id"))
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "activity stream disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(projectID, client)
	r.logger.Debug("activity subscriber connected", "project_id", projectID)
	go func() {
		defer func() {
			r.hub.Unregister(projectID, client)
			client.Close()
		}()
		client.ReadLoop()
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeContent(w, code, status, map[string]any{
		"status":     status,
		"components": components,
	})
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		span := trace.SpanFromContext(req.Context())
		span.SetName(route)
		span.SetAttributes(semconv.HTTPRouteKey.String(route))

		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Username
			fields = append(fields, "role", info.Role)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		sr.status = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := max(limit-decision.count, 0)
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}
