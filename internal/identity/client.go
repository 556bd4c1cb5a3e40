package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/logicinvent/project-portfolio-api/internal/domain"
	"github.com/logicinvent/project-portfolio-api/internal/telemetry"
	"github.com/logicinvent/project-portfolio-api/pkg/config"
)

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("identity source unavailable")

// Client fetches member profiles from the external identity source.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	fetches    *prometheus.CounterVec
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client for the configured identity source.
func New(cfg config.MembersAPIConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("identity base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid identity base url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		fetches: fetchCounter(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(breakerSettings(cfg, logger))
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func breakerSettings(cfg config.MembersAPIConfig, logger *slog.Logger) gobreaker.Settings {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.Settings{
		Name:        "identity-source",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A 4xx answer means the source is healthy; only transport errors and
		// 5xx answers count toward tripping.
		IsSuccessful: func(err error) bool {
			var apiErr APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// APIError represents a non-2xx answer from the identity source.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity request failed with status %d", e.Status)
	}
	return fmt.Sprintf("identity request failed (%d): %s", e.Status, e.Message)
}

type memberPayload struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Occupation *reference `json:"occupation"`
	Contract   *reference `json:"employmentContract"`
}

type reference struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
}

func (r *reference) id() *int {
	if r == nil {
		return nil
	}
	return r.ID
}

// GetByExternalID fetches one member profile.
func (c *Client) GetByExternalID(ctx context.Context, externalID int) (domain.MemberProfile, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var payload memberPayload
		if err := c.do(ctx, http.MethodGet, "/api/members/"+strconv.Itoa(externalID), &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.record("rejected")
			return domain.MemberProfile{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.record("error")
		return domain.MemberProfile{}, err
	}
	c.record("ok")
	payload := result.(memberPayload)
	return domain.MemberProfile{
		ExternalID:           externalID,
		Name:                 strings.TrimSpace(payload.Name),
		OccupationID:         payload.Occupation.id(),
		EmploymentContractID: payload.Contract.id(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	if payload.Error != "" {
		return strings.TrimSpace(payload.Error)
	}
	return strings.TrimSpace(payload.Message)
}

func (c *Client) record(outcome string) {
	if c.fetches != nil {
		c.fetches.WithLabelValues(outcome).Inc()
	}
}

func fetchCounter() *prometheus.CounterVec {
	return telemetry.CounterVec(prometheus.CounterOpts{
		Namespace: "portfolio",
		Subsystem: "identity",
		Name:      "fetch_total",
		Help:      "Outcome of member profile fetches against the identity source",
	}, "outcome")
}
