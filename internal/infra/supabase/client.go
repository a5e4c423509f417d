// Package supabase provides a client for Supabase (PostgREST).
// It serves boletos and merchant profiles owned by the administrative backend
// and persists the pix generation ledger.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	loc            *time.Location
	logger         *zap.Logger
}

// NewClient creates a Supabase client. loc is used to read date-only due dates.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, loc *time.Location, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		loc:            loc,
		logger:         logger,
	}
}

// statusError is a non-2xx answer from PostgREST.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// doRequest executes an authenticated request to Supabase PostgREST.
// 4xx answers are permanent and are not retried.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	prefer := ""
	if method == http.MethodPost {
		prefer = "return=minimal"
	}
	c.setHeaders(req, prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		serr := &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(serr)
		}
		return nil, serr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return respBody, nil
}

// execute runs fn behind the circuit breaker with retries and classifies what
// comes out: not-found and client errors pass through, everything else
// (network, 5xx, open breaker, deadline) is a transient failure. Only transient
// failures count against the breaker.
func (c *Client) execute(ctx context.Context, op string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		err := resilience.RetryWithBackoff(ctx, c.cfg, fn)
		if err != nil && !isTransient(err) {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	})
	if err == nil {
		return nil
	}

	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return notFound
	case !isTransient(err):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &domain.ErrTransientIO{Operation: op, Err: err}
	}
}

func isTransient(err error) bool {
	var (
		notFound *domain.ErrNotFound
		serr     *statusError
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, errDecode):
		return false
	case errors.As(err, &serr):
		return serr.Status >= 500 || serr.Status == http.StatusTooManyRequests
	default:
		return true
	}
}

var errDecode = errors.New("unexpected response shape")

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: %v", errDecode, err))
	}
	return nil
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "merchant_profiles?select=tenant_id&limit=1", nil)
	return err
}
