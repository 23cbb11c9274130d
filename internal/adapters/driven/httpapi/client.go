package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// maxErrorBody limits how much of a failed response is quoted in errors.
const maxErrorBody = 512

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	// Name prefixes error messages, e.g. "openai".
	Name string

	// Kind is the domain sentinel every failure wraps,
	// e.g. domain.ErrEmbeddingService.
	Kind error

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Policy controls retries of 429, 5xx and transport failures.
	Policy Policy

	// RequestsPerSecond paces attempts (0 = unlimited).
	RequestsPerSecond float64

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// Client sends JSON requests with pacing and retries.
type Client struct {
	name    string
	kind    error
	http    *http.Client
	policy  Policy
	limiter *rate.Limiter
}

// New creates a Client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy()
	}
	kind := cfg.Kind
	if kind == nil {
		kind = errors.New("request failed")
	}
	return &Client{
		name:    cfg.Name,
		kind:    kind,
		http:    hc,
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// PostJSON marshals in, POSTs it to url and decodes a 2xx body into out.
// Failures wrap the client's Kind, and domain.ErrTimeout when the deadline
// expired.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	return c.do(ctx, http.MethodPost, url, header, body, out)
}

// GetJSON issues a GET and decodes a 2xx body into out (nil to discard).
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	return c.do(ctx, http.MethodGet, url, header, nil, out)
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header, body []byte, out any) error {
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, method, url, header, body, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %w: %s: %w", c.kind, domain.ErrTimeout, c.name, err)
	}
	return fmt.Errorf("%w: %s: %w", c.kind, c.name, err)
}

func (c *Client) attempt(ctx context.Context, method, url string, header http.Header, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Retryable(fmt.Errorf("send request: %w", err), 0)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Retryable(fmt.Errorf("read response: %w", err), 0)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: trimBody(payload)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return Retryable(statusErr, retryAfter(resp.Header.Get("Retry-After")))
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// retryAfter parses the delta-seconds form of Retry-After.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
