// Package client provides the HTTP client for the docshelf backend with
// retry, circuit breaking, and auth. Every operation returns a Result.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/internal/metrics"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/retry"
)

// DefaultMaxUploadSize is the largest file accepted for upload.
const DefaultMaxUploadSize int64 = 50 * 1024 * 1024

// TokenStore supplies the bearer token and persists tokens after login.
type TokenStore interface {
	AccessToken() string
	SaveAuth(protocol.AuthResponse) error
}

// BreakerConfig tunes the backend circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker (default 5).
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open (default 30s).
	Timeout time.Duration
	// MaxRequests allowed through while half-open (default 1).
	MaxRequests uint32
}

// Config holds client configuration.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryConfig   retry.Config
	Tokens        TokenStore
	Transport     http.RoundTripper
	Breaker       BreakerConfig
	MaxUploadSize int64
}

// Client talks to the backend REST API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	retryConfig   retry.Config
	tokens        TokenStore
	breaker       *gobreaker.CircuitBreaker
	maxUploadSize int64

	mu     sync.RWMutex
	online bool
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.Breaker.ConsecutiveFailures == 0 {
		cfg.Breaker.ConsecutiveFailures = 5
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = 1
	}

	base := cfg.Transport
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	// Error is always nil without a public suffix list.
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: logging.NewTransport(metrics.NewTransport(base)),
		},
		retryConfig:   cfg.RetryConfig,
		tokens:        cfg.Tokens,
		maxUploadSize: cfg.MaxUploadSize,
		online:        true,
	}

	threshold := cfg.Breaker.ConsecutiveFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: cfg.Breaker.MaxRequests,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.setOnline(to != gobreaker.StateOpen)
		},
	})
	metrics.SetBackendOnline(true)

	return c
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// MaxUploadSize returns the upload size ceiling.
func (c *Client) MaxUploadSize() int64 {
	return c.maxUploadSize
}

// IsOnline returns false while the breaker is open.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("Backend is reachable again")
		} else {
			logging.Error("Backend is unreachable", zap.String("url", c.baseURL))
		}
	}
	c.online = online
	metrics.SetBackendOnline(online)
}

// Ping checks if the backend is reachable. Transport failures are retried;
// any status is an answer and is not.
func (c *Client) Ping(ctx context.Context) error {
	var raw *rawResponse
	err := retry.Do(ctx, c.retryConfig, func() error {
		r, err := c.send(ctx, http.MethodGet, "/health", "", nil)
		if err != nil {
			return retryableSend(ctx, err)
		}
		raw = r
		return nil
	})
	if err != nil {
		return &Error{Kind: KindNetwork, Message: MsgNetwork, Cause: err}
	}
	if raw.status != http.StatusOK {
		return statusError(raw, MsgGeneric)
	}
	return nil
}

// rawResponse is a fully read backend response.
type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// serverError marks a 5xx response so that GETs can be retried; the
// response is kept for reporting once retries run out.
type serverError struct {
	raw *rawResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server returned %d", e.raw.status)
}

func (c *Client) applyAuth(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// send performs one request through the breaker. Only transport failures
// count against the breaker.
func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte) (*rawResponse, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return &rawResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*rawResponse), nil
}

// exchange sends a request. GETs are retried on transport failures and 5xx;
// everything else is sent exactly once.
func (c *Client) exchange(ctx context.Context, method, path, contentType string, payload []byte) (*rawResponse, error) {
	if method != http.MethodGet {
		return c.send(ctx, method, path, contentType, payload)
	}

	raw, err := retry.DoWithResult(ctx, c.retryConfig, func() (*rawResponse, error) {
		raw, err := c.send(ctx, method, path, contentType, payload)
		if err != nil {
			return nil, retryableSend(ctx, err)
		}
		if raw.status >= 500 {
			return nil, retry.Retryable(&serverError{raw: raw})
		}
		return raw, nil
	})
	var se *serverError
	if errors.As(err, &se) {
		return se.raw, nil
	}
	return raw, err
}

// retryableSend marks a send failure for retry unless the breaker refused the
// call or ctx ended.
func retryableSend(ctx context.Context, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || ctx.Err() != nil {
		return err
	}
	return retry.Retryable(err)
}

// call is the common path for JSON endpoints.
func call[T any](ctx context.Context, c *Client, method, path string, in any) Result[T] {
	var payload []byte
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fail[T](&Error{Kind: KindValidation, Message: "invalid request body", Cause: err})
		}
		payload = data
		contentType = "application/json"
	}

	raw, err := c.exchange(ctx, method, path, contentType, payload)
	return decode[T](raw, err, MsgNetwork, MsgGeneric)
}

func decode[T any](raw *rawResponse, err error, networkMsg, fallbackMsg string) Result[T] {
	if err != nil {
		return fail[T](&Error{Kind: KindNetwork, Message: networkMsg, Cause: err})
	}
	if raw.status < 200 || raw.status > 299 {
		return fail[T](statusError(raw, fallbackMsg))
	}

	var out T
	if len(bytes.TrimSpace(raw.body)) == 0 {
		return ok(out)
	}
	if err := json.Unmarshal(raw.body, &out); err != nil {
		return fail[T](&Error{
			Kind:    KindDecode,
			Status:  raw.status,
			Message: "unexpected response from server",
			Cause:   err,
		})
	}
	return ok(out)
}

// statusError turns a non-2xx response into an Error, using the backend's
// message when the body carries one.
func statusError(raw *rawResponse, fallback string) *Error {
	var body protocol.ErrorResponse
	if err := json.Unmarshal(raw.body, &body); err == nil && body.Text() != "" {
		return &Error{Kind: KindStatus, Status: raw.status, Message: body.Text()}
	}
	return &Error{Kind: KindUnparseable, Status: raw.status, Message: fallback}
}
