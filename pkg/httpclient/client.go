package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client defines the HTTP client interface
type Client interface {
	Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error)
	GetJSON(ctx context.Context, url string, out any, opts ...RequestOption) error
	Close() error
}

// HTTPClient implements the Client interface
type HTTPClient struct {
	client *http.Client
	config Config
	logger *zap.Logger
}

// Config holds HTTP client configuration
type Config struct {
	Timeout             time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
	MaxRetryDelay       time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	UserAgent           string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	TotalTime  time.Duration
	Method     string
	URL        string
	Retries    int
}

// StatusError is returned for responses outside the 2xx range
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

// Error implements the error interface
func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// HTTPStatusCode exposes the response status code to error classifiers
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// RequestOption allows customization of individual requests
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers map[string]string
	timeout time.Duration
}

// WithHeader adds a header to the request
func WithHeader(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		cfg.headers[key] = value
	}
}

// WithTimeout sets a custom timeout for each attempt of the request
func WithTimeout(timeout time.Duration) RequestOption {
	return func(cfg *requestConfig) {
		cfg.timeout = timeout
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config Config, logger *zap.Logger) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	if config.MaxRetryDelay == 0 {
		config.MaxRetryDelay = 10 * time.Second
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "media-digest-go/1.0"
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
	}

	logger.Debug("HTTP client initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Int("retry_attempts", config.RetryAttempts))

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
		logger: logger,
	}
}

// Get performs a GET request with retries
func (c *HTTPClient) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.doRequest(ctx, http.MethodGet, url, nil, opts...)
}

// Post performs a POST request with retries
func (c *HTTPClient) Post(ctx context.Context, url string, body []byte, opts ...RequestOption) (*Response, error) {
	return c.doRequest(ctx, http.MethodPost, url, body, opts...)
}

// GetJSON performs a GET request and decodes the JSON body into out
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, url, append(opts, WithHeader("Accept", "application/json"))...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decoding response of %s: %w", redact(url), err)
	}
	return nil
}

// doRequest performs the request, retrying transport failures, 429 and 5xx
// responses with exponential backoff. Other 4xx responses fail immediately.
func (c *HTTPClient) doRequest(ctx context.Context, method, rawURL string, body []byte, opts ...RequestOption) (*Response, error) {
	reqConfig := &requestConfig{}
	for _, opt := range opts {
		opt(reqConfig)
	}

	response := &Response{
		Method: method,
		URL:    redact(rawURL),
	}
	startTime := time.Now()
	attempt := 0

	operation := func() error {
		if attempt > 0 {
			response.Retries = attempt
		}
		attempt++

		attemptCtx := ctx
		if reqConfig.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, reqConfig.timeout)
			defer cancel()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("User-Agent", c.config.UserAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for key, value := range reqConfig.headers {
			req.Header.Set(key, value)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("request failed: %w", err))
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		response.StatusCode = resp.StatusCode
		response.Status = resp.Status
		response.Headers = resp.Header
		response.Body = respBody

		c.logger.Debug("Request completed",
			zap.String("method", method),
			zap.String("url", response.URL),
			zap.Int("status_code", resp.StatusCode),
			zap.Int("attempt", attempt))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{
				Method:     method,
				URL:        response.URL,
				StatusCode: resp.StatusCode,
				Body:       respBody,
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.RetryDelay
	policy.MaxInterval = c.config.MaxRetryDelay
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying request",
			zap.String("method", method),
			zap.String("url", response.URL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.config.RetryAttempts)), ctx),
		notify)

	response.TotalTime = time.Since(startTime)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return response, statusErr
		}
		return response, err
	}

	return response, nil
}

// Close closes idle connections held by the underlying transport
func (c *HTTPClient) Close() error {
	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// redact hides credentials passed as query parameters
func redact(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	changed := false
	for _, key := range []string{"key", "api_key", "token"} {
		if query.Has(key) {
			query.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
