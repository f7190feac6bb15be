// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package zhipu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Configuration constants for the BigModel API.
const (
	// DefaultBaseURL is the base URL for the BigModel v4 API.
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "glmchat/1.0"
)

// Default models for each generation mode.
const (
	DefaultChatModel  = "glm-4.5-flash"
	DefaultImageModel = "cogview-3-flash"
	DefaultVideoModel = "cogvideox-flash"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: newTransport(),
		Timeout:   DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by context.
	sharedStreamingClient = &http.Client{
		Transport: newTransport(),
	}
)

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// APIKeyFunc returns the current API key, or "" when none is configured.
type APIKeyFunc func() string

// StaticKey returns an APIKeyFunc that always yields key.
func StaticKey(key string) APIKeyFunc {
	return func() string { return key }
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the BigModel API.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	baseURL      string
	apiKey       APIKeyFunc
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a client that reads its key from apiKey on every call.
func NewClient(apiKey APIKeyFunc) *Client {
	if apiKey == nil {
		apiKey = StaticKey("")
	}
	return &Client{
		baseURL:      DefaultBaseURL,
		apiKey:       apiKey,
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		logger:       slog.Default(),
	}
}

// WithBaseURL sets a custom base URL.
func (c *Client) WithBaseURL(base string) *Client {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

// WithHTTPClient uses hc for both unary and streaming requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
		c.streamClient = hc
	}
	return c
}

// WithRateLimit limits outgoing requests to rps per second.
// A non-positive rps removes the limit.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured returns true if an API key is available.
func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.apiKey()) != ""
}

// =============================================================================
// OPERATIONS
// =============================================================================

// ChatStream opens a streaming chat completion.
// The caller must Close the returned stream.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	req.Stream = true
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.send(ctx, c.streamClient, httpReq)
	if err != nil {
		return nil, err
	}
	return NewChatStream(ctx, resp.Body).WithLogger(c.logger), nil
}

// SubmitAsyncChat submits a chat completion as an asynchronous task.
func (c *Client) SubmitAsyncChat(ctx context.Context, req ChatRequest) (*TaskSubmission, error) {
	req.Stream = false
	var out TaskSubmission
	if err := c.doJSON(ctx, http.MethodPost, "/async/chat/completions", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, fmt.Errorf("%w: task id missing", ErrInvalidResponse)
	}
	return &out, nil
}

// SubmitVideo submits a video generation task.
func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (*TaskSubmission, error) {
	var out TaskSubmission
	if err := c.doJSON(ctx, http.MethodPost, "/videos/generations", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, fmt.Errorf("%w: task id missing", ErrInvalidResponse)
	}
	return &out, nil
}

// GenerateImage generates images synchronously.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	var out ImageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/images/generations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchAsyncResult looks up the state of an asynchronous task.
func (c *Client) FetchAsyncResult(ctx context.Context, taskID string) (*AsyncResult, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: empty task id", ErrInvalidResponse)
	}
	var out AsyncResult
	path := "/async-result/" + url.PathEscape(taskID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds an authenticated request.
// It returns ErrMissingAPIKey before any I/O when no key is configured.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	key := strings.TrimSpace(c.apiKey())
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send waits for the rate limiter, performs the request and converts
// failures into the package error types. On success the caller owns the body.
func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		classified := classifyTransport(ctx, err)
		c.logger.Debug("api request failed", "method", req.Method, "path", req.URL.Path, "error", classified)
		return nil, classified
	}
	c.logger.Debug("api response", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return resp, nil
}

// doJSON performs a request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// readResponse reads the response body with a size limit.
//
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &TransportError{Kind: transportKind(err), Err: err}
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, &DecodeError{Err: fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)}
	}
	return body, nil
}
