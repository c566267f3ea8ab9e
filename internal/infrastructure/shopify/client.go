package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

const (
	// AccessTokenHeader carries the store access token
	AccessTokenHeader = "X-Shopify-Access-Token"
	// DefaultAPIVersion is the Admin API version used when none is configured
	DefaultAPIVersion = "2024-10"

	maxResponseSize = 10 * 1024 * 1024 // 10MB
)

// Config holds Admin API client settings
type Config struct {
	// APIVersion is the Admin API version path segment
	APIVersion string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// BaseURL replaces "https://{shop}" when set
	BaseURL string
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		APIVersion: DefaultAPIVersion,
		Timeout:    30 * time.Second,
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// APIError is a non-2xx Admin API response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("shopify: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 512))
}

// Unwrap lets callers match integration.ErrPlatformRequestFailed
func (e *APIError) Unwrap() error {
	return integration.ErrPlatformRequestFailed
}

// IsNotFound returns true for HTTP 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRateLimited returns true for HTTP 429
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// IsRateLimited reports whether err is an APIError with status 429
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRateLimited()
}

// GraphQLErrorItem is one entry of a GraphQL errors array
type GraphQLErrorItem struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Ext     map[string]any `json:"extensions,omitempty"`
}

// GraphQLError is returned when a GraphQL response carries top-level errors
type GraphQLError struct {
	Errors []GraphQLErrorItem
}

// Error implements the error interface
func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return "shopify: graphql: " + strings.Join(msgs, "; ")
}

// Unwrap lets callers match integration.ErrPlatformRequestFailed
func (e *GraphQLError) Unwrap() error {
	return integration.ErrPlatformRequestFailed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client is an authenticated Admin API transport for one store. Every call
// passes through the rate limiter. The client does not retry and does not
// enforce idempotency.
type Client struct {
	shop       string
	token      string
	apiVersion string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *zap.Logger
}

// NewClient creates a client for shop authenticated with accessToken
func NewClient(shop, accessToken string, config Config, limiter *RateLimiter, logger *zap.Logger) *Client {
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://" + shop
	}
	return &Client{
		shop:       shop,
		token:      accessToken,
		apiVersion: config.APIVersion,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		logger:     logger.With(zap.String("shop", shop)),
	}
}

// Shop returns the store domain
func (c *Client) Shop() string {
	return c.shop
}

func (c *Client) endpoint(path string) string {
	if strings.HasPrefix(path, c.baseURL+"/") {
		return path
	}
	return fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.apiVersion, strings.TrimLeft(path, "/"))
}

// Get performs a GET and decodes the response into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, nil, out)
	return err
}

// Post performs a POST with a JSON body and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, body, out)
	return err
}

// Put performs a PUT with a JSON body and decodes the response into out
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPut, path, body, out)
	return err
}

// Delete performs a DELETE
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// GetPage performs a GET and returns the next page URL from the Link header,
// or "" on the last page
func (c *Client) GetPage(ctx context.Context, path string, out any) (string, error) {
	header, err := c.do(ctx, http.MethodGet, path, nil, out)
	if err != nil {
		return "", err
	}
	return NextPageURL(header.Get("Link")), nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage    `json:"data"`
	Errors []GraphQLErrorItem `json:"errors"`
}

// GraphQL posts a query or mutation and decodes its data into out
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	var resp graphQLResponse
	if _, err := c.do(ctx, http.MethodPost, "graphql.json", graphQLRequest{Query: query, Variables: variables}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return &GraphQLError{Errors: resp.Errors}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, c.shop); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to read response: %w", err)
	}

	c.logger.Debug("Shopify request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if c.limiter != nil {
		if err := c.limiter.Observe(ctx, c.shop, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
		}
	}
	return resp.Header, nil
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="?next"?`)

// NextPageURL extracts the rel="next" URL of a Link header
func NextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if m := linkNextPattern.FindStringSubmatch(strings.TrimSpace(part)); m != nil {
			return m[1]
		}
	}
	return ""
}
