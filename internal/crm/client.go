// Package crm talks to the advisory CRM backend on behalf of the bot.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/crmbot/core/logger"
)

const (
	// DefaultSecretHeader carries the shared bot secret.
	DefaultSecretHeader = "X-Bot-Secret"
	defaultTimeout      = 10 * time.Second
	maxBodySnippet      = 2048
)

// ErrNotConfigured is returned when the client lacks a base URL or secret.
var ErrNotConfigured = errors.New("crm: base url/secret are not set")

// APIError reports a non-2xx answer whose body is not a backend envelope.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Code exposes a stable error code for handler summaries.
func (e *APIError) Code() string { return fmt.Sprintf("CRM_HTTP_%d", e.StatusCode) }

// Client calls the bot endpoints of the CRM backend.
type Client struct {
	BaseURL      string
	Secret       string
	SecretHeader string
	HTTPClient   *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// WithSecretHeader overrides the header name carrying the secret.
func WithSecretHeader(name string) Option {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.SecretHeader = name
		}
	}
}

// NewClient builds a Client for the backend at baseURL.
func NewClient(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Secret:       secret,
		SecretHeader: DefaultSecretHeader,
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserInfo checks whether a platform user is linked to a CRM account.
func (c *Client) UserInfo(ctx context.Context, platformUserID string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	path := "/api/bot/user-info/" + PlatformTelegram + "/" + url.PathEscape(platformUserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkAccount binds a platform identity to the CRM account with the given credentials.
func (c *Client) LinkAccount(ctx context.Context, req LinkRequest) (*LinkResponse, error) {
	if req.Platform == "" {
		req.Platform = PlatformTelegram
	}
	var out LinkResponse
	if err := c.do(ctx, http.MethodPost, "/api/bot/link-account", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLead posts a lead captured by the bot.
func (c *Client) CreateLead(ctx context.Context, req LeadRequest) (*LeadResponse, error) {
	if req.Platform == "" {
		req.Platform = PlatformTelegram
	}
	var out LeadResponse
	if err := c.do(ctx, http.MethodPost, "/api/bot/leads", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches lead statistics of a linked platform user.
func (c *Client) Stats(ctx context.Context, platformUserID string) (*StatsResponse, error) {
	var out StatsResponse
	path := "/api/bot/stats/" + PlatformTelegram + "/" + url.PathEscape(platformUserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" || strings.TrimSpace(c.Secret) == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("crm: encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("crm: build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set(c.SecretHeader, c.Secret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	status := 0
	defer func() {
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("method", method),
			slog.String("path", logPath(path)),
			slog.String("request_id", requestID),
			slog.Duration("duration", logger.Took(start)),
		}
		if status != 0 {
			attrs = append(attrs, slog.Int("http_code", status))
		}
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
		logger.LogEvent(ctx, logger.CRM, level, "crm.call", attrs...)
	}()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: %s %s: %w", method, logPath(path), err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("crm: read body: %w", err)
	}

	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode/100 == 2 {
		if decodeErr != nil {
			return fmt.Errorf("crm: decode %s: %w", logPath(path), decodeErr)
		}
		return nil
	}
	// Business failures arrive as non-2xx with the usual envelope.
	if decodeErr == nil && hasEnvelope(raw) {
		return nil
	}
	snippet := raw
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet]
	}
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

func hasEnvelope(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

// logPath drops the platform user id from per-user paths.
func logPath(path string) string {
	for _, prefix := range []string{"/api/bot/user-info/", "/api/bot/stats/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + PlatformTelegram + "/:id"
		}
	}
	return path
}
