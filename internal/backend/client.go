package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// TokenSource yields the bearer token for the caller bound to ctx.
// An empty token sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SessionInvalidator is told when the backend rejected the caller's token.
type SessionInvalidator interface {
	Invalidate(ctx context.Context) error
}

type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	invalidator SessionInvalidator
	log         *zap.Logger
}

type Option func(*Client)

// WithHTTPClient uses a copy of hc, so later options such as WithTimeout
// never modify a client shared with other callers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithInvalidator(inv SessionInvalidator) Option {
	return func(c *Client) { c.invalidator = inv }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  StaticToken(""),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, query, "", nil, out)
	return err
}

// GetOptional reports false instead of failing when the backend answers
// 204 or 404.
func (c *Client) GetOptional(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, path, query, "", nil, out)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.NotFound() {
			return false, nil
		}
		return false, err
	}
	return status != http.StatusNoContent, nil
}

func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return unexpectedError(fmt.Errorf("marshal request body: %w", err))
	}
	_, err = c.do(ctx, http.MethodPost, path, nil, "application/json", payload, out)
	return err
}

func (c *Client) PostText(ctx context.Context, path, text string, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, "text/plain", []byte(text), out)
	return err
}

func (c *Client) PatchJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return unexpectedError(fmt.Errorf("marshal request body: %w", err))
	}
	_, err = c.do(ctx, http.MethodPatch, path, nil, "application/json", payload, out)
	return err
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, "", nil, out)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, out any) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, unexpectedError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, unexpectedError(fmt.Errorf("load session token: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return 0, unexpectedError(ctxErr)
		}
		c.log.Warn("backend unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, unavailableError(err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := serverError(resp.StatusCode, raw)
		if apiErr.Unauthorized() && c.invalidator != nil {
			if invErr := c.invalidator.Invalidate(ctx); invErr != nil {
				c.log.Warn("session invalidation failed", zap.Error(invErr))
			}
		}
		return resp.StatusCode, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, schemaError(fmt.Errorf("decode %s %s: %w", method, path, err))
	}
	if err := checkSchema(out); err != nil {
		return resp.StatusCode, schemaError(fmt.Errorf("validate %s %s: %w", method, path, err))
	}

	return resp.StatusCode, nil
}
