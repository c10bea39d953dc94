// Package apiclient talks to the inventory and sales backend over HTTP JSON.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// DefaultTimeout bounds a single backend round trip.
const DefaultTimeout = 15 * time.Second

// CallObserver receives the outcome of every backend call.
type CallObserver func(operation string, status int, elapsed time.Duration)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Observer   CallObserver
}

// Client wraps interactions with the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   CallObserver
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		observer:   opts.Observer,
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, dest any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, dest)
}

func (c *Client) post(ctx context.Context, op, path string, body, dest any) error {
	return c.do(ctx, op, http.MethodPost, path, nil, body, dest)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("apiclient: build %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, time.Since(start))
		c.logger.Warn("backend call failed", slog.String("op", op), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(op, resp.StatusCode, time.Since(start))

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrNetwork, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend rejected call", slog.String("op", op), slog.Int("status", resp.StatusCode))
		return &APIError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if dest == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(op, status, elapsed)
	}
}

func idPath(prefix string, id int64, suffix string) string {
	return prefix + "/" + strconv.FormatInt(id, 10) + suffix
}
