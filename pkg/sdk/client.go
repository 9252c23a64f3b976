package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client is a geosuggest HTTP API client. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	obs     *observer
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geosuggest: invalid base URL %q", baseURL)
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    cfg.httpClient,
		timeout: cfg.timeout,
		obs:     obs,
	}, nil
}

// Suggest returns suggestions for q. An empty result is not an error.
func (c *Client) Suggest(ctx context.Context, m Mode, q string) (sugs []Suggestion, err error) {
	start := time.Now()
	defer func() { c.obs.observe("suggest", start, err) }()

	params := url.Values{"q": {q}}
	if m != "" {
		params.Set("mode", string(m))
	}
	var resp suggestResponse
	if err = c.do(ctx, http.MethodGet, "/suggest", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// Search returns the best feature for q. Returns ErrNotFound when nothing matches.
func (c *Client) Search(ctx context.Context, q string) (f Feature, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	err = c.do(ctx, http.MethodGet, "/search", url.Values{"q": {q}}, nil, &f)
	return f, err
}

// Select resolves a suggestion previously returned by Suggest.
func (c *Client) Select(ctx context.Context, s Suggestion) (sel Selection, err error) {
	start := time.Now()
	defer func() { c.obs.observe("select", start, err) }()

	err = c.do(ctx, http.MethodPost, "/select", nil, s, &sel)
	return sel, err
}

// Stats returns index and warm-up statistics.
func (c *Client) Stats(ctx context.Context) (st Statistics, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	err = c.do(ctx, http.MethodGet, "/stats", nil, nil, &st)
	return st, err
}

// Warmup starts a background warm-up and returns the state at the time of the request.
// Returns ErrWarmupInProgress if one is already running.
func (c *Client) Warmup(ctx context.Context) (snap Snapshot, err error) {
	start := time.Now()
	defer func() { c.obs.observe("warmup", start, err) }()

	err = c.do(ctx, http.MethodPost, "/warmup", nil, nil, &snap)
	return snap, err
}

// WarmupStatus returns the current warm-up state.
func (c *Client) WarmupStatus(ctx context.Context) (snap Snapshot, err error) {
	start := time.Now()
	defer func() { c.obs.observe("warmup_status", start, err) }()

	err = c.do(ctx, http.MethodGet, "/warmup", nil, nil, &snap)
	return snap, err
}

// Health returns the aggregated health. An unhealthy service is reported in the
// result, not as an error.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.do(ctx, http.MethodGet, "/health", nil, nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && h.Status != "" {
		return h, nil
	}
	return h, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do sends a request and decodes a JSON response into out.
// On 503 /health the body is still decoded so callers can see the report.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if path == "/health" && out != nil {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
