package client

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
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/meapi/internal/profile"
)

// DefaultBaseURL is the address of a locally running `meapi serve`.
const DefaultBaseURL = "http://127.0.0.1:8000"

const maxErrorBodySize = 64 << 10 // 64KB

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// Message returns the server-supplied detail, or fallback when the server
// sent none.
func (e *APIError) Message(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the profile HTTP API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// http.Client in use, so a client passed to WithHTTPClient is never changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client targeting baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, &out)
}

// ListProfiles fetches every profile.
func (c *Client) ListProfiles(ctx context.Context) ([]profile.Profile, error) {
	var out []profile.Profile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProfile fetches one profile by id.
func (c *Client) GetProfile(ctx context.Context, id int64) (profile.Profile, error) {
	var out profile.Profile
	if err := c.do(ctx, http.MethodGet, profilePath(id), nil, &out); err != nil {
		return profile.Profile{}, err
	}
	return out, nil
}

// CreateProfile posts a new profile and returns the stored record.
func (c *Client) CreateProfile(ctx context.Context, req profile.CreateRequest) (profile.Profile, error) {
	var out profile.Profile
	if err := c.do(ctx, http.MethodPost, "/profile", req, &out); err != nil {
		return profile.Profile{}, err
	}
	return out, nil
}

// UpdateProfile replaces the fields present in req on profile id.
func (c *Client) UpdateProfile(ctx context.Context, id int64, req profile.UpdateRequest) (profile.Profile, error) {
	var out profile.Profile
	if err := c.do(ctx, http.MethodPut, profilePath(id), req, &out); err != nil {
		return profile.Profile{}, err
	}
	return out, nil
}

// DeleteProfile deletes profile id.
func (c *Client) DeleteProfile(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, profilePath(id), nil, nil)
}

// SearchProfiles runs a free-text search. The query is sent as-is; callers
// decide whether blank queries are allowed.
func (c *Client) SearchProfiles(ctx context.Context, query string) ([]profile.Profile, error) {
	var out []profile.Profile
	path := "/profile/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopSkills fetches the limit most used skills with their counts.
func (c *Client) TopSkills(ctx context.Context, limit int) ([]profile.SkillCount, error) {
	var out []profile.SkillCount
	path := "/profile/skills/top?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func profilePath(id int64) string {
	return "/profile/" + strconv.FormatInt(id, 10)
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeAPIError builds an APIError, reading `detail` when the body is a
// JSON object carrying one. Validation errors carry a list in
// `detail`; the first message is used.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &body) != nil || len(body.Detail) == 0 {
		return apiErr
	}

	var s string
	if json.Unmarshal(body.Detail, &s) == nil {
		apiErr.Detail = s
		return apiErr
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body.Detail, &list) == nil && len(list) > 0 {
		apiErr.Detail = list[0].Msg
	}
	return apiErr
}
