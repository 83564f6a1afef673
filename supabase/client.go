// Package supabase talks to a hosted Supabase project: PostgREST for the
// relief tables and GoTrue for phone/OTP sign in.
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/store"
	"github.com/tidwall/gjson"
)

var logg = logger.NewLogger()

type Config struct {
	URL     string `mapstructure:"url" validate:"required,url"`
	AnonKey string `mapstructure:"anonKey" validate:"required"`
}

// Client is a PostgREST backed store.Store.
type Client struct {
	restURL    string
	authURL    string
	anonKey    string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken func(ctx context.Context) string
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}

	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid supabase url: %v", err)
	}

	return &Client{
		restURL:    baseURL + "/rest/v1",
		authURL:    baseURL + "/auth/v1",
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{},
	}, nil
}

// SetAccessTokenSource makes table requests run as the signed in user, so row
// level security applies to them. Requests fall back to the anon key when fn
// returns "".
func (c *Client) SetAccessTokenSource(fn func(ctx context.Context) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = fn
}

type response struct {
	body   []byte
	header http.Header
	status int
}

// do sends a request with the project's api key; bearer overrides the anon key
// in the Authorization header when set.
func (c *Client) do(ctx context.Context, method string, url string, body []byte, headers map[string]string, bearer string) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	if bearer == "" {
		bearer = c.anonKey
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v %v: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &response{body: respBody, header: resp.Header, status: resp.StatusCode}, nil
}

func (c *Client) userToken(ctx context.Context) string {
	c.mu.RLock()
	fn := c.accessToken
	c.mu.RUnlock()

	if fn == nil {
		return ""
	}
	return fn(ctx)
}

// parseStoreError turns a PostgREST error body into a *store.Error, keeping
// its code so callers can tell no-rows and unique violations apart.
func parseStoreError(body []byte, status int) *store.Error {
	if !gjson.ValidBytes(body) {
		return &store.Error{Message: strings.TrimSpace(string(body)), Status: status}
	}

	result := gjson.ParseBytes(body)
	return &store.Error{
		Code:    result.Get("code").String(),
		Message: firstString(result, "message", "msg", "error"),
		Details: result.Get("details").String(),
		Hint:    result.Get("hint").String(),
		Status:  status,
	}
}

func firstString(result gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := result.Get(path); value.Exists() && value.String() != "" {
			return value.String()
		}
	}
	return ""
}
