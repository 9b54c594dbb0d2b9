package homeassistant

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
	"sync"
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

const maxArtworkBytes = 8 << 20

// ErrNotConfigured is returned when the URL or token is missing.
var ErrNotConfigured = errors.New("home assistant not configured")

// Client talks to the Home Assistant REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu        sync.RWMutex
	cache     []hass.EntityState
	cacheTime time.Time
}

// Options configures a Client.
type Options struct {
	URL      string
	Token    string
	Timeout  time.Duration
	CacheTTL time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient builds a REST client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSuffix(strings.TrimSpace(opts.URL), "/")
	if base == "" || opts.Token == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    base,
		token:      opts.Token,
		httpClient: httpClient,
		cacheTTL:   opts.CacheTTL,
	}, nil
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// States returns every entity state, served from a short-lived cache.
func (c *Client) States(ctx context.Context) ([]hass.EntityState, error) {
	c.mu.RLock()
	if c.cacheTTL > 0 && c.cache != nil && time.Since(c.cacheTime) < c.cacheTTL {
		res := c.cache
		c.mu.RUnlock()
		return res, nil
	}
	c.mu.RUnlock()

	var states []hass.EntityState
	if err := c.getJSON(ctx, "/api/states", &states); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache = states
	c.cacheTime = time.Now()
	c.mu.Unlock()
	return states, nil
}

// State returns one entity state.
func (c *Client) State(ctx context.Context, entityID string) (hass.EntityState, error) {
	var state hass.EntityState
	if err := c.getJSON(ctx, "/api/states/"+url.PathEscape(entityID), &state); err != nil {
		return hass.EntityState{}, err
	}
	return state, nil
}

// Invalidate drops the cached states.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// CallService posts one service call. The cache is dropped so the next
// read observes its effect.
func (c *Client) CallService(ctx context.Context, call hass.ServiceCall) error {
	if call.Domain == "" || call.Service == "" {
		return fmt.Errorf("invalid service call %q", call.Name())
	}
	data := call.Data
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal service data: %w", err)
	}

	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(call.Domain), url.PathEscape(call.Service))
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", call.Name(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.Invalidate()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("call %s: %w", call.Name(), statusError(resp))
	}
	return nil
}

// ResolveURL makes a picture reference absolute. Relative references are
// resolved against the server root.
func (c *Client) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// FetchBinary fetches a resource and returns its body and content type.
// The bearer token is only sent to the Home Assistant host.
func (c *Client) FetchBinary(ctx context.Context, ref string) ([]byte, string, error) {
	target := c.ResolveURL(ref)
	var req *http.Request
	var err error
	if c.sameHost(target) {
		req, err = c.newRequest(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: %w", target, statusError(resp))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxArtworkBytes {
		return nil, "", fmt.Errorf("fetch %s: body exceeds %d bytes", target, maxArtworkBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: %w", path, statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) sameHost(target string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, u.Host)
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HA API error: %d", e.Code)
	}
	return fmt.Sprintf("HA API error: %d: %s", e.Code, e.Body)
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
