package backend

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
)

// ErrNotAuthenticated is returned by calls that need a session when none is set.
var ErrNotAuthenticated = errors.New("not signed in")

// APIError is a non-2xx response from the store.
type APIError struct {
	Status  int
	Path    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
}

// Client talks to the managed store's REST and auth endpoints.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	http      *http.Client
	userAgent string

	mu        sync.RWMutex
	session   *Session
	onSession func(Session)
}

const (
	defaultUserAgent = "shelf/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client for the project at apiURL using the public api key.
func NewClient(apiURL, apiKey string) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns the project URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// OnSessionChange registers fn to be called whenever the session is replaced
// by sign-in or refresh. Used to persist rotated tokens.
func (c *Client) OnSessionChange(fn func(Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSession = fn
}

type request struct {
	method string
	rel    *url.URL
	body   any
	dest   any
	prefer string
	anon   bool
}

func (c *Client) do(ctx context.Context, r request) error {
	reqURL := c.baseURL.ResolveReference(r.rel)

	var body io.Reader
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("apikey", c.apiKey)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	token := c.apiKey
	if !r.anon {
		token = c.AccessToken()
		if token == "" {
			return ErrNotAuthenticated
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Path: r.rel.Path, Message: errorMessage(resp.Body)}
	}
	if r.dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(r.dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a readable message out of the various error shapes the
// auth and REST services return.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 8<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, s := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		return nil, errors.New("api url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
