// Package api talks to the remote analysis backend over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://localhost:5000"

// JobIDHeader is the response header carrying the server-issued job id.
const JobIDHeader = "X-Job-ID"

const defaultStatusTimeout = 30 * time.Second

// Client is an HTTP client for the analysis backend.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	logger        *slog.Logger
	statusTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithStatusTimeout bounds each individual status or health request.
func WithStatusTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.statusTimeout = d
	}
}

// New builds a Client for baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL:       u,
		statusTimeout: defaultStatusTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	// Uploads include the whole server-side analysis, so the client itself
	// carries no timeout; callers bound it with a context.
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint appends path-escaped segments to the base URL.
func (c *Client) endpoint(elems ...string) string {
	segs := make([]string, len(elems))
	for i, e := range elems {
		segs[i] = url.PathEscape(e)
	}
	return c.baseURL.String() + "/" + strings.Join(segs, "/")
}
