// Package client implements the QueryWeaver protocol client. It issues chat
// queries and confirmation requests against a QueryWeaver server, decodes the
// delimiter-framed streaming responses into typed messages and delivers them
// on a consumer-paced channel. One call owns one session, sessions share
// nothing but the underlying http.Client.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultInitTimeout bounds how long a session waits for the server to start
// responding. Only the initiation phase is bounded, streaming itself may run
// for as long as the server keeps producing.
const DefaultInitTimeout = 30 * time.Second

// Client talks to one QueryWeaver server. Safe for concurrent use, each
// streaming call gets its own session state.
type Client struct {
	baseURL     string
	client      *http.Client
	token       string
	initTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Note that this drops
// the default cookie jar unless the given client carries its own.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithToken sets the bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithInitTimeout overrides DefaultInitTimeout.
func WithInitTimeout(d time.Duration) Option {
	return func(c *Client) { c.initTimeout = d }
}

// WithLogger injects the logger used for session diagnostics. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the server at baseURL. The default http.Client
// carries a cookie jar so that session cookies set by the server are included
// on subsequent requests.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base url must not be empty")
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Jar: jar},
		initTimeout: DefaultInitTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %v", c.token))
	}
}

func validateGraphID(graphID string) error {
	if strings.TrimSpace(graphID) == "" {
		return errors.New("graph id must not be empty")
	}
	return nil
}
