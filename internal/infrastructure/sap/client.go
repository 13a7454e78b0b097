// Package sap is a client for the SAP Business One Service Layer.
package sap

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed size of one response page (32MB)
const maxResponseSize = 32 * 1024 * 1024

// maxPages stops a server that keeps returning the same next link
const maxPages = 10000

// Client errors
var (
	ErrUnauthorized    = errors.New("sap: unauthorized")
	ErrUnavailable     = errors.New("sap: service layer unavailable")
	ErrRequestFailed   = errors.New("sap: request failed")
	ErrInvalidResponse = errors.New("sap: invalid response")
	ErrNotFound        = errors.New("sap: not found")
)

// Client talks to the Service Layer. The session cookie lives in the client's
// cookie jar; a 401 triggers exactly one re-login before the request is retried.
type Client struct {
	config     *Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger

	loginMu  sync.Mutex
	loggedIn bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l.Named("sap")
	}
}

// WithHTTPClient replaces the HTTP client. A cookie jar is added if missing.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Service Layer client
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("sap: invalid base URL: %w", err)
	}

	c := &Client{
		config:  cfg,
		baseURL: base,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			// Service Layer installations commonly run on self-signed certificates.
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("sap: failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Login opens a Service Layer session
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{
		CompanyDB: c.config.CompanyDB,
		UserName:  c.config.Username,
		Password:  c.config.Password,
	})
	if err != nil {
		return fmt.Errorf("sap: failed to encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("Login"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sap: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode >= 400 {
		c.loggedIn = false
		return fmt.Errorf("%w: login rejected: %s", ErrUnauthorized, describe(resp.StatusCode, respBody))
	}
	c.loggedIn = true
	c.logger.Debug("Service Layer session opened", zap.String("company_db", c.config.CompanyDB))
	return nil
}

// ensureSession logs in unless a session is already open
func (c *Client) ensureSession(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.loginLocked(ctx)
}

// relogin drops the session and logs in again
func (c *Client) relogin(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	c.loggedIn = false
	return c.loginLocked(ctx)
}

// Get fetches path and decodes it into out. Collection responses are followed
// across every next link and their value arrays concatenated, so out must be a
// pointer to a slice for collections.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, c.resolve(path))
	if err != nil {
		return err
	}

	var page collection
	if err := json.Unmarshal(body, &page); err != nil || page.Value == nil {
		// Single entity
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	values := []json.RawMessage{page.Value}
	seen := map[string]bool{}
	for next := page.next(); next != ""; next = page.next() {
		if seen[next] || len(values) >= maxPages {
			return fmt.Errorf("%w: paging does not terminate at %s", ErrInvalidResponse, next)
		}
		seen[next] = true

		body, err := c.do(ctx, c.resolve(next))
		if err != nil {
			return err
		}
		page = collection{}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		values = append(values, page.Value)
	}

	return mergeValues(values, out)
}

// mergeValues decodes each page's value array and concatenates them into out
func mergeValues(pages []json.RawMessage, out any) error {
	all := make([]json.RawMessage, 0)
	for _, raw := range pages {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("%w: value is not an array: %v", ErrInvalidResponse, err)
		}
		all = append(all, rows...)
	}
	merged, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal(merged, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// do performs a GET with the session cookie, re-logging in once on 401
func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	status, body, err := c.doRequest(ctx, target)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.logger.Info("Service Layer session expired, logging in again")
		if err := c.relogin(ctx); err != nil {
			return nil, err
		}
		status, body, err = c.doRequest(ctx, target)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, describe(status, body))
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, describe(status, body))
	case status >= 400:
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, describe(status, body))
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("sap: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", fmt.Sprintf("odata.maxpagesize=%d", c.config.PageSize))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("sap: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// resolve turns a service-relative path or next link into an absolute URL.
// Next links may be absolute, host-relative or relative to the service root.
func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + strings.TrimLeft(path, "/")
	}
	return c.baseURL.ResolveReference(ref).String()
}

// describe renders an error response, preferring the Service Layer message
func describe(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message.Value != "" {
		return fmt.Sprintf("HTTP %d: %s", status, e.Error.Message.Value)
	}
	return fmt.Sprintf("HTTP %d", status)
}

// query encodes OData system query options. Spaces become %20 since the
// Service Layer does not read '+' as a space.
func query(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + strings.ReplaceAll(params.Encode(), "+", "%20")
}
