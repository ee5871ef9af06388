// Package kadi is a client for the Kadi4Mat records API.
package kadi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/kadisync/internal/apperr"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Options configures a Client.
type Options struct {
	Host      string
	Token     string
	Timeout   time.Duration
	VerifyTLS bool
	// Transport carries every request. Nil means a clone of
	// http.DefaultTransport honouring VerifyTLS.
	Transport http.RoundTripper
}

// Client talks to one Kadi4Mat instance with a personal access token.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client. A missing host or token yields apperr.ErrNotConfigured.
func New(opts Options) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if host == "" || strings.TrimSpace(opts.Token) == "" {
		return nil, apperr.ErrNotConfigured
	}
	base, err := url.Parse(host)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("kadi: invalid host %q: %w", opts.Host, apperr.ErrValidation)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if !opts.VerifyTLS {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}

	return &Client{
		base:  base,
		token: opts.Token,
		http:  &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Host returns the instance base URL.
func (c *Client) Host() string { return c.base.String() }

// RecordURL is the web page of a record.
func (c *Client) RecordURL(id int64) string {
	return c.base.JoinPath("records", strconv.FormatInt(id, 10)).String()
}

// CreateRecord creates a record.
func (c *Client) CreateRecord(ctx context.Context, p RecordParams) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, "/api/records", p, &rec); err != nil {
		return nil, fmt.Errorf("kadi: create record: %w", err)
	}
	return &rec, nil
}

// UpdateRecord patches the record with the given id.
func (c *Client) UpdateRecord(ctx context.Context, id int64, p RecordParams) (*Record, error) {
	var rec Record
	path := "/api/records/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPatch, path, p, &rec); err != nil {
		return nil, fmt.Errorf("kadi: update record %d: %w", id, err)
	}
	return &rec, nil
}

// GetCurrentUser returns the owner of the access token.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("kadi: current user: %w", err)
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
