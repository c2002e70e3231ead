package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/promcheck/internal/config"
	"github.com/obsidianstack/promcheck/pkg/types"
)

const defaultUserAgent = "promcheck"

// discardLimit bounds how much of an error response body is drained so the
// connection can be reused.
const discardLimit = 4 << 10

// acceptExposition asks exporters for the plain-text exposition format.
var acceptExposition = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Options configures a Client.
type Options struct {
	// Timeout bounds each attempt, body read included.
	Timeout time.Duration

	// MaxBodyBytes caps the decoded payload size.
	MaxBodyBytes int64

	Auth config.AuthConfig
	TLS  config.TLSConfig

	// Policy is the retry policy; the zero value means DefaultPolicy().
	Policy Policy

	UserAgent string
}

// Response is a successfully fetched payload.
type Response struct {
	Body        []byte
	StatusCode  int
	ContentType string
	Attempts    int
}

// Client fetches URLs with bounded retries. A Client is safe for concurrent
// use; its connection pool is shared by all callers.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxBody   int64
	policy    Policy
	userAgent string
}

// New builds a Client for the given auth and TLS settings.
func New(opts Options) (*Client, error) {
	transport, err := buildTransport(opts.Auth, opts.TLS)
	if err != nil {
		return nil, fmt.Errorf("fetch: build transport: %w", err)
	}

	c := &Client{
		http:      &http.Client{Transport: transport},
		timeout:   opts.Timeout,
		maxBody:   opts.MaxBodyBytes,
		policy:    opts.Policy,
		userAgent: opts.UserAgent,
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultTimeout
	}
	if c.maxBody <= 0 {
		c.maxBody = config.DefaultMaxBodyBytes
	}
	if c.policy.MaxAttempts == 0 {
		c.policy = DefaultPolicy()
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c, nil
}

// CloseIdleConnections closes pooled connections that are not in use.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// Fetch retrieves an exporter payload. Any failure is returned as a
// critical issue instead of an error.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, *types.Issue) {
	resp, err := c.Get(ctx, url, acceptExposition)
	if err != nil {
		iss := IssueFor(err)
		return nil, &iss
	}
	return resp, nil
}

// Get performs a GET with the retry policy applied. Non-2xx responses that
// survive the retries are returned as *Error with KindStatus.
func (c *Client) Get(ctx context.Context, url, accept string) (*Response, error) {
	var last *Response
	outcome, attempts := c.policy.Do(ctx, func(ctx context.Context, _ int) Outcome {
		resp, o := c.attempt(ctx, url, accept)
		last = resp
		return o
	})

	if outcome.Err != nil {
		return nil, &Error{
			Kind:       classify(outcome.Err),
			URL:        url,
			StatusCode: outcome.StatusCode,
			Attempts:   attempts,
			Timeout:    c.timeout,
			Err:        outcome.Err,
		}
	}
	if outcome.StatusCode/100 != 2 {
		return nil, &Error{
			Kind:       KindStatus,
			URL:        url,
			StatusCode: outcome.StatusCode,
			Attempts:   attempts,
			Timeout:    c.timeout,
		}
	}
	last.Attempts = attempts
	return last, nil
}

// GetJSON fetches url and decodes the JSON body into v. Transport and
// status failures are returned as *Error; decode failures are not.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("fetch: decode %s: %w", url, err)
	}
	return nil
}

// attempt performs one bounded request.
func (c *Client) attempt(ctx context.Context, url, accept string) (*Response, Outcome) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, Outcome{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Outcome{Err: err}
	}
	defer resp.Body.Close()

	o := Outcome{StatusCode: resp.StatusCode}
	if resp.StatusCode/100 != 2 {
		o.RetryAfter = retryAfterDuration(resp.Header.Get("Retry-After"))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, discardLimit))
		return nil, o
	}

	body, err := c.readBody(resp)
	if err != nil {
		o.Err = err
		return nil, o
	}
	return &Response{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, o
}

// readBody reads at most maxBody decoded bytes from resp.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, c.maxBody)
	}
	return body, nil
}

// CheckContentType returns a warning when ct is neither text/plain nor
// text/html. The payload is still parsed.
func CheckContentType(ct string) *types.Issue {
	if strings.Contains(ct, "text/plain") || strings.Contains(ct, "text/html") {
		return nil
	}
	iss := types.Warning(types.CategoryHTTP, fmt.Sprintf("Unexpected Content-Type: %s", ct)).
		With("content_type", ct)
	return &iss
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// TLSConfig assembles the client TLS settings for auth and tlsOpts: the
// mTLS client certificate, the CA pool and certificate verification.
func TLSConfig(auth config.AuthConfig, tlsOpts config.TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if auth.CAFile != "" {
			caPEM, err := os.ReadFile(auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}
	return tlsCfg, nil
}

// buildTransport constructs the round tripper for the given auth and TLS
// settings.
func buildTransport(auth config.AuthConfig, tlsOpts config.TLSConfig) (http.RoundTripper, error) {
	tlsCfg, err := TLSConfig(auth, tlsOpts)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg
	return &authRoundTripper{base: base, auth: auth}, nil
}
