// Package fetch provides the pooled HTTP client every scrape attempt
// goes through: per-platform timeouts, per-platform rate limiting,
// redirect resolution and transport-level retries with backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediagrab/pkg/config"
	scrapeerr "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
)

const maxRedirects = 10

// maxBodySize bounds how much of a page is read. Social post pages are
// large but not unbounded; 8 MiB covers the biggest observed documents.
const maxBodySize = 8 << 20

// Options configures a single fetch.
type Options struct {
	// Credential is a cookie header fragment (e.g. "sessionid=abc") that
	// authenticates the request. Empty means anonymous.
	Credential string
	// Headers are merged over the platform defaults.
	Headers map[string]string
	// Timeout overrides the platform's fetch timeout when positive.
	Timeout time.Duration
}

// Response is the outcome of a completed fetch.
type Response struct {
	Body       []byte
	StatusCode int
	// FinalURL is the URL after following redirects.
	FinalURL   string
	Redirected bool
}

// Client is a pooled HTTP client shared by all concurrent scrape requests.
type Client struct {
	transport *http.Transport
	cfg       *config.Config
	limiters  *ratelimit.PerKey
	log       logger.Logger
}

// New creates a fetch client from the service configuration.
func New(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		cfg: cfg,
		limiters: ratelimit.NewPerKey(func(platform string) ratelimit.Limiter {
			rpm := cfg.Platform(platform).RequestsPerMinute
			if rpm <= 0 {
				rpm = 30
			}
			return ratelimit.NewTokenBucket(rpm, time.Minute)
		}),
		log: log,
	}
}

// errNonHTTPRedirect is returned from CheckRedirect when a platform
// redirects into an app deep link (intent://, fb://, snssdk://).
type errNonHTTPRedirect struct {
	target *url.URL
}

func (e *errNonHTTPRedirect) Error() string {
	return fmt.Sprintf("redirect to non-HTTP scheme %q", e.target.Scheme)
}

// Fetch performs a GET with the platform's defaults, following redirects
// and retrying transport failures with jittered backoff. Each retry
// attempt gets its own timeout budget.
func (c *Client) Fetch(ctx context.Context, platform models.Platform, rawURL string, opts Options) (*Response, error) {
	pc := c.cfg.Platform(string(platform))

	if err := c.limiters.Get(string(platform)).Wait(ctx); err != nil {
		return nil, scrapeerr.Wrap(scrapeerr.KindTransport, "rate limit wait cancelled", err)
	}

	timeout := pc.FetchTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var resp *Response
	err := retry.Do(ctx, func() error {
		var attemptErr error
		resp, attemptErr = c.fetchOnce(ctx, pc, rawURL, opts, timeout, 0)
		return attemptErr
	}, &retry.Config{
		MaxAttempts: c.cfg.Retry.MaxAttempts,
		Backoff:     retry.FromConfig(&c.cfg.Retry),
		RetryIf:     retry.DefaultRetryIf,
		Logger:      c.log,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Resolve follows a short URL to its final location, using the shorter
// resolve timeout. The body is discarded.
func (c *Client) Resolve(ctx context.Context, platform models.Platform, rawURL string, opts Options) (string, error) {
	opts.Timeout = c.cfg.Platform(string(platform)).ResolveTimeout
	resp, err := c.Fetch(ctx, platform, rawURL, opts)
	if err != nil {
		return "", err
	}
	return resp.FinalURL, nil
}

// fetchOnce performs a single attempt, unwrapping at most one level of
// app-scheme redirect (depth guards recursion).
func (c *Client) fetchOnce(ctx context.Context, pc config.PlatformConfig, rawURL string, opts Options, timeout time.Duration, depth int) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, scrapeerr.Wrap(scrapeerr.KindInvalidInput, "failed to build request", err)
	}
	c.decorate(req, pc, opts)

	redirected := false
	client := &http.Client{
		Transport: c.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if s := req.URL.Scheme; s != "http" && s != "https" {
				return &errNonHTTPRedirect{target: req.URL}
			}
			redirected = true
			return nil
		},
	}

	start := time.Now()
	c.log.DebugWithFields("sending HTTP request", map[string]interface{}{
		"url":     rawURL,
		"timeout": timeout,
	})

	httpResp, err := client.Do(req)
	if err != nil {
		var nonHTTP *errNonHTTPRedirect
		if errors.As(err, &nonHTTP) && depth == 0 {
			if fallback := unwrapAppRedirect(nonHTTP.target); fallback != "" {
				c.log.DebugWithFields("unwrapped app-scheme redirect", map[string]interface{}{
					"scheme":   nonHTTP.target.Scheme,
					"fallback": fallback,
				})
				return c.fetchOnce(ctx, pc, fallback, opts, timeout, depth+1)
			}
		}
		return nil, scrapeerr.Wrap(scrapeerr.KindTransport, "request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, scrapeerr.Wrap(scrapeerr.KindTransport, "failed to read response body", err)
	}

	c.log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   httpResp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start),
	})

	if err := checkStatus(httpResp.StatusCode); err != nil {
		return nil, err
	}

	finalURL := rawURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return &Response{
		Body:       body,
		StatusCode: httpResp.StatusCode,
		FinalURL:   finalURL,
		Redirected: redirected || finalURL != rawURL,
	}, nil
}

func (c *Client) decorate(req *http.Request, pc config.PlatformConfig, opts Options) {
	req.Header.Set("User-Agent", pc.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if opts.Credential != "" {
		existing := req.Header.Get("Cookie")
		if existing != "" {
			req.Header.Set("Cookie", existing+"; "+opts.Credential)
		} else {
			req.Header.Set("Cookie", opts.Credential)
		}
	}
}

// checkStatus maps HTTP status codes onto the error taxonomy.
func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return scrapeerr.Newf(scrapeerr.KindAuthRequired, "status %d", code).WithIssue(scrapeerr.IssueLoginWall)
	case code == http.StatusNotFound || code == http.StatusGone:
		return scrapeerr.Newf(scrapeerr.KindContentUnavailable, "status %d", code).WithIssue(scrapeerr.IssueDeleted)
	case scrapeerr.IsRetryableStatusCode(code):
		return scrapeerr.Newf(scrapeerr.KindTransport, "status %d", code)
	default:
		return scrapeerr.Newf(scrapeerr.KindContentUnavailable, "unexpected status %d", code)
	}
}

// unwrapAppRedirect recovers an HTTPS URL from an app deep link.
// Android intent links carry an explicit browser fallback; everything
// else falls back to swapping the scheme when the host looks like a
// web host.
func unwrapAppRedirect(target *url.URL) string {
	if target.Scheme == "intent" {
		// intent://host/path#Intent;...;S.browser_fallback_url=<enc>;end
		frag := target.Fragment
		for _, part := range strings.Split(frag, ";") {
			if v, ok := strings.CutPrefix(part, "S.browser_fallback_url="); ok {
				if decoded, err := url.QueryUnescape(v); err == nil {
					return decoded
				}
			}
		}
		if target.Host != "" {
			return "https://" + target.Host + target.Path
		}
		return ""
	}
	if q := target.Query().Get("url"); q != "" {
		return q
	}
	if target.Host != "" && strings.Contains(target.Host, ".") {
		return "https://" + target.Host + target.Path
	}
	return ""
}
