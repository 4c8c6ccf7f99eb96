// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch wraps every outbound request with failure classification,
// bounded retry, and rate-limit awareness. All source adapters share one
// policy so retry semantics are uniform and testable apart from any
// adapter's parsing logic.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/content-aggregator/pkg/types"
)

// Kind classifies a request failure.
type Kind int

const (
	// KindTransient covers timeouts, connection errors, and 5xx
	// responses; retried with backoff.
	KindTransient Kind = iota

	// KindRateLimited covers explicit upstream backoff signals (429);
	// retried honoring the upstream wait hint when present.
	KindRateLimited

	// KindFatal covers authentication and other non-retryable failures;
	// returned immediately and terminates that source only.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate-limited"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the client. Exhausted marks an
// originally retryable failure that used up its attempts; the adapter
// treats it the same as a fatal failure for its own source.
type Error struct {
	Kind       Kind
	URL        string
	Status     int
	RetryAfter time.Duration
	Attempts   int
	Exhausted  bool
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failure fetching %s", e.Kind, e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Exhausted {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Terminal reports whether the failure ends the calling adapter's
// contribution: either fatal outright or retryable but exhausted.
func (e *Error) Terminal() bool { return e.Kind == KindFatal || e.Exhausted }

// Response is the successful result of a request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// Client executes requests with the shared retry policy.
type Client struct {
	HTTP        *http.Client
	MaxAttempts int
	BaseDelay   time.Duration
	UserAgent   string
	Logger      *zap.Logger
}

// NewClient builds a Client from the shared HTTP and retry configuration.
// Zero config fields fall back to defaults (3 attempts, 2s base delay,
// 30s timeout).
func NewClient(httpCfg types.HTTPConfig, retry types.RetryConfig, logger *zap.Logger) *Client {
	timeout := httpCfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTP:        &http.Client{Timeout: timeout},
		MaxAttempts: retry.MaxAttempts,
		BaseDelay:   retry.BaseDelay,
		UserAgent:   httpCfg.UserAgent,
		Logger:      logger,
	}
}

// Get issues a GET for rawURL with optional query params and headers.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, header http.Header) (*Response, error) {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindFatal, URL: rawURL, Err: err}
	}
	return c.do(req, header)
}

// PostForm issues a form-encoded POST, used for token exchanges.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindFatal, URL: rawURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, header)
}

// do runs the request with bounded retry. Transient and rate-limited
// failures are retried with exponentially increasing delay; the
// rate-limit wait hint is honored when longer than the computed backoff.
// Fatal failures return immediately. The client never retries
// indefinitely: after exhausting attempts the last failure is returned
// with Exhausted set.
func (c *Client) do(req *http.Request, header http.Header) (*Response, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := c.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	var last *Error
	for attempt := 1; ; attempt++ {
		attemptReq := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, &Error{Kind: KindFatal, URL: req.URL.String(), Err: err}
			}
			attemptReq.Body = body
		}
		resp, err := c.attempt(attemptReq)
		if err == nil {
			return resp, nil
		}

		// Caller cancellation is not a source failure; surface it as-is.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}

		var fe *Error
		if !errors.As(err, &fe) {
			return nil, err
		}
		fe.Attempts = attempt
		if fe.Kind == KindFatal {
			return nil, fe
		}
		last = fe

		if attempt >= maxAttempts {
			last.Exhausted = true
			return nil, last
		}

		wait := baseDelay << (attempt - 1)
		if fe.Kind == KindRateLimited && fe.RetryAfter > wait {
			wait = fe.RetryAfter
		}
		c.Logger.Warn("request failed, retrying",
			zap.String("url", req.URL.String()),
			zap.String("kind", fe.Kind.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait", wait))

		if err := Wait(req.Context(), wait); err != nil {
			return nil, err
		}
	}
}

// attempt executes the request once and classifies any failure.
func (c *Client) attempt(req *http.Request) (*Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, &Error{Kind: classifyNetErr(err), URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, URL: req.URL.String(), Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindRateLimited,
			URL:        req.URL.String(),
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return nil, &Error{Kind: KindTransient, URL: req.URL.String(), Status: resp.StatusCode}
	default:
		// Remaining 4xx (401, 403, 404, ...) will not improve on retry.
		return nil, &Error{Kind: KindFatal, URL: req.URL.String(), Status: resp.StatusCode}
	}
}

// classifyNetErr maps transport-level errors: timeouts and connection
// failures are transient, everything else fatal.
func classifyNetErr(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindTransient
	}
	return KindFatal
}

// parseRetryAfter reads a Retry-After header value, either delta-seconds
// or an HTTP date. Unparseable values yield zero.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Wait sleeps for d or until ctx is done, returning ctx.Err() in the
// latter case. Adapters use it for politeness delays as well.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
