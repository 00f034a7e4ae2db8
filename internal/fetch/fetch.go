// Package fetch downloads remote media used as publish inputs, such as
// featured images referenced by URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; Autopublisher/1.0)"

// DefaultMaxBytes caps the size of a downloaded body.
const DefaultMaxBytes int64 = 25 << 20

// Result holds the downloaded body and its metadata.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Error represents an error during a download.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	MaxBytes  int64
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
	// Limiter paces requests per host when set.
	Limiter *HostLimiter
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		MaxBytes:  DefaultMaxBytes,
	}
}

// Bytes downloads the body at urlStr. On a non-2xx status the Result is
// returned together with an *Error.
func Bytes(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fail := func(msg string, cause error) *Error {
		return &Error{URL: urlStr, Message: msg, Cause: cause}
	}

	target, err := url.Parse(urlStr)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fail("invalid URL", err)
	}
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(ctx, target.Host); err != nil {
			return nil, fail("rate limiter wait failed", err)
		}
	}

	req, err := opts.request(ctx, urlStr)
	if err != nil {
		return nil, fail("failed to create request", err)
	}
	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, fail("HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fail("failed to read response body", err)
	}

	result := &Result{
		URL:         urlStr,
		Body:        body,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		StatusCode:  resp.StatusCode,
	}
	switch {
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return result, fail(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	case int64(len(body)) > limit:
		return nil, fail(fmt.Sprintf("body exceeds %d bytes", limit), nil)
	}
	return result, nil
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: o.Timeout}
}

func (o *Options) request(ctx context.Context, urlStr string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	ua := o.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for key, value := range o.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// mediaType strips parameters such as charset from a Content-Type header.
func mediaType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
