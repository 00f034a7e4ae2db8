// Package publishing implements the platform publishers, the registry that
// constructs them, the retry wrapper and the publishing service used by the
// HTTP API and the workflow runner.
package publishing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/autopublisher/internal/fetch"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/types"
)

// Publisher posts content to one platform.
//
// Publish performs exactly one attempt and reports remote failures as a
// failed response rather than an error. Implementations hold no per-call
// mutable state and are safe for concurrent use.
type Publisher interface {
	Platform() types.PlatformType
	Publish(ctx context.Context, req *types.PublicationRequest) *types.PublicationResponse
	ValidateCredentials(ctx context.Context) bool
	DeletePost(ctx context.Context, postID string) bool
}

// DefaultHTTPTimeout bounds every platform API call.
const DefaultHTTPTimeout = 60 * time.Second

// Options carries the shared dependencies handed to publisher constructors.
type Options struct {
	HTTPClient     *http.Client
	Logger         *slog.Logger
	InstagramGrace time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it to avoid real waits.
	Sleep        func(ctx context.Context, d time.Duration) error
	FetchOptions *fetch.Options
}

// Option mutates Options.
type Option func(*Options)

// WithHTTPClient sets the client used for platform API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithInstagramGrace sets the wait between creating and publishing a container.
func WithInstagramGrace(d time.Duration) Option {
	return func(o *Options) { o.InstagramGrace = d }
}

// WithSleep replaces the wait primitive.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Options) { o.Sleep = fn }
}

// WithFetchOptions sets the options used to download featured images.
func WithFetchOptions(f *fetch.Options) Option {
	return func(o *Options) { o.FetchOptions = f }
}

func newOptions(opts ...Option) Options {
	o := Options{
		InstagramGrace: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if o.Logger == nil {
		o.Logger = observability.Discard()
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	if o.FetchOptions == nil {
		o.FetchOptions = fetch.DefaultOptions()
		o.FetchOptions.Client = o.HTTPClient
	}
	return o
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newResponse(platform types.PlatformType) *types.PublicationResponse {
	now := time.Now().UTC()
	return &types.PublicationResponse{
		PublicationID: uuid.NewString(),
		Platform:      platform,
		Status:        types.PublicationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func failedResponse(platform types.PlatformType, message string) *types.PublicationResponse {
	resp := newResponse(platform)
	resp.Status = types.PublicationFailed
	resp.ErrorMessage = message
	return resp
}

func publishedResponse(platform types.PlatformType, postID, postURL string) *types.PublicationResponse {
	resp := newResponse(platform)
	now := resp.CreatedAt
	resp.Status = types.PublicationPublished
	resp.PlatformPostID = postID
	resp.PlatformURL = postURL
	resp.PublishedAt = &now
	return resp
}
