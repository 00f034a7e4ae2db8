package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/metrics"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/types"
)

// Recorder stores the final response of a publish for auditing.
type Recorder interface {
	RecordPublication(ctx context.Context, workflowID string, resp *types.PublicationResponse) error
}

// Service publishes requests using configured credentials, the factory and
// the retry policy.
type Service struct {
	factory   *Factory
	platforms config.Platforms
	policy    RetryPolicy
	recorder  Recorder
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRecorder stores every final publish response.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a publishing service.
func NewService(factory *Factory, platforms config.Platforms, policy RetryPolicy, opts ...ServiceOption) *Service {
	s := &Service{
		factory:   factory,
		platforms: platforms,
		policy:    policy,
		logger:    observability.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SupportedPlatforms lists the platforms with a registered publisher.
func (s *Service) SupportedPlatforms() []types.PlatformType {
	return s.factory.SupportedPlatforms()
}

// IsConfigured reports whether credentials exist for platform.
func (s *Service) IsConfigured(platform types.PlatformType) bool {
	switch platform {
	case types.PlatformWordPress:
		return s.platforms.WordPress.Configured()
	case types.PlatformInstagram:
		return s.platforms.Instagram.Configured()
	case types.PlatformFacebook:
		return s.platforms.Facebook.Configured()
	case types.PlatformX:
		return s.platforms.X.Configured()
	}
	return false
}

// Resolve builds the publisher for platform.
func (s *Service) Resolve(platform types.PlatformType) (Publisher, error) {
	if !s.factory.IsSupported(platform) {
		return nil, &UnsupportedPlatformError{Platform: platform}
	}
	p, err := s.factory.Create(platform, s.platforms)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &UnsupportedPlatformError{Platform: platform}
	}
	return p, nil
}

// PublishWith runs the retry-wrapped publish on p and records the outcome.
func (s *Service) PublishWith(ctx context.Context, p Publisher, req *types.PublicationRequest, workflowID string) *types.PublicationResponse {
	start := time.Now()
	resp := RetryPublish(ctx, p, req, s.policy)
	metrics.RecordPublish(string(p.Platform()), time.Since(start))

	logger := s.logger.With("platform", string(p.Platform()), "publication_id", resp.PublicationID)
	if workflowID != "" {
		logger = logger.With("workflow_id", workflowID)
	}
	if resp.Published() {
		logger.Info("publication succeeded", "post_id", resp.PlatformPostID, "retries", resp.RetryCount)
	} else {
		logger.Warn("publication failed", "error", resp.ErrorMessage, "attempts", resp.RetryCount)
	}

	if s.recorder != nil {
		// The log is an audit trail; a write failure does not change the outcome.
		if err := s.recorder.RecordPublication(ctx, workflowID, resp); err != nil {
			logger.Error("failed to record publication", "error", err)
		}
	}
	return resp
}

// Publish validates req and publishes it with retries. Validation and
// configuration problems are returned as errors; remote failures come back as
// a failed response.
func (s *Service) Publish(ctx context.Context, req *types.PublicationRequest) (*types.PublicationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.IsConfigured(req.Platform) {
		return nil, &NotConfiguredError{Platform: req.Platform}
	}
	p, err := s.Resolve(req.Platform)
	if err != nil {
		return nil, err
	}
	return s.PublishWith(ctx, p, req, ""), nil
}

// PublishBulk publishes each request in order. Requests for unconfigured or
// unsupported platforms are skipped.
func (s *Service) PublishBulk(ctx context.Context, bulk *types.BulkPublicationRequest) (*types.BulkPublicationResponse, error) {
	if err := bulk.Validate(); err != nil {
		return nil, err
	}
	for i := range bulk.Publications {
		if err := bulk.Publications[i].Validate(); err != nil {
			return nil, &types.ValidationError{
				Field:   fmt.Sprintf("publications[%d]", i),
				Message: err.Error(),
			}
		}
	}

	result := &types.BulkPublicationResponse{
		Total:   len(bulk.Publications),
		Results: make([]types.PublicationResponse, 0, len(bulk.Publications)),
	}
	for i := range bulk.Publications {
		req := &bulk.Publications[i]
		if !s.IsConfigured(req.Platform) {
			s.logger.Warn("platform not configured, skipping", "platform", string(req.Platform))
			continue
		}
		p, err := s.Resolve(req.Platform)
		if err != nil {
			s.logger.Warn("cannot create publisher, skipping", "platform", string(req.Platform), "error", err)
			continue
		}

		resp := s.PublishWith(ctx, p, req, "")
		result.Results = append(result.Results, *resp)
		if resp.Published() {
			result.Successful++
			continue
		}
		result.Failed++
		if bulk.StopOnFirstError {
			s.logger.Info("stopping bulk publish due to error", "index", i)
			break
		}
	}
	return result, nil
}

// PlatformStatuses reports every supported platform. Credentials are checked
// live, concurrently, and only for configured platforms.
func (s *Service) PlatformStatuses(ctx context.Context) []types.PlatformStatus {
	platforms := s.SupportedPlatforms()
	statuses := make([]types.PlatformStatus, len(platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, platform := range platforms {
		statuses[i] = types.PlatformStatus{
			Platform:   platform,
			Configured: s.IsConfigured(platform),
			LastCheck:  time.Now().UTC(),
		}
		if !statuses[i].Configured {
			statuses[i].ErrorMessage = "Platform not configured"
			continue
		}
		g.Go(func() error {
			p, err := s.Resolve(platform)
			if err != nil {
				statuses[i].ErrorMessage = err.Error()
				return nil
			}
			statuses[i].Available = p.ValidateCredentials(gctx)
			if !statuses[i].Available {
				statuses[i].ErrorMessage = "Credentials validation failed"
			}
			statuses[i].LastCheck = time.Now().UTC()
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// Delete removes a published post.
func (s *Service) Delete(ctx context.Context, platform types.PlatformType, postID string) error {
	if postID == "" {
		return &types.ValidationError{Field: "post_id", Message: "post_id is required"}
	}
	if !s.IsConfigured(platform) {
		return &NotConfiguredError{Platform: platform}
	}
	p, err := s.Resolve(platform)
	if err != nil {
		return err
	}
	if !p.DeletePost(ctx, postID) {
		return &DeleteError{Platform: platform, PostID: postID}
	}
	s.logger.Info("post deleted", "platform", string(platform), "post_id", postID)
	return nil
}
