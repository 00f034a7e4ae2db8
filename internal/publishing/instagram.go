package publishing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/types"
)

const (
	// DefaultGraphURL is the Facebook Graph API base used for Instagram business accounts.
	DefaultGraphURL  = "https://graph.facebook.com/v18.0"
	instagramPostURL = "https://www.instagram.com/p/"
)

// DefaultInsightMetrics are requested by AccountInsights when none are given.
var DefaultInsightMetrics = []string{"impressions", "reach", "profile_views"}

// InstagramPublisher publishes images through the Instagram Graph API using
// the two-phase container flow.
type InstagramPublisher struct {
	api         *apiClient
	accessToken string
	accountID   string
	grace       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewInstagramPublisher builds a publisher from business account credentials.
func NewInstagramPublisher(cfg config.InstagramConfig, opts ...Option) (*InstagramPublisher, error) {
	if !cfg.Configured() {
		return nil, &ConfigError{
			Platform: types.PlatformInstagram,
			Message:  "Instagram configuration incomplete. Need: access_token, business_account_id",
		}
	}
	o := newOptions(opts...)

	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &InstagramPublisher{
		api: &apiClient{
			baseURL: trimSlash(graphURL),
			client:  o.HTTPClient,
		},
		accessToken: cfg.AccessToken,
		accountID:   cfg.BusinessAccountID,
		grace:       o.InstagramGrace,
		sleep:       o.Sleep,
		logger:      o.Logger.With("platform", string(types.PlatformInstagram)),
	}, nil
}

// Platform returns types.PlatformInstagram.
func (p *InstagramPublisher) Platform() types.PlatformType {
	return types.PlatformInstagram
}

// Publish creates a media container, waits for Instagram to process the
// image, publishes the container and resolves the post URL.
func (p *InstagramPublisher) Publish(ctx context.Context, req *types.PublicationRequest) *types.PublicationResponse {
	if req == nil || req.Platform != types.PlatformInstagram || req.InstagramData == nil {
		return failedResponse(types.PlatformInstagram, "Invalid request: Instagram data required")
	}
	if err := req.Validate(); err != nil {
		return failedResponse(types.PlatformInstagram, "Invalid request: "+err.Error())
	}
	data := req.InstagramData

	containerID, err := p.createContainer(ctx, data)
	if err != nil {
		return p.failed(err)
	}

	// Instagram processes the uploaded image asynchronously.
	if err := p.sleep(ctx, p.grace); err != nil {
		return p.failed(fmt.Errorf("interrupted while waiting for container %s: %w", containerID, err))
	}

	mediaID, err := p.publishContainer(ctx, containerID)
	if err != nil {
		return p.failed(err)
	}

	postURL := instagramPostURL + p.shortcode(ctx, mediaID)
	p.logger.Info("media published", "media_id", mediaID, "url", postURL)
	return publishedResponse(types.PlatformInstagram, mediaID, postURL)
}

// ValidateCredentials reads the business account with the configured token.
func (p *InstagramPublisher) ValidateCredentials(ctx context.Context) bool {
	query := url.Values{
		"fields":       {"id,username"},
		"access_token": {p.accessToken},
	}
	resp, err := p.api.do(ctx, http.MethodGet, "/"+p.accountID, query, nil, nil)
	if err != nil {
		p.logger.Warn("credential check failed", "error", p.redact(err.Error()))
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// DeletePost deletes a published media object.
func (p *InstagramPublisher) DeletePost(ctx context.Context, postID string) bool {
	query := url.Values{"access_token": {p.accessToken}}
	resp, err := p.api.do(ctx, http.MethodDelete, "/"+url.PathEscape(postID), query, nil, nil)
	if err != nil {
		p.logger.Warn("delete failed", "post_id", postID, "error", p.redact(err.Error()))
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// AccountInsights returns daily account insights for the given metrics.
func (p *InstagramPublisher) AccountInsights(ctx context.Context, metrics []string) (map[string]any, error) {
	if len(metrics) == 0 {
		metrics = DefaultInsightMetrics
	}
	query := url.Values{
		"metric":       {strings.Join(metrics, ",")},
		"period":       {"day"},
		"access_token": {p.accessToken},
	}
	resp, err := p.api.do(ctx, http.MethodGet, "/"+p.accountID+"/insights", query, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get insights: %s", p.redact(err.Error()))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get insights: %s", p.graphMessage(resp))
	}
	var insights map[string]any
	if err := resp.decode(&insights); err != nil {
		return nil, err
	}
	return insights, nil
}

type graphObject struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
}

func (p *InstagramPublisher) createContainer(ctx context.Context, data *types.InstagramPostData) (string, error) {
	form := url.Values{
		"image_url":    {data.ImageURL},
		"caption":      {data.FullCaption()},
		"access_token": {p.accessToken},
	}
	if data.LocationID != "" {
		form.Set("location_id", data.LocationID)
	}

	resp, err := p.api.doForm(ctx, http.MethodPost, "/"+p.accountID+"/media", form)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Failed to create media container: %s", p.graphMessage(resp))
	}
	var container graphObject
	if err := resp.decode(&container); err != nil || container.ID == "" {
		return "", errors.New("Failed to create media container")
	}
	return container.ID, nil
}

func (p *InstagramPublisher) publishContainer(ctx context.Context, containerID string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {p.accessToken},
	}
	resp, err := p.api.doForm(ctx, http.MethodPost, "/"+p.accountID+"/media_publish", form)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Failed to publish media container: %s", p.graphMessage(resp))
	}
	var media graphObject
	if err := resp.decode(&media); err != nil || media.ID == "" {
		return "", errors.New("Failed to publish media container")
	}
	return media.ID, nil
}

// shortcode looks up the media shortcode, falling back to the media ID.
func (p *InstagramPublisher) shortcode(ctx context.Context, mediaID string) string {
	query := url.Values{
		"fields":       {"shortcode"},
		"access_token": {p.accessToken},
	}
	resp, err := p.api.do(ctx, http.MethodGet, "/"+url.PathEscape(mediaID), query, nil, nil)
	if err != nil || resp.StatusCode != http.StatusOK {
		p.logger.Warn("shortcode lookup failed, using media id", "media_id", mediaID)
		return mediaID
	}
	var media graphObject
	if err := resp.decode(&media); err != nil || media.Shortcode == "" {
		return mediaID
	}
	return media.Shortcode
}

func (p *InstagramPublisher) failed(err error) *types.PublicationResponse {
	return failedResponse(types.PlatformInstagram, "Instagram publishing error: "+p.redact(err.Error()))
}

// graphMessage extracts error.message from a Graph API error body.
func (p *InstagramPublisher) graphMessage(resp *apiResponse) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Error.Message != "" {
		return p.redact(fmt.Sprintf("%d - %s", resp.StatusCode, body.Error.Message))
	}
	return p.redact(resp.apiError().Error())
}

// redact removes the access token from messages that may echo request URLs.
func (p *InstagramPublisher) redact(msg string) string {
	if p.accessToken == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(p.accessToken), "[REDACTED]")
	return strings.ReplaceAll(msg, p.accessToken, "[REDACTED]")
}
