package publishing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/fetch"
	"github.com/jonathan/autopublisher/internal/types"
)

const (
	wordPressAPIPath     = "/wp-json/wp/v2"
	defaultImageType     = "image/jpeg"
	featuredImageDisplay = `attachment; filename="featured-image.jpg"`
)

// WordPressPublisher publishes posts through the WordPress REST API using an
// application password.
type WordPressPublisher struct {
	api       *apiClient
	fetchOpts *fetch.Options
	logger    *slog.Logger
}

// NewWordPressPublisher builds a publisher from site credentials.
func NewWordPressPublisher(cfg config.WordPressConfig, opts ...Option) (*WordPressPublisher, error) {
	if !cfg.Configured() {
		return nil, &ConfigError{
			Platform: types.PlatformWordPress,
			Message:  "WordPress configuration incomplete. Need: url, username, app_password",
		}
	}
	o := newOptions(opts...)

	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.AppPassword))
	return &WordPressPublisher{
		api: &apiClient{
			baseURL: trimSlash(cfg.URL) + wordPressAPIPath,
			client:  o.HTTPClient,
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic "+credentials)
			},
		},
		fetchOpts: o.FetchOptions,
		logger:    o.Logger.With("platform", string(types.PlatformWordPress)),
	}, nil
}

// Platform returns types.PlatformWordPress.
func (p *WordPressPublisher) Platform() types.PlatformType {
	return types.PlatformWordPress
}

// Publish uploads the featured image, resolves categories and tags, then creates the post.
func (p *WordPressPublisher) Publish(ctx context.Context, req *types.PublicationRequest) *types.PublicationResponse {
	if req == nil || req.Platform != types.PlatformWordPress || req.WordPressData == nil {
		return failedResponse(types.PlatformWordPress, "Invalid request: WordPress data required")
	}
	if err := req.Validate(); err != nil {
		return failedResponse(types.PlatformWordPress, "Invalid request: "+err.Error())
	}
	data := req.WordPressData

	var mediaID int
	if data.FeaturedImageURL != "" {
		id, err := p.uploadFeaturedImage(ctx, data.FeaturedImageURL)
		if err != nil {
			p.logger.Warn("featured image upload failed, publishing without it", "error", err)
		} else {
			mediaID = id
		}
	}

	categoryIDs := p.resolveTerms(ctx, "categories", data.Categories)
	tagIDs := p.resolveTerms(ctx, "tags", data.Tags)

	post := map[string]any{
		"title":   data.Title,
		"content": data.Content,
		"status":  data.PostStatus(),
		"excerpt": data.Excerpt,
	}
	if data.Slug != "" {
		post["slug"] = data.Slug
	}
	if mediaID > 0 {
		post["featured_media"] = mediaID
	}
	if len(categoryIDs) > 0 {
		post["categories"] = categoryIDs
	}
	if len(tagIDs) > 0 {
		post["tags"] = tagIDs
	}

	created, err := p.createPost(ctx, post)
	if err != nil {
		return failedResponse(types.PlatformWordPress, err.Error())
	}

	p.logger.Info("post published", "post_id", created.ID, "url", created.Link)
	return publishedResponse(types.PlatformWordPress, strconv.Itoa(created.ID), created.Link)
}

// ValidateCredentials checks that the application password authenticates.
func (p *WordPressPublisher) ValidateCredentials(ctx context.Context) bool {
	resp, err := p.api.do(ctx, http.MethodGet, "/users/me", nil, nil, nil)
	if err != nil {
		p.logger.Warn("credential check failed", "error", err)
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// DeletePost permanently deletes a post, bypassing the trash.
func (p *WordPressPublisher) DeletePost(ctx context.Context, postID string) bool {
	query := url.Values{"force": {"true"}}
	resp, err := p.api.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID), query, nil, nil)
	if err != nil {
		p.logger.Warn("delete failed", "post_id", postID, "error", err)
		return false
	}
	return resp.StatusCode == http.StatusOK
}

type wpObject struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
	Name string `json:"name"`
}

func (p *WordPressPublisher) createPost(ctx context.Context, post map[string]any) (*wpObject, error) {
	resp, err := p.api.doJSON(ctx, http.MethodPost, "/posts", post)
	if err != nil {
		return nil, fmt.Errorf("WordPress publishing error: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("WordPress API error: %w", resp.apiError())
	}

	var created wpObject
	if err := resp.decode(&created); err != nil {
		return nil, fmt.Errorf("WordPress publishing error: %w", err)
	}
	if created.ID == 0 {
		return nil, errors.New("WordPress publishing error: response did not include a post id")
	}
	return &created, nil
}

// uploadFeaturedImage downloads imageURL and stores it in the media library.
func (p *WordPressPublisher) uploadFeaturedImage(ctx context.Context, imageURL string) (int, error) {
	image, err := fetch.Bytes(ctx, imageURL, p.fetchOpts)
	if err != nil {
		return 0, err
	}

	contentType := image.ContentType
	if contentType == "" {
		contentType = defaultImageType
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Disposition", featuredImageDisplay)

	resp, err := p.api.do(ctx, http.MethodPost, "/media", nil, bytes.NewReader(image.Body), header)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("media upload rejected: %w", resp.apiError())
	}

	var media wpObject
	if err := resp.decode(&media); err != nil {
		return 0, err
	}
	return media.ID, nil
}

// resolveTerms maps term names to IDs within a taxonomy ("categories" or
// "tags"), creating missing terms. Terms that cannot be looked up or created
// are skipped.
func (p *WordPressPublisher) resolveTerms(ctx context.Context, taxonomy string, names []string) []int {
	var ids []int
	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := p.resolveTerm(ctx, taxonomy, name)
		if err != nil {
			p.logger.Warn("skipping term", "taxonomy", taxonomy, "name", name, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// resolveTerm returns the ID of the term named name, creating it only when the
// search succeeded and found no term with exactly that name.
func (p *WordPressPublisher) resolveTerm(ctx context.Context, taxonomy, name string) (int, error) {
	resp, err := p.api.do(ctx, http.MethodGet, "/"+taxonomy, url.Values{"search": {name}}, nil, nil)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("search failed: %w", resp.apiError())
	}
	var found []wpObject
	if err := resp.decode(&found); err != nil {
		return 0, fmt.Errorf("search failed: %w", err)
	}
	// search matches substrings, so "Tech" also finds "Technology"
	for _, term := range found {
		if strings.EqualFold(html.UnescapeString(term.Name), name) {
			return term.ID, nil
		}
	}

	resp, err = p.api.doJSON(ctx, http.MethodPost, "/"+taxonomy, map[string]string{"name": name})
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("create rejected: %w", resp.apiError())
	}
	var created wpObject
	if err := resp.decode(&created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
