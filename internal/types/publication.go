// Package types provides the request, response and payload types shared by the
// publishing service, the workflow runner and the HTTP API.
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// PlatformType identifies a publishing platform.
type PlatformType string

const (
	PlatformWordPress PlatformType = "wordpress"
	PlatformInstagram PlatformType = "instagram"
	PlatformFacebook  PlatformType = "facebook"
	PlatformX         PlatformType = "x"
	PlatformLinkedIn  PlatformType = "linkedin"
)

// AllPlatforms lists every platform tag known to the data model, registered or not.
var AllPlatforms = []PlatformType{
	PlatformWordPress,
	PlatformInstagram,
	PlatformFacebook,
	PlatformX,
	PlatformLinkedIn,
}

// ParsePlatform converts a raw string into a PlatformType.
func ParsePlatform(s string) (PlatformType, error) {
	p := PlatformType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "platform", Message: fmt.Sprintf("unknown platform %q", s)}
}

// PublicationStatus is the lifecycle status of one publication attempt.
type PublicationStatus string

const (
	PublicationPending    PublicationStatus = "pending"
	PublicationPublishing PublicationStatus = "publishing"
	PublicationPublished  PublicationStatus = "published"
	PublicationFailed     PublicationStatus = "failed"
	PublicationScheduled  PublicationStatus = "scheduled"
)

// InstagramCaptionLimit is the maximum caption length accepted by the Graph API.
const InstagramCaptionLimit = 2200

// WordPressPostData is the platform payload for a WordPress post.
type WordPressPostData struct {
	Title            string   `json:"title" validate:"required,min=1,max=200"`
	Content          string   `json:"content" validate:"required,min=1"`
	Excerpt          string   `json:"excerpt,omitempty" validate:"max=500"`
	Status           string   `json:"status,omitempty" validate:"omitempty,oneof=publish draft pending private"`
	Categories       []string `json:"categories,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	FeaturedImageURL string   `json:"featured_image_url,omitempty" validate:"omitempty,url"`
	Slug             string   `json:"slug,omitempty"`
	MetaDescription  string   `json:"meta_description,omitempty" validate:"max=160"`
}

// PostStatus returns the requested post status, defaulting to "publish".
func (d *WordPressPostData) PostStatus() string {
	if d.Status == "" {
		return "publish"
	}
	return d.Status
}

// InstagramPostData is the platform payload for an Instagram image post.
type InstagramPostData struct {
	Caption    string   `json:"caption" validate:"required,max=2200"`
	ImageURL   string   `json:"image_url" validate:"required,url"`
	LocationID string   `json:"location_id,omitempty"`
	Hashtags   []string `json:"hashtags,omitempty" validate:"max=30"`
}

// FullCaption returns the caption with hashtags appended, truncated to the
// Instagram caption limit.
func (d *InstagramPostData) FullCaption() string {
	caption := d.Caption
	if len(d.Hashtags) > 0 {
		tags := make([]string, 0, len(d.Hashtags))
		for _, tag := range d.Hashtags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			tags = append(tags, "#"+strings.TrimPrefix(tag, "#"))
		}
		if len(tags) > 0 {
			caption += "\n\n" + strings.Join(tags, " ")
		}
	}
	return truncateRunes(caption, InstagramCaptionLimit)
}

// FacebookPostData is the platform payload for a Facebook page post.
type FacebookPostData struct {
	Message              string     `json:"message" validate:"required"`
	Link                 string     `json:"link,omitempty" validate:"omitempty,url"`
	ImageURL             string     `json:"image_url,omitempty" validate:"omitempty,url"`
	ScheduledPublishTime *time.Time `json:"scheduled_publish_time,omitempty"`
}

// XPostData is the platform payload for a post on X.
type XPostData struct {
	Text      string   `json:"text" validate:"required,max=280"`
	MediaURLs []string `json:"media_urls,omitempty" validate:"max=4,dive,url"`
	ReplyTo   string   `json:"reply_to,omitempty"`
}

// PublicationRequest asks a publisher to post one piece of content.
// Exactly one of the data fields is set, and it matches Platform.
type PublicationRequest struct {
	Platform      PlatformType       `json:"platform" validate:"required"`
	WordPressData *WordPressPostData `json:"wordpress_data,omitempty"`
	InstagramData *InstagramPostData `json:"instagram_data,omitempty"`
	FacebookData  *FacebookPostData  `json:"facebook_data,omitempty"`
	XData         *XPostData         `json:"x_data,omitempty"`
	ScheduleTime  *time.Time         `json:"schedule_time,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// PlatformData returns the populated payload variant, or nil if none is set.
func (r *PublicationRequest) PlatformData() any {
	switch {
	case r.WordPressData != nil:
		return r.WordPressData
	case r.InstagramData != nil:
		return r.InstagramData
	case r.FacebookData != nil:
		return r.FacebookData
	case r.XData != nil:
		return r.XData
	}
	return nil
}

// Validate checks field constraints and that the payload variant matches the platform.
func (r *PublicationRequest) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Message: "request is required"}
	}
	if err := validateStruct(r); err != nil {
		return err
	}

	populated := 0
	for _, set := range []bool{r.WordPressData != nil, r.InstagramData != nil, r.FacebookData != nil, r.XData != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return &ValidationError{Field: "platform_data", Message: fmt.Sprintf("exactly one platform payload is required, got %d", populated)}
	}

	var matches bool
	switch r.Platform {
	case PlatformWordPress:
		matches = r.WordPressData != nil
	case PlatformInstagram:
		matches = r.InstagramData != nil
	case PlatformFacebook:
		matches = r.FacebookData != nil
	case PlatformX:
		matches = r.XData != nil
	case PlatformLinkedIn:
		// no payload type exists for linkedin yet
		matches = false
	default:
		return &ValidationError{Field: "platform", Message: fmt.Sprintf("unknown platform %q", r.Platform)}
	}
	if !matches {
		return &ValidationError{Field: "platform_data", Message: fmt.Sprintf("payload does not match platform %s", r.Platform)}
	}

	return validateStruct(r.PlatformData())
}

// PublicationResponse is the outcome of one publish attempt, or of a retry
// sequence when produced by the retry wrapper.
type PublicationResponse struct {
	PublicationID  string            `json:"publication_id"`
	Platform       PlatformType      `json:"platform"`
	Status         PublicationStatus `json:"status"`
	PlatformPostID string            `json:"platform_post_id,omitempty"`
	PlatformURL    string            `json:"platform_url,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	PublishedAt    *time.Time        `json:"published_at,omitempty"`
	ScheduledFor   *time.Time        `json:"scheduled_for,omitempty"`
	RetryCount     int               `json:"retry_count"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Published reports whether the response represents a successful publication.
func (r *PublicationResponse) Published() bool {
	return r != nil && r.Status == PublicationPublished
}

// BulkPublicationRequest publishes several requests sequentially.
type BulkPublicationRequest struct {
	Publications     []PublicationRequest `json:"publications" validate:"required,min=1,max=10"`
	StopOnFirstError bool                 `json:"stop_on_first_error"`
}

// Validate checks the bulk envelope; each publication is validated when it is processed.
func (r *BulkPublicationRequest) Validate() error {
	return validateStruct(r)
}

// BulkPublicationResponse aggregates the responses of a bulk publish.
type BulkPublicationResponse struct {
	Total      int                   `json:"total"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Results    []PublicationResponse `json:"results"`
}

// PlatformStatus reports whether a platform is configured and reachable.
type PlatformStatus struct {
	Platform     PlatformType `json:"platform"`
	Configured   bool         `json:"configured"`
	Available    bool         `json:"available"`
	LastCheck    time.Time    `json:"last_check"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// ValidationError is returned when a request fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct-tag validation and converts the first failure into a ValidationError.
func validateStruct(v any) error {
	if v == nil {
		return nil
	}
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed on '%s' rule", fe.Tag()),
		}
	}
	return &ValidationError{Message: err.Error()}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
