package workflow

import (
	"github.com/jonathan/autopublisher/internal/content"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/types"
)

const metaDescriptionLimit = 160

// BuildPublication converts a generated article into the publish request for
// one target. Targets without a payload format are rejected with
// *publishing.UnsupportedPlatformError.
func BuildPublication(article *types.Article, target types.PublishingTarget) (*types.PublicationRequest, error) {
	req := &types.PublicationRequest{
		Platform:     target.Platform,
		ScheduleTime: target.ScheduleTime,
	}

	switch target.Platform {
	case types.PlatformWordPress:
		categories := target.Categories
		if len(categories) == 0 {
			categories = article.Metadata.Categories
		}
		tags := target.Tags
		if len(tags) == 0 {
			tags = article.Metadata.Tags
		}
		req.WordPressData = &types.WordPressPostData{
			Title:            article.Title,
			Content:          content.ConvertToHTML(article),
			Status:           target.PostStatus,
			Categories:       categories,
			Tags:             tags,
			FeaturedImageURL: article.FeaturedImageURL(),
			Slug:             article.Metadata.Slug,
			MetaDescription:  clipRunes(article.Metadata.MetaDescription, metaDescriptionLimit),
		}
	case types.PlatformInstagram:
		req.InstagramData = &types.InstagramPostData{
			Caption:    content.InstagramCaption(article),
			ImageURL:   article.FeaturedImageURL(),
			Hashtags:   target.Hashtags,
			LocationID: target.LocationID,
		}
	default:
		return nil, &publishing.UnsupportedPlatformError{Platform: target.Platform}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func clipRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
