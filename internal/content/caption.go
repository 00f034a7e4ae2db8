package content

import "github.com/jonathan/autopublisher/internal/types"

// Caption limits leave room for hashtags within the platform's 2200 limit.
const (
	captionLimit    = 1800
	captionEllipsis = "..."
)

// InstagramCaption builds a caption from the article title and introduction,
// truncated to 1800 characters.
func InstagramCaption(article *types.Article) string {
	if article == nil {
		return ""
	}
	caption := []rune(article.Title + "\n\n" + article.Introduction)
	if len(caption) <= captionLimit {
		return string(caption)
	}
	return string(caption[:captionLimit-len(captionEllipsis)]) + captionEllipsis
}
