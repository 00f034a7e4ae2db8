package types

// Section is one headed block of an article.
type Section struct {
	Heading      string `json:"heading"`
	Content      string `json:"content"`
	HeadingLevel int    `json:"heading_level,omitempty"`
}

// FAQItem is a question and answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ArticleMetadata holds SEO metadata produced alongside the article.
type ArticleMetadata struct {
	Slug            string   `json:"slug,omitempty"`
	MetaDescription string   `json:"meta_description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Categories      []string `json:"categories,omitempty"`
}

// Image is a generated or selected image.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// Article is the structured article returned by the content generator.
type Article struct {
	Title         string          `json:"title"`
	Introduction  string          `json:"introduction"`
	Sections      []Section       `json:"sections"`
	Conclusion    string          `json:"conclusion"`
	FAQ           []FAQItem       `json:"faq,omitempty"`
	Metadata      ArticleMetadata `json:"metadata"`
	FeaturedImage *Image          `json:"featured_image,omitempty"`
	WordCount     int             `json:"word_count"`
	Language      string          `json:"language"`

	// Error is set by generators that report failure in-band.
	Error string `json:"error,omitempty"`
}

// FeaturedImageURL returns the featured image URL or an empty string.
func (a *Article) FeaturedImageURL() string {
	if a == nil || a.FeaturedImage == nil {
		return ""
	}
	return a.FeaturedImage.URL
}
