package content

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jonathan/autopublisher/internal/types"
)

// FAQ section headers by article language.
const (
	faqHeaderArabic  = "الأسئلة الشائعة"
	faqHeaderDefault = "Frequently Asked Questions"
)

const defaultHeadingLevel = 2

var htmlPolicy = bluemonday.UGCPolicy()

// ConvertToHTML renders a WordPress post body from an article. Block order
// is introduction, sections, FAQ, conclusion; blocks are joined by newlines.
func ConvertToHTML(article *types.Article) string {
	if article == nil {
		return ""
	}
	var parts []string
	paragraph := func(text string) {
		parts = append(parts, "<p>"+html.EscapeString(text)+"</p>")
	}

	if article.Introduction != "" {
		paragraph(article.Introduction)
	}

	for _, section := range article.Sections {
		level := headingLevel(section.HeadingLevel)
		parts = append(parts, fmt.Sprintf("<h%d>%s</h%d>", level, html.EscapeString(section.Heading), level))
		for _, para := range strings.Split(section.Content, "\n\n") {
			if para = strings.TrimSpace(para); para != "" {
				paragraph(para)
			}
		}
	}

	if len(article.FAQ) > 0 {
		parts = append(parts, "<h2>"+faqHeader(article.Language)+"</h2>")
		for _, item := range article.FAQ {
			parts = append(parts, "<h3>"+html.EscapeString(item.Question)+"</h3>")
			paragraph(item.Answer)
		}
	}

	if article.Conclusion != "" {
		paragraph(article.Conclusion)
	}

	return htmlPolicy.Sanitize(strings.Join(parts, "\n"))
}

// WordCount counts whitespace-separated words in the text of an HTML fragment.
func WordCount(fragment string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return len(strings.Fields(fragment))
	}
	return len(strings.Fields(doc.Text()))
}

func headingLevel(level int) int {
	switch {
	case level == 0:
		return defaultHeadingLevel
	case level < 1:
		return 1
	case level > 6:
		return 6
	}
	return level
}

func faqHeader(language string) string {
	if language == "" || language == "ar" {
		return faqHeaderArabic
	}
	return faqHeaderDefault
}
