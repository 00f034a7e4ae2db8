package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autopublisher/internal/types"
)

func TestConvertToHTML(t *testing.T) {
	article := &types.Article{
		Title:        "Solar",
		Introduction: "Intro text.",
		Sections: []types.Section{
			{Heading: "Costs", Content: "First para.\n\nSecond para.\n\n  \n\n", HeadingLevel: 2},
			{Heading: "Details", Content: "Deep dive.", HeadingLevel: 3},
		},
		Conclusion: "The end.",
		Language:   "en",
	}

	expected := strings.Join([]string{
		"<p>Intro text.</p>",
		"<h2>Costs</h2>",
		"<p>First para.</p>",
		"<p>Second para.</p>",
		"<h3>Details</h3>",
		"<p>Deep dive.</p>",
		"<p>The end.</p>",
	}, "\n")
	assert.Equal(t, expected, ConvertToHTML(article))
}

func TestConvertToHTML_HeadingLevels(t *testing.T) {
	tests := []struct {
		level int
		tag   string
	}{
		{0, "h2"},
		{1, "h1"},
		{4, "h4"},
		{9, "h6"},
		{-3, "h1"},
	}
	for _, tt := range tests {
		out := ConvertToHTML(&types.Article{Sections: []types.Section{{Heading: "H", HeadingLevel: tt.level}}})
		assert.Equal(t, "<"+tt.tag+">H</"+tt.tag+">", out, "level %d", tt.level)
	}
}

func TestConvertToHTML_FAQHeaderByLanguage(t *testing.T) {
	faq := []types.FAQItem{{Question: "Why?", Answer: "Because."}}

	ar := ConvertToHTML(&types.Article{FAQ: faq, Language: "ar"})
	assert.Equal(t, "<h2>الأسئلة الشائعة</h2>\n<h3>Why?</h3>\n<p>Because.</p>", ar)

	en := ConvertToHTML(&types.Article{FAQ: faq, Language: "en"})
	assert.Contains(t, en, "<h2>Frequently Asked Questions</h2>")

	unset := ConvertToHTML(&types.Article{FAQ: faq})
	assert.Contains(t, unset, "الأسئلة الشائعة")
}

func TestConvertToHTML_EscapesText(t *testing.T) {
	out := ConvertToHTML(&types.Article{
		Introduction: "<script>alert(1)</script> fish & chips",
		Sections:     []types.Section{{Heading: "<b>bold</b>", Content: "<img src=x onerror=alert(1)>"}},
	})

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "fish &amp; chips")
}

func TestConvertToHTML_Empty(t *testing.T) {
	assert.Equal(t, "", ConvertToHTML(nil))
	assert.Equal(t, "", ConvertToHTML(&types.Article{Title: "only a title"}))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 5, WordCount("<p>one two</p>\n<h2>three</h2><p>four  five</p>"))
	assert.Equal(t, 3, WordCount("plain text here"))
}
