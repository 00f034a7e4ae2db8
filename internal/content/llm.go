package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jonathan/autopublisher/internal/llm"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/prompts"
	"github.com/jonathan/autopublisher/internal/schemas"
	"github.com/jonathan/autopublisher/internal/types"
	schemafiles "github.com/jonathan/autopublisher/schemas"
)

// LLMGenerator drafts articles directly with a language model.
type LLMGenerator struct {
	client llm.Client
	logger *slog.Logger
}

// NewLLMGenerator wraps client.
func NewLLMGenerator(client llm.Client, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = observability.Discard()
	}
	return &LLMGenerator{client: client, logger: logger}
}

// Generate prompts the model, validates the JSON it returns against the
// article schema and fills in the word count and language.
func (g *LLMGenerator) Generate(ctx context.Context, params types.ContentParams) (*types.Article, error) {
	params.ApplyDefaults()

	prompt, err := prompts.Render(prompts.Article, prompts.GenerateArticle, promptData(params))
	if err != nil {
		return nil, err
	}

	tier := llm.TierFor(params.TargetLength)
	raw, err := g.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return nil, fmt.Errorf("article generation failed: %w", err)
	}

	if err := schemas.Validate(schemafiles.Article, []byte(raw)); err != nil {
		g.logger.Warn("model returned an invalid article", "error", err)
		return nil, fmt.Errorf("invalid article from model: %w", err)
	}
	var article types.Article
	if err := json.Unmarshal([]byte(raw), &article); err != nil {
		return nil, fmt.Errorf("failed to decode article: %w", err)
	}

	if article.Language == "" {
		article.Language = params.Language
	}
	if !params.IncludeFAQ {
		article.FAQ = nil
	}
	article.WordCount = WordCount(ConvertToHTML(&article))

	g.logger.Info("article generated", "title", article.Title, "words", article.WordCount, "tier", string(tier))
	return &article, nil
}

func promptData(p types.ContentParams) map[string]string {
	keywords := "none"
	if len(p.TargetKeywords) > 0 {
		keywords = strings.Join(p.TargetKeywords, ", ")
	}
	audience := p.TargetAudience
	if audience == "" {
		audience = "general readers"
	}
	return map[string]string{
		"Topic":        p.Topic,
		"Language":     p.Language,
		"TargetLength": strconv.Itoa(p.TargetLength),
		"Tone":         p.Tone,
		"SEOLevel":     p.SEOLevel,
		"Keywords":     keywords,
		"Audience":     audience,
		"IncludeFAQ":   strconv.FormatBool(p.IncludeFAQ),
	}
}
