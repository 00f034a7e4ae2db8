// Package llm wraps the Gemini API used to draft articles when no external
// content service is configured.
package llm

// ModelTier selects a model by cost and output quality.
type ModelTier string

const (
	// TierFast is for short outputs such as captions and summaries.
	TierFast ModelTier = "fast"
	// TierStandard is for full article drafts.
	TierStandard ModelTier = "standard"
	// TierLongForm is for drafts above the standard length budget.
	TierLongForm ModelTier = "long_form"
)

// LongFormThreshold is the target word count above which TierLongForm is used.
const LongFormThreshold = 3000

// Config maps tiers to model names.
type Config struct {
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the Gemini models used in production.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierFast:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierLongForm: "gemini-2.5-pro",
		},
		Temperature: 0.7,
	}
}

// Model returns the model for tier, falling back to the standard tier and
// then the fast tier.
func (c *Config) Model(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierFast} {
		if m, ok := c.Models[t]; ok && m != "" {
			return m
		}
	}
	return ""
}

// TierFor picks the tier for an article of targetLength words.
func TierFor(targetLength int) ModelTier {
	if targetLength > LongFormThreshold {
		return TierLongForm
	}
	return TierStandard
}

// WithModel returns a copy of c with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{Models: make(map[ModelTier]string, len(c.Models)+1), Temperature: c.Temperature}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
