package llm

import "strings"

// CleanJSONBlock extracts the JSON document from a model response, removing
// a markdown code fence and any prose before or after the document.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// drop a language tag such as "json" on the fence line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			tag := strings.TrimSpace(text[:idx])
			if len(tag) < 20 && !strings.ContainsAny(tag, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}
