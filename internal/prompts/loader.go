// Package prompts renders the LLM prompt templates embedded in the binary.
// Each JSON file maps a prompt key to a text/template body.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

// Article is the prompt file used for article generation.
const Article = "article.json"

// GenerateArticle is the key of the article prompt in Article.
const GenerateArticle = "generate-article"

// templates parses every embedded prompt once, keyed by "file/key".
var templates = sync.OnceValues(func() (map[string]*template.Template, error) {
	files, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template)
	for _, file := range files {
		data, err := promptFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
		}
		var bodies map[string]string
		if err := json.Unmarshal(data, &bodies); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
		}
		for key, body := range bodies {
			name := file + "/" + key
			tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
			if err != nil {
				return nil, fmt.Errorf("invalid prompt %s: %w", name, err)
			}
			out[name] = tmpl
		}
	}
	return out, nil
})

// Render executes the prompt stored under key in filename. A placeholder
// with no value in data is an error.
func Render(filename, key string, data map[string]string) (string, error) {
	all, err := templates()
	if err != nil {
		return "", err
	}
	tmpl, ok := all[filename+"/"+key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in %s", key, filename)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", key, err)
	}
	return b.String(), nil
}
