package schemas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schemafiles "github.com/jonathan/autopublisher/schemas"
)

const validArticle = `{
  "title": "Solar panels at home",
  "introduction": "Why solar matters.",
  "sections": [{"heading": "Costs", "content": "Panels are cheaper.", "heading_level": 2}],
  "conclusion": "Go solar.",
  "metadata": {"slug": "solar-panels-at-home", "meta_description": "A short guide."}
}`

func TestValidate_Article(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantText string
	}{
		{name: "valid", doc: validArticle},
		{
			name:     "missing sections",
			doc:      `{"title": "T", "introduction": "I", "conclusion": "C"}`,
			wantText: "sections is required",
		},
		{
			name:     "heading level out of range",
			doc:      `{"title": "T", "introduction": "I", "conclusion": "C", "sections": [{"heading": "H", "content": "x", "heading_level": 9}]}`,
			wantText: "sections.0.heading_level",
		},
		{
			name:     "bad slug",
			doc:      `{"title": "T", "introduction": "I", "conclusion": "C", "sections": [{"heading": "H", "content": "x"}], "metadata": {"slug": "Not A Slug"}}`,
			wantText: "metadata.slug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(schemafiles.Article, []byte(tt.doc))
			if tt.wantText == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, schemafiles.Article, ve.Schema)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestValidate_WorkflowRequest(t *testing.T) {
	ok := `{"content_params": {"topic": "solar"}, "publishing_targets": [{"platform": "wordpress"}]}`
	assert.NoError(t, Validate(schemafiles.WorkflowRequest, []byte(ok)))

	bad := `{"content_params": {"topic": "so"}, "publishing_targets": []}`
	var ve *ValidationError
	require.ErrorAs(t, Validate(schemafiles.WorkflowRequest, []byte(bad)), &ve)
	assert.GreaterOrEqual(t, len(ve.Errors), 2)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))

	var le *SchemaLoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "schema not found")
	assert.NotNil(t, errors.Unwrap(err))
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(schemafiles.Article, []byte("{ not json"))
	require.Error(t, err)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "article.json")
	require.NoError(t, os.WriteFile(path, []byte(validArticle), 0o644))

	assert.NoError(t, ValidateFile(schemafiles.Article, path))

	err := ValidateFile(schemafiles.Article, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{
		Schema: "article.schema.json",
		Errors: []FieldError{{Field: "title", Message: "title is required"}},
	}
	assert.Equal(t, "article.schema.json validation failed:\n  1. title: title is required\n", ve.Error())
}
