// Package schemas holds the JSON Schema documents for the payloads exchanged
// with the content generator and the workflow API.
package schemas

import "embed"

// Files contains every *.schema.json in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Schema file names.
const (
	Article         = "article.schema.json"
	WorkflowRequest = "workflow_request.schema.json"
)
