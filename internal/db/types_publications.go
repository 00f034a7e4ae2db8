package db

import (
	"time"

	"github.com/google/uuid"
)

// Publication is one row of the publication log.
type Publication struct {
	ID             uuid.UUID `json:"id"`
	PublicationID  string    `json:"publication_id"`
	WorkflowID     string    `json:"workflow_id,omitempty"`
	Platform       string    `json:"platform"`
	Status         string    `json:"status"`
	PlatformPostID string    `json:"platform_post_id,omitempty"`
	PlatformURL    string    `json:"platform_url,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RetryCount     int       `json:"retry_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Page size limits for ListPublications.
const (
	DefaultPublicationLimit = 50
	MaxPublicationLimit     = 200
)

// PublicationFilter narrows ListPublications. Empty fields match everything.
type PublicationFilter struct {
	Platform   string
	Status     string
	WorkflowID string
	Limit      int
	Offset     int
}
