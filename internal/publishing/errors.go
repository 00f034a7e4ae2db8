package publishing

import (
	"fmt"

	"github.com/jonathan/autopublisher/internal/types"
)

// ConfigError is returned when a publisher cannot be built from its credentials.
type ConfigError struct {
	Platform types.PlatformType
	Message  string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// NotConfiguredError is returned when a request targets a platform without credentials.
type NotConfiguredError struct {
	Platform types.PlatformType
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("Platform %s is not configured", e.Platform)
}

// UnsupportedPlatformError is returned when no publisher is registered for a platform.
type UnsupportedPlatformError struct {
	Platform types.PlatformType
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("Unsupported platform: %s", e.Platform)
}

// APIError is a non-success response from a platform API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d - %s", e.StatusCode, e.Body)
}

// DeleteError is returned when a platform does not confirm a deletion.
type DeleteError struct {
	Platform types.PlatformType
	PostID   string
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("Failed to delete post %s", e.PostID)
}
