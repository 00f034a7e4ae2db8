package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/server"
	"github.com/jonathan/autopublisher/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "worker", "publish", "platforms", "status", "submit", "token"} {
		assert.Contains(t, names, want)
	}
}

func TestLoadWorkflowRequest(t *testing.T) {
	path := writeFile(t, "workflow.json", `{
		"content_params": {"topic": "Edge caching"},
		"publishing_targets": [{"platform": "wordpress", "post_status": "draft"}]
	}`)

	req, err := loadWorkflowRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "Edge caching", req.ContentParams.Topic)
	assert.True(t, req.AutoPublish)
	require.Len(t, req.PublishingTargets, 1)
	assert.Equal(t, types.PlatformWordPress, req.PublishingTargets[0].Platform)
}

func TestLoadWorkflowRequest_SchemaViolation(t *testing.T) {
	path := writeFile(t, "workflow.json", `{
		"content_params": {"topic": "Go"},
		"publishing_targets": []
	}`)

	_, err := loadWorkflowRequest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workflow request")
}

func TestReadJSONFile_Errors(t *testing.T) {
	var req types.PublicationRequest

	err := readJSONFile(filepath.Join(t.TempDir(), "missing.json"), &req)
	assert.ErrorContains(t, err, "failed to read")

	err = readJSONFile(writeFile(t, "bad.json", "{"), &req)
	assert.ErrorContains(t, err, "failed to unmarshal")
}

func TestNewPublishingService(t *testing.T) {
	cfg := config.Defaults()
	cfg.Platforms.WordPress = config.WordPressConfig{URL: "https://blog.example.com", Username: "u", AppPassword: "p"}

	svc := newPublishingService(&cfg, observability.Discard(), nil)

	assert.ElementsMatch(t, []types.PlatformType{types.PlatformWordPress, types.PlatformInstagram}, svc.SupportedPlatforms())
	assert.True(t, svc.IsConfigured(types.PlatformWordPress))
	assert.False(t, svc.IsConfigured(types.PlatformInstagram))
}

func TestRunToken(t *testing.T) {
	secret := strings.Repeat("s", 32)
	t.Setenv("API_JWT_SECRET", secret)
	t.Setenv("API_JWT_ISSUER", "")
	t.Setenv("API_JWT_AUDIENCE", "")
	tokenSubject = "cron"
	tokenTTL = time.Hour

	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	require.NoError(t, runToken(tokenCmd, nil))

	claims, err := server.NewJWTService(&config.JWTConfig{Secret: secret}).ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "cron", claims.TokenSubject())
}

func TestRunToken_RequiresSecret(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "")

	err := runToken(tokenCmd, nil)
	assert.ErrorContains(t, err, "API_JWT_SECRET")
}
