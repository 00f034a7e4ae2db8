// Package content produces articles for workflows and converts them into the
// formats each platform accepts.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/llm"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/types"
)

// Generator produces an article from content parameters.
type Generator interface {
	Generate(ctx context.Context, params types.ContentParams) (*types.Article, error)
}

// DefaultServiceTimeout bounds one call to the content service.
const DefaultServiceTimeout = 300 * time.Second

const generatePath = "/api/v1/content/generate"

// ServiceClient calls an external content generation service.
type ServiceClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewServiceClient creates a client for the service at baseURL. A nil client
// uses one with DefaultServiceTimeout.
func NewServiceClient(baseURL string, client *http.Client, logger *slog.Logger) *ServiceClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultServiceTimeout}
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Generate posts params to the service and decodes the article.
func (c *ServiceClient) Generate(ctx context.Context, params types.ContentParams) (*types.Article, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("content service unreachable", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read content service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("content service error", "status", resp.StatusCode, "body", string(data))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	var article types.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("failed to decode article: %w", err)
	}
	if article.Error != "" {
		return nil, errors.New(article.Error)
	}
	return &article, nil
}

// Healthy reports whether the service answers its health endpoint.
func (c *ServiceClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// NewGenerator builds the generator selected by cfg.ContentGenerator. The
// returned close function releases any client the generator holds.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Generator, func() error, error) {
	switch cfg.ContentGenerator {
	case config.GeneratorLLM:
		client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return NewLLMGenerator(client, logger), client.Close, nil
	case config.GeneratorService, "":
		return NewServiceClient(cfg.ContentServiceURL, nil, logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown content generator %q", cfg.ContentGenerator)
	}
}
