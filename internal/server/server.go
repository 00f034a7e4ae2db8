// Package server provides the HTTP REST API for workflows and publishing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/autopublisher/internal/db"
	"github.com/jonathan/autopublisher/internal/metrics"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/server/middleware"
	"github.com/jonathan/autopublisher/internal/server/ratelimit"
	"github.com/jonathan/autopublisher/internal/types"
)

// WorkflowAPI submits workflows and reads their status.
type WorkflowAPI interface {
	Submit(ctx context.Context, req *types.WorkflowRequest) (*types.WorkflowResponse, error)
	SubmitBulk(ctx context.Context, bulk *types.BulkWorkflowRequest) (*types.BulkWorkflowResponse, error)
	Status(ctx context.Context, workflowID string) (*types.WorkflowResponse, error)
	Cancel(ctx context.Context, workflowID string) error
	Healthy(ctx context.Context) bool
	QueueStats(ctx context.Context) (*types.QueueStats, error)
}

// PublishingAPI publishes directly to platforms.
type PublishingAPI interface {
	Publish(ctx context.Context, req *types.PublicationRequest) (*types.PublicationResponse, error)
	PublishBulk(ctx context.Context, bulk *types.BulkPublicationRequest) (*types.BulkPublicationResponse, error)
	PlatformStatuses(ctx context.Context) []types.PlatformStatus
	Delete(ctx context.Context, platform types.PlatformType, postID string) error
	SupportedPlatforms() []types.PlatformType
}

// PublicationLog reads the publication audit log.
type PublicationLog interface {
	ListPublications(ctx context.Context, filter db.PublicationFilter) ([]db.Publication, error)
	GetPublication(ctx context.Context, id uuid.UUID) (*db.Publication, error)
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port        int
	CORSOrigins []string
	// StreamInterval is the status poll interval of the SSE stream.
	StreamInterval time.Duration
}

// Dependencies are the services behind the API. Publications and Tokens are optional.
type Dependencies struct {
	Workflows    WorkflowAPI
	Publishing   PublishingAPI
	Publications PublicationLog
	Tokens       middleware.TokenValidator
	RateLimiter  *ratelimit.Limiter
	Logger       *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	workflows      WorkflowAPI
	publishing     PublishingAPI
	publications   PublicationLog
	tokens         middleware.TokenValidator
	rateLimiter    *ratelimit.Limiter
	corsOrigins    []string
	streamInterval time.Duration
	logger         *slog.Logger
}

// New creates a new server instance
func New(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.LoadConfig())
	}
	interval := cfg.StreamInterval
	if interval <= 0 {
		interval = time.Second
	}

	s := &Server{
		workflows:      deps.Workflows,
		publishing:     deps.Publishing,
		publications:   deps.Publications,
		tokens:         deps.Tokens,
		rateLimiter:    limiter,
		corsOrigins:    cfg.CORSOrigins,
		streamInterval: interval,
		logger:         logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // status streams stay open until the workflow finishes
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Workflow endpoints
	mux.HandleFunc("POST /api/v1/workflow/execute", s.handleExecuteWorkflow)
	mux.HandleFunc("POST /api/v1/workflow/execute/bulk", s.handleExecuteBulk)
	mux.HandleFunc("GET /api/v1/workflow/status/{workflow_id}", s.handleWorkflowStatus)
	mux.HandleFunc("GET /api/v1/workflow/status/{workflow_id}/stream", s.handleWorkflowStream)
	mux.HandleFunc("DELETE /api/v1/workflow/cancel/{workflow_id}", s.handleCancelWorkflow)
	mux.HandleFunc("GET /api/v1/workflow/health", s.handleWorkflowHealth)

	// Publishing endpoints
	mux.HandleFunc("POST /api/v1/publish/publish", s.handlePublish)
	mux.HandleFunc("POST /api/v1/publish/bulk", s.handlePublishBulk)
	mux.HandleFunc("GET /api/v1/publish/platforms", s.handlePlatforms)
	mux.HandleFunc("DELETE /api/v1/publish/delete/{platform}/{post_id}", s.handleDeletePost)
	mux.HandleFunc("GET /api/v1/publish/publications", s.handleListPublications)
	mux.HandleFunc("GET /api/v1/publish/publications/{id}", s.handleGetPublication)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if s.tokens != nil {
		handler = middleware.AuthMiddleware(s.tokens, isPublicPath)(handler)
	}
	return s.withCORS(s.withLogging(s.withRateLimit(handler)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

func isPublicPath(r *http.Request) bool {
	return r.Method == http.MethodOptions || r.URL.Path == "/health" || r.URL.Path == "/metrics"
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin.
// With no configured origins every origin is allowed.
func (s *Server) allowedOrigin(origin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps status streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(r.Method, rec.status)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).String(),
		)
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// errorFrom writes err with the status HTTPStatus maps it to.
func (s *Server) errorFrom(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.jsonResponse(w, status, ErrorResponse{Error: errorTitle(err), Details: err.Error()})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded", "client", extractClientID(r), "path", r.URL.Path, "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
