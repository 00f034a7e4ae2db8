package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonathan/autopublisher/internal/types"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status             string               `json:"status"`
	SupportedPlatforms []types.PlatformType `json:"supported_platforms"`
	QueueConnected     bool                 `json:"queue_connected"`
	DatabaseConnected  bool                 `json:"database_connected"`
}

// WorkflowHealthResponse is returned by /api/v1/workflow/health.
type WorkflowHealthResponse struct {
	Status         string            `json:"status"`
	QueueConnected bool              `json:"queue_connected"`
	Queue          *types.QueueStats `json:"queue,omitempty"`
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrValidation{Message: "Invalid request body: " + err.Error()}
	}
	return nil
}

// handleExecuteWorkflow queues a single workflow
func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req types.WorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorFrom(w, r, err)
		return
	}

	resp, err := s.workflows.Submit(r.Context(), &req)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, resp)
}

// handleExecuteBulk queues up to types.MaxBulkWorkflows workflows
func (s *Server) handleExecuteBulk(w http.ResponseWriter, r *http.Request) {
	var bulk types.BulkWorkflowRequest
	if err := decodeJSON(r, &bulk); err != nil {
		s.errorFrom(w, r, err)
		return
	}

	resp, err := s.workflows.SubmitBulk(r.Context(), &bulk)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, resp)
}

// handleWorkflowStatus returns the projected status of a workflow
func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflows.Status(r.Context(), r.PathValue("workflow_id"))
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleWorkflowStream streams status changes as SSE until the workflow
// reaches a terminal state or the client disconnects.
func (s *Server) handleWorkflowStream(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("workflow_id")

	sse, err := NewSSEWriter(w, s.streamInterval*2)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last *types.WorkflowResponse
	for {
		status, err := s.workflows.Status(r.Context(), workflowID)
		if err != nil {
			if r.Context().Err() == nil {
				sse.WriteError(err.Error())
			}
			return
		}

		if status.Status.IsTerminal() {
			sse.WriteComplete(status)
			return
		}
		if changed(last, status) {
			if err := sse.WriteEvent("progress", status); err != nil {
				s.logger.Debug("status stream closed", "workflow_id", workflowID, "error", err)
				return
			}
			last = status
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func changed(prev, next *types.WorkflowResponse) bool {
	return prev == nil ||
		prev.Status != next.Status ||
		prev.ProgressPercentage != next.ProgressPercentage ||
		prev.CurrentStep != next.CurrentStep
}

// handleCancelWorkflow revokes a workflow
func (s *Server) handleCancelWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflows.Cancel(r.Context(), r.PathValue("workflow_id")); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWorkflowHealth reports queue connectivity and backlog
func (s *Server) handleWorkflowHealth(w http.ResponseWriter, r *http.Request) {
	resp := WorkflowHealthResponse{Status: "unhealthy"}
	if s.workflows.Healthy(r.Context()) {
		resp.Status = "healthy"
		resp.QueueConnected = true
		stats, err := s.workflows.QueueStats(r.Context())
		if err != nil {
			s.logger.Warn("failed to read queue stats", "error", err)
		}
		resp.Queue = stats
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleHealth reports overall service health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:             "healthy",
		SupportedPlatforms: s.publishing.SupportedPlatforms(),
		QueueConnected:     s.workflows.Healthy(r.Context()),
	}
	if s.publications != nil {
		resp.DatabaseConnected = s.publications.Ping(r.Context()) == nil
	}
	if !resp.QueueConnected {
		resp.Status = "degraded"
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
