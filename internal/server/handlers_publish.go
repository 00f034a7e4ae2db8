package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/autopublisher/internal/db"
	"github.com/jonathan/autopublisher/internal/types"
)

// parseQueryInt parses an integer query parameter with default and max values
func parseQueryInt(r *http.Request, key string, defaultValue, maxValue int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		return defaultValue
	}
	if maxValue > 0 && val > maxValue {
		return maxValue
	}
	return val
}

// handlePublish publishes one request directly, with retries
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req types.PublicationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorFrom(w, r, err)
		return
	}

	resp, err := s.publishing.Publish(r.Context(), &req)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handlePublishBulk publishes several requests in order
func (s *Server) handlePublishBulk(w http.ResponseWriter, r *http.Request) {
	var bulk types.BulkPublicationRequest
	if err := decodeJSON(r, &bulk); err != nil {
		s.errorFrom(w, r, err)
		return
	}

	resp, err := s.publishing.PublishBulk(r.Context(), &bulk)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handlePlatforms reports configuration and credential status per platform
func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.publishing.PlatformStatuses(r.Context()))
}

// handleDeletePost deletes a published post
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	platform, err := types.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	if err := s.publishing.Delete(r.Context(), platform, r.PathValue("post_id")); err != nil {
		s.errorFrom(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListPublications lists the publication log
func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	if s.publications == nil {
		s.errorFrom(w, r, &ErrUnavailable{Service: "publication log"})
		return
	}

	query := r.URL.Query()
	filter := db.PublicationFilter{
		Status:     query.Get("status"),
		WorkflowID: query.Get("workflow_id"),
		Limit:      parseQueryInt(r, "limit", db.DefaultPublicationLimit, db.MaxPublicationLimit),
		Offset:     parseQueryInt(r, "offset", 0, 0),
	}
	if raw := query.Get("platform"); raw != "" {
		platform, err := types.ParsePlatform(raw)
		if err != nil {
			s.errorFrom(w, r, err)
			return
		}
		filter.Platform = string(platform)
	}

	publications, err := s.publications.ListPublications(r.Context(), filter)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"publications": publications,
		"count":        len(publications),
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// handleGetPublication returns one publication log row
func (s *Server) handleGetPublication(w http.ResponseWriter, r *http.Request) {
	if s.publications == nil {
		s.errorFrom(w, r, &ErrUnavailable{Service: "publication log"})
		return
	}

	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		s.errorFrom(w, r, &ErrValidation{Field: "id", Message: "must be a UUID"})
		return
	}

	pub, err := s.publications.GetPublication(r.Context(), id)
	if err != nil {
		s.errorFrom(w, r, err)
		return
	}
	if pub == nil {
		s.errorFrom(w, r, &ErrNotFound{Resource: "publication", ID: raw})
		return
	}
	s.jsonResponse(w, http.StatusOK, pub)
}
