package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/indrav/forecourt/internal/dnscheck"
	"github.com/indrav/forecourt/internal/history"
	"github.com/indrav/forecourt/internal/hostname"
	"github.com/indrav/forecourt/internal/lifecycle"
	"github.com/indrav/forecourt/internal/registry"
)

// ConnectRequest is the request body for POST /domains/connect
type ConnectRequest struct {
	TenantID string `json:"tenant_id"`
	Domain   string `json:"domain"`
}

// ChecksResponse is the response for GET /domains/{id}/checks
type ChecksResponse struct {
	DomainID string          `json:"domain_id"`
	Checks   []history.Check `json:"checks"`
}

// InstructionsResponse is the response for GET /dns/instructions
type InstructionsResponse struct {
	Records []dnscheck.Instruction `json:"records"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleConnect handles POST /api/v1/domains/connect
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TenantID == "" {
		s.sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	res, err := s.service.Connect(r.Context(), req.TenantID, req.Domain)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSON(w, http.StatusCreated, res)
}

// handleVerify handles POST /api/v1/domains/{id}/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	res, err := s.service.Verify(r.Context(), tenantID, id)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	// A non-matching check is a normal outcome; the caller inspects
	// check.all_verified and the per-record details.
	s.sendJSON(w, http.StatusOK, res)
}

// handleRemove handles DELETE /api/v1/domains/{id}
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	if err := s.service.Remove(r.Context(), tenantID, id); err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleChecks handles GET /api/v1/domains/{id}/checks
func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	checks, err := s.service.Checks(r.Context(), tenantID, id, limit)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	if checks == nil {
		checks = []history.Check{}
	}

	s.sendJSON(w, http.StatusOK, ChecksResponse{DomainID: id, Checks: checks})
}

// handleStatus handles GET /api/v1/domains/status?tenant_id=
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		s.sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	rec, err := s.service.Status(r.Context(), tenantID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, rec)
}

// handleInstructions handles GET /api/v1/dns/instructions
func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, InstructionsResponse{Records: s.service.Instructions()})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
		Uptime:  time.Since(s.startTime).String(),
	})
}

// sendServiceError maps lifecycle errors to HTTP status codes
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hostname.ErrEmptyDomain),
		errors.Is(err, hostname.ErrMalformedDomain),
		errors.Is(err, hostname.ErrReservedDomain):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrDomainTaken),
		errors.Is(err, registry.ErrTenantHasDomain):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrRemoved):
		s.sendError(w, http.StatusGone, err.Error())
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, lifecycle.ErrNotOwner):
		// Records owned by other dealers look like missing records.
		s.sendError(w, http.StatusNotFound, "domain not found")
	case errors.Is(err, dnscheck.ErrUnavailable):
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
