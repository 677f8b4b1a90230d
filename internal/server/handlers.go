package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mentorhq/mentorhub/internal/gateway"
	"github.com/mentorhq/mentorhub/internal/probation"
)

// knownResources is the allowlist of backend collections exposed through
// the generic CRUD surface. Anything else is rejected before a backend
// call is made.
var knownResources = map[string]bool{
	"sales":                true,
	"week":                 true,
	"kpi":                  true,
	"kpi_action_progress":  true,
	"mentor_weekly_target": true,
	"requirement":          true,
	"user":                 true,
	"rank":                 true,
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "mentorhub",
	})
}

// readOptions extracts read options from the request query.
// ?refresh=true bypasses the cache read.
func readOptions(r *http.Request) gateway.Options {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return gateway.Options{ForceRefresh: refresh}
}

// resourceFrom validates the {resource} URL parameter.
func (s *Server) resourceFrom(w http.ResponseWriter, r *http.Request) (*gateway.Resource, bool) {
	name := chi.URLParam(r, "resource")
	if !knownResources[name] {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown resource: " + name,
		})
		return nil, false
	}
	return s.gw.Resource(name), true
}

func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFrom(w, r)
	if !ok {
		return
	}

	opts := readOptions(r)
	// Pass through backend filter parameters (e.g. sales_id, week_id).
	q := r.URL.Query()
	q.Del("refresh")
	if len(q) > 0 {
		opts.Query = q
	}

	body, err := res.GetAll(opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFrom(w, r)
	if !ok {
		return
	}

	body, err := res.GetByID(chi.URLParam(r, "id"), readOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFrom(w, r)
	if !ok {
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	body, err := res.Create(payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, http.StatusCreated, body)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFrom(w, r)
	if !ok {
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	body, err := res.Update(chi.URLParam(r, "id"), payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRaw(w, http.StatusOK, body)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resourceFrom(w, r)
	if !ok {
		return
	}

	if err := res.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProbationProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.probation.Progress(chi.URLParam(r, "salesID"), readOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleWeeksBySales(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.probation.WeeksBySalesID(chi.URLParam(r, "salesID"), readOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weeks)
}

// generateWeeksRequest is the body for POST /probation/{id}/weeks/generate.
type generateWeeksRequest struct {
	StartingDate string `json:"starting_date"`
	WeekCount    int    `json:"week_count,omitempty"`
}

func (s *Server) handleGenerateWeeks(w http.ResponseWriter, r *http.Request) {
	var req generateWeeksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	start, err := time.Parse(probation.DateLayout, req.StartingDate)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "starting_date must be formatted as " + probation.DateLayout,
		})
		return
	}

	weeks, err := s.probation.GenerateWeeksForSales(chi.URLParam(r, "salesID"), start, req.WeekCount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, weeks)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeRaw writes an already-encoded JSON body
func (s *Server) writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		s.log.Error().Err(err).Msg("Failed to write response body")
	}
}

// writeError maps a gateway error kind to an HTTP status while keeping
// the stable kind and message in the body for the dashboard's retry
// affordance.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *gateway.Error
	if !errors.As(err, &apiErr) {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"kind":  string(gateway.KindUnknown),
			"error": err.Error(),
		})
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Kind {
	case gateway.KindUnauthorized:
		status = http.StatusUnauthorized
	case gateway.KindForbidden:
		status = http.StatusForbidden
	case gateway.KindNotFound:
		status = http.StatusNotFound
	case gateway.KindRateLimited:
		status = http.StatusTooManyRequests
	case gateway.KindTimeout, gateway.KindNetworkError:
		status = http.StatusBadGateway
	}

	s.writeJSON(w, status, map[string]string{
		"kind":  string(apiErr.Kind),
		"error": apiErr.Error(),
	})
}
