package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string              `json:"error"`
	Message   string              `json:"message"`
	Code      string              `json:"code"`
	Fields    []domain.FieldError `json:"fields,omitempty"`
	RequestID string              `json:"request_id"`
	Timestamp time.Time           `json:"timestamp"`
}

// HealthResponse reports service and store health
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Database  persistence.HealthCheck `json:"database"`
}

// ScoresResponse wraps the score trail
type ScoresResponse struct {
	Count  int                 `json:"count"`
	Scores []domain.ScoreEntry `json:"scores"`
}

// ConflictsResponse wraps the active conflict set
type ConflictsResponse struct {
	Count     int                      `json:"count"`
	Conflicts []domain.ConflictPattern `json:"conflicts"`
}

// WeightsResponse carries the latest weights, absent before the gate
type WeightsResponse struct {
	Available bool                `json:"available"`
	Weights   *domain.WeightState `json:"weights,omitempty"`
}

// writeJSON writes JSON response with proper error handling
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields []domain.FieldError) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Fields:    fields,
		RequestID: requestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError maps application errors onto status codes
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		s.writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", "Entry failed validation", verrs)
	case errors.Is(err, domain.ErrEntryNotFound):
		s.writeError(w, r, http.StatusNotFound, "entry_not_found", err.Error(), nil)
	case errors.Is(err, application.ErrScoreNotFound):
		s.writeError(w, r, http.StatusNotFound, "score_not_found", err.Error(), nil)
	case errors.Is(err, application.ErrEntryExists):
		s.writeError(w, r, http.StatusConflict, "entry_exists", err.Error(), nil)
	case errors.Is(err, application.ErrNoPriorScore):
		s.writeError(w, r, http.StatusConflict, "no_prior_score", err.Error(), nil)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.writeError(w, r, http.StatusServiceUnavailable, "store_unavailable", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, r, http.StatusGatewayTimeout, "timeout", "Request timed out", nil)
	default:
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
		s.writeError(w, r, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// decodeEntry reads an EntryInput body, writing the error response on failure
func (s *Server) decodeEntry(w http.ResponseWriter, r *http.Request) (domain.Entry, bool) {
	var in application.EntryInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_body", fmt.Sprintf("Invalid JSON body: %v", err), nil)
		return domain.Entry{}, false
	}

	entry, errs := in.Entry()
	if len(errs) > 0 {
		s.writeError(w, r, http.StatusUnprocessableEntity, "validation_failed", "Entry failed validation", errs)
		return domain.Entry{}, false
	}
	return entry, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	check := s.health.Health(r.Context())

	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Database: check}
	status := http.StatusOK
	if !check.Healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Entries(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]application.EntryInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, application.InputFrom(e))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	ws, err := s.service.Weights(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, WeightsResponse{Available: ws != nil, Weights: ws})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	var tr persistence.TimeRange
	bounds := []struct {
		param string
		dst   *time.Time
	}{{"from", &tr.From}, {"to", &tr.To}}
	for _, b := range bounds {
		param, dst := b.param, b.dst
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		t, err := application.ParseDate(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid_range", fmt.Sprintf("%s: %v", param, err), nil)
			return
		}
		*dst = t
	}

	scores, err := s.service.Scores(r.Context(), tr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if scores == nil {
		scores = []domain.ScoreEntry{}
	}
	s.writeJSON(w, http.StatusOK, ScoresResponse{Count: len(scores), Scores: scores})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	attribution, err := s.service.Explain(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, attribution)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.service.Conflicts(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if conflicts == nil {
		conflicts = []domain.ConflictPattern{}
	}
	s.writeJSON(w, http.StatusOK, ConflictsResponse{Count: len(conflicts), Conflicts: conflicts})
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}

	outcome, err := s.service.AddEntry(r.Context(), entry)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}

	outcome, err := s.service.UpdateEntry(r.Context(), mux.Vars(r)["id"], entry)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.DeleteEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Backfill(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleNotFound handles 404 responses
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist", nil)
}
