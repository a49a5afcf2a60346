package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

// ObservationRequest is the payload of POST /api/v1/sessions/{id}/observations.
type ObservationRequest struct {
	Performance *int `json:"performance"`
	Feedback    *int `json:"feedback"`
}

// ingest handles POST /api/v1/sessions/{id}/observations
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ObservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Performance == nil || req.Feedback == nil {
		writeError(w, http.StatusBadRequest, "performance and feedback are required")
		return
	}

	u, err := s.sessions.Ingest(r.Context(), id, *req.Performance, *req.Feedback)
	if err != nil {
		if errors.Is(err, trust.ErrInvalidObservation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ingest failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// estimate handles GET /api/v1/sessions/{id}/estimate
func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Estimate(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// reset handles DELETE /api/v1/sessions/{id}
func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reset(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSessions handles GET /api/v1/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.Sessions()
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids, "count": len(ids)})
}

// listHistory handles GET /api/v1/sessions/{id}/history
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "history requires DATABASE_URL")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
		limit = n
	}

	updates, err := s.history.ListEstimates(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("history failed: %v", err))
		return
	}
	if updates == nil {
		updates = []session.Update{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": updates, "count": len(updates)})
}

// storedParameters handles GET /api/v1/sessions/{id}/parameters. It reads
// the database, so it answers for sessions this process has not seen since
// a restart.
func (s *Server) storedParameters(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "stored parameters require DATABASE_URL")
		return
	}

	id := chi.URLParam(r, "id")
	params, n, err := s.history.GetParameters(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("parameters failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   id,
		"params":       params,
		"observations": n,
	})
}
