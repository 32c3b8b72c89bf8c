package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/memstore"
	"github.com/mnemo-dev/mnemo/internal/telemetry"
)

// writeJSON writes data as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Nothing left to do: headers are already written.
		return
	}
}

// writeError maps a returned error to an HTTP status: an id-validation
// failure is the caller's mistake (400), everything else is a server
// fault (500).
func writeError(w http.ResponseWriter, err error) {
	var invalidID *config.InvalidIDError
	if errors.As(err, &invalidID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Input    string                 `json:"input"`
	UserID   string                 `json:"user_id"`
	Mode     string                 `json:"mode"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	mode := memstore.ModeNormal
	switch req.Mode {
	case string(memstore.ModeSummary):
		mode = memstore.ModeSummary
	case string(memstore.ModeInit):
		mode = memstore.ModeInit
	}

	results, err := s.engine.Ingest(r.Context(), req.Input, req.UserID, memstore.IngestOptions{
		Mode:         mode,
		BaseMetadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type searchRequest struct {
	Query         string   `json:"query"`
	UserID        string   `json:"user_id"`
	Limit         int      `json:"limit"`
	Threshold     float64  `json:"threshold"`
	RecencyWeight float64  `json:"recency_weight"`
	Types         []string `json:"types"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	results, err := s.engine.Search(r.Context(), req.Query, req.UserID, memstore.SearchOptions{
		Limit:         req.Limit,
		Threshold:     req.Threshold,
		RecencyWeight: req.RecencyWeight,
		Types:         req.Types,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	includeSuperseded := r.URL.Query().Get("include_superseded") == "true"

	memories, err := s.engine.List(r.Context(), userID, memstore.ListOptions{
		Limit:             limit,
		IncludeSuperseded: includeSuperseded,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	profile, err := s.engine.GetProfile(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (s *Server) handleCostSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Load(); err != nil {
		s.log.Warn().Err(err).Msg("cost snapshot: reload from disk failed, serving in-memory state")
	}
	snap := s.ledger.Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleActivityRecent(w http.ResponseWriter, r *http.Request) {
	if err := s.activity.Load(); err != nil {
		s.log.Warn().Err(err).Msg("activity snapshot: reload from disk failed, serving in-memory state")
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries := s.activity.Recent(limit)
	if entries == nil {
		entries = []telemetry.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleNamesSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.names.Load(); err != nil {
		s.log.Warn().Err(err).Msg("names snapshot: reload from disk failed, serving in-memory state")
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": s.names.Snapshot()})
}
