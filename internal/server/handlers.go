package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/validation"
	"bikeshop-agent/internal/retrieval"
)

var errNoIndex = errors.New("no vector index built yet")

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, agenterrors.NewValidationFailedError("request body must be valid JSON"))
		return
	}

	result, err := validation.Validate(raw, validation.ChatRequestSchema)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !result.Valid {
		s.writeError(w, agenterrors.NewValidationFailedError(
			"invalid chat request: "+joinMessages(result.GetErrorMessages())))
		return
	}

	var req chatRequest
	payload, _ := json.Marshal(raw)
	if err := json.Unmarshal(payload, &req); err != nil {
		s.writeError(w, agenterrors.NewValidationFailedError("request body must be valid JSON"))
		return
	}

	turn, err := s.engine.ProcessTurn(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	state, ok := s.idx.Current()
	if !ok {
		s.writeError(w, agenterrors.NewRetrievalUnavailableError(errNoIndex))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"products":    state.Snapshot.Items,
		"fingerprint": state.Snapshot.Fingerprint,
		"fresh":       state.Fresh,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, agenterrors.NewValidationFailedError("query parameter q is required"))
		return
	}

	filters := retrieval.ParseFilters(query, s.retriever.Categories())
	if cat := r.URL.Query().Get("category"); cat != "" {
		filters.Category = cat
	}
	if raw := r.URL.Query().Get("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			filters.MaxPrice = v
		}
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			topK = v
		}
	}

	resp, err := s.retriever.Search(r.Context(), query, filters, topK)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	leads, err := s.leadStore.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics := map[string]interface{}{}

	if count, err := s.leadStore.Count(r.Context()); err == nil {
		analytics["total_leads"] = count
	} else {
		analytics["total_leads"] = nil
		s.logger.Warn("lead count failed", map[string]interface{}{"error": err.Error()})
	}

	if state, ok := s.idx.Current(); ok {
		analytics["catalog_items"] = len(state.Snapshot.Items)
		analytics["catalog_items_skipped"] = state.Snapshot.Skipped
		analytics["index_fresh"] = state.Fresh
	}

	s.writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := s.redis.Ping(r.Context()); err != nil {
		checks["redis"] = "unhealthy"
		healthy = false
	} else {
		checks["redis"] = "healthy"
	}

	if err := s.postgres.Ping(r.Context()); err != nil {
		checks["postgres"] = "unhealthy"
		healthy = false
	} else {
		checks["postgres"] = "healthy"
	}

	// A missing embedding backend degrades retrieval but does not take the
	// service down; it is reported without flipping overall health.
	if s.embedder != nil && s.embedder.IsHealthy(r.Context()) {
		checks["embedding"] = "healthy"
	} else {
		checks["embedding"] = "unhealthy"
	}

	if _, ok := s.idx.Current(); ok {
		checks["index"] = "ready"
	} else {
		checks["index"] = "empty"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", map[string]interface{}{"error": err.Error()})
	}
}

// writeError maps internal error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch agenterrors.CodeOf(err) {
	case agenterrors.ErrCodeValidationFailed, agenterrors.ErrCodeInputParsingFailed:
		status = http.StatusBadRequest
	case agenterrors.ErrCodeRetrievalUnavailable, agenterrors.ErrCodeGenerationUnavailable,
		agenterrors.ErrCodeCRMUnavailable:
		status = http.StatusServiceUnavailable
	}

	code := agenterrors.CodeOf(err)
	message := err.Error()

	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    string(code),
			"message": message,
		},
	})
}

func joinMessages(msgs []string) string {
	return strings.Join(msgs, "; ")
}
