package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

func (s *Server) handleListLadders(w http.ResponseWriter, r *http.Request) {
	ladders := s.ladders.List()
	summaries := make([]models.LadderSummary, 0, len(ladders))
	for _, l := range ladders {
		summaries = append(summaries, l.Summary())
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ladders": summaries,
		"total":   len(summaries),
	})
}

func (s *Server) handleGetLadder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "ladder id is required")
		return
	}

	l := s.ladders.Get(id)
	if l == nil {
		respondError(w, http.StatusNotFound, "not_found", "ladder not found")
		return
	}

	respondJSON(w, http.StatusOK, l)
}
