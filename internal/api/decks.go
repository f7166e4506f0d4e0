package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/orchestrator"
	"github.com/deckhand-ai/deckhand/internal/store"
)

// generateRequest is the POST /api/v1/decks body.
type generateRequest struct {
	Topic      string `json:"topic"`
	SlideCount int    `json:"slide_count,omitempty"`
	Audience   string `json:"audience,omitempty"`
	Tone       string `json:"tone,omitempty"`
	Theme      string `json:"theme,omitempty"`
	Policy     string `json:"policy,omitempty"`
	LocalOnly  bool   `json:"local_only,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// handleGenerateDeck runs one generation synchronously. Progress is
// observable on the SSE stream while the request is in flight.
func (s *Server) handleGenerateDeck(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.genTimeout)
	defer cancel()

	deck, err := s.pipeline.Generate(ctx, orchestrator.Request{
		Topic:      req.Topic,
		SlideCount: req.SlideCount,
		Audience:   req.Audience,
		Tone:       req.Tone,
		Theme:      req.Theme,
		Policy:     req.Policy,
		LocalOnly:  req.LocalOnly,
		Priority:   core.Priority(req.Priority),
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	path, err := s.artifacts.Save(deck)
	if err != nil {
		s.logger.Error("deck artifact save failed", "deck_id", deck.ID, "error", err.Error())
	} else if err := s.history.Record(r.Context(), deck, path); err != nil {
		s.logger.Error("deck history record failed", "deck_id", deck.ID, "error", err.Error())
	}

	respondJSON(w, http.StatusCreated, deck)
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	deck, err := s.artifacts.Load(deckID)
	if err != nil {
		respondError(w, http.StatusNotFound, "no deck with ID "+deckID)
		return
	}
	respondJSON(w, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")
	if err := s.history.Delete(r.Context(), deckID); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.artifacts.Delete(deckID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": deckID})
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := s.models.List()
	type modelView struct {
		Name         string   `json:"name"`
		Kind         string   `json:"kind"`
		Capabilities []string `json:"capabilities"`
		Speed        string   `json:"speed"`
		Quality      string   `json:"quality"`
		Available    bool     `json:"available"`
	}
	out := make([]modelView, 0, len(models))
	for _, m := range models {
		out = append(out, modelView{
			Name:         m.Name,
			Kind:         string(m.Kind),
			Capabilities: m.Capabilities,
			Speed:        string(m.Speed),
			Quality:      string(m.Quality),
			Available:    s.models.IsAvailable(m, core.TaskContext{}),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"policies": s.policies.Names()})
}
