package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deckhand-ai/deckhand/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Category {
	case core.ErrCatValidation:
		status = http.StatusUnprocessableEntity
	case core.ErrCatRouting:
		status = http.StatusServiceUnavailable
	case core.ErrCatRateLimit:
		status = http.StatusTooManyRequests
	case core.ErrCatTimeout:
		status = http.StatusGatewayTimeout
	case core.ErrCatNetwork:
		status = http.StatusBadGateway
	case core.ErrCatState:
		status = http.StatusConflict
	}
	respondJSON(w, status, errorResponse{Error: domErr.Message, Code: domErr.Code})
}
