package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"nationsim/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError translates service error kinds into HTTP statuses.
// Unknown errors are treated as internal and their detail is not echoed back.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotOwner), errors.Is(err, services.ErrNotAuthorized):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInsufficientResource),
		errors.Is(err, services.ErrInvalidState):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidResource),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidSide),
		errors.Is(err, services.ErrInvalidInterval),
		errors.Is(err, services.ErrExceedsAvailable),
		errors.Is(err, services.ErrSelfTrade):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
