package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"nationsim/internal/auth"
	"nationsim/internal/middleware"
	"nationsim/internal/resources"
	"nationsim/internal/websocket"
)

// Balances returns the caller's money plus every resource balance.
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	gold, err := h.balances.GetGold(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load balances")
		return
	}
	res, err := h.balances.GetResources(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load balances")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"money":     gold,
		"resources": res.Map(),
	})
}

type transferRequest struct {
	Recipient int64  `json:"recipient"`
	Resource  string `json:"resource"`
	Amount    int64  `json:"amount"`
}

// Transfer moves money or a resource directly to another user.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	resource := req.Resource
	if resources.IsMoney(resource) {
		resource = resources.Money
	}
	if err := h.ledger.Send(r.Context(), userID, req.Recipient, resource, req.Amount); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
