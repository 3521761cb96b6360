package handlers

import (
	"encoding/json"
	"net/http"

	"nationsim/internal/middleware"
)

type proposeTradeRequest struct {
	Offeree  int64  `json:"offeree"`
	Side     string `json:"side"`
	Resource string `json:"resource"`
	Amount   int64  `json:"amount"`
	Price    int64  `json:"price"`
}

func (h *Handler) ProposeTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req proposeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	tradeID, err := h.trades.ProposeTrade(r.Context(), userID, req.Offeree, req.Side, req.Resource, req.Amount, req.Price)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"trade_id": tradeID})
}

func (h *Handler) AcceptTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trade id")
		return
	}
	if err := h.trades.AcceptTrade(r.Context(), userID, tradeID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handler) DeclineTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tradeID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trade id")
		return
	}
	if err := h.trades.DeclineTrade(r.Context(), userID, tradeID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	listing, err := h.trades.ListTrades(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}
