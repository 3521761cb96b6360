package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"nationsim/internal/middleware"
	"nationsim/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	params := services.ListOffersParams{
		Resource:  query.Get("resource"),
		Side:      query.Get("side"),
		PriceDesc: query.Get("sort") == "price_desc",
		Page:      page,
	}
	result, err := h.market.ListOffers(r.Context(), params)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) MarketSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.market.Summary(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

type postOfferRequest struct {
	Side     string `json:"side"`
	Resource string `json:"resource"`
	Amount   int64  `json:"amount"`
	Price    int64  `json:"price"`
}

func (h *Handler) PostOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req postOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	offerID, err := h.market.PostOffer(r.Context(), userID, req.Side, req.Resource, req.Amount, req.Price)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"offer_id": offerID})
}

type acceptOfferRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offerID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid offer id")
		return
	}
	var req acceptOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.market.AcceptOffer(r.Context(), userID, offerID, req.Amount); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "filled"})
}

func (h *Handler) WithdrawOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offerID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid offer id")
		return
	}
	if err := h.market.WithdrawOffer(r.Context(), userID, offerID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// MyOffers combines the caller's open market offers with their pending
// bilateral trades, matching the country management view.
func (h *Handler) MyOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offers, err := h.offers.ListByOwner(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	trades, err := h.trades.ListTrades(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"market_offers":   offers,
		"outgoing_trades": trades.Outgoing,
		"incoming_trades": trades.Incoming,
	})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
