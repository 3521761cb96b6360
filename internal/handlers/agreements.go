package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"nationsim/internal/middleware"
	"nationsim/internal/services"
)

type proposeAgreementRequest struct {
	Receiver         int64  `json:"receiver"`
	ProposerResource string `json:"proposer_resource"`
	ProposerAmount   int64  `json:"proposer_amount"`
	ReceiverResource string `json:"receiver_resource"`
	ReceiverAmount   int64  `json:"receiver_amount"`
	IntervalHours    int    `json:"interval_hours"`
	MaxExecutions    *int   `json:"max_executions"`
	Message          string `json:"message"`
}

func (h *Handler) ProposeAgreement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req proposeAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	agreementID, err := h.agreements.ProposeAgreement(r.Context(), services.ProposeAgreementParams{
		ProposerID:       userID,
		ProposerResource: req.ProposerResource,
		ProposerAmount:   req.ProposerAmount,
		ReceiverID:       req.Receiver,
		ReceiverResource: req.ReceiverResource,
		ReceiverAmount:   req.ReceiverAmount,
		IntervalHours:    req.IntervalHours,
		MaxExecutions:    req.MaxExecutions,
		Message:          req.Message,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"agreement_id": agreementID})
}

func (h *Handler) AcceptAgreement(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	agreementID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agreement id")
		return
	}
	outcome, err := h.agreements.AcceptAgreement(r.Context(), userID, agreementID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "accepted",
		"first_execution": outcome,
	})
}

func (h *Handler) RejectAgreement(w http.ResponseWriter, r *http.Request) {
	h.agreementLifecycle(w, r, h.agreements.RejectAgreement, "rejected")
}

func (h *Handler) CancelAgreement(w http.ResponseWriter, r *http.Request) {
	h.agreementLifecycle(w, r, h.agreements.CancelAgreement, "cancelled")
}

func (h *Handler) ResumeAgreement(w http.ResponseWriter, r *http.Request) {
	h.agreementLifecycle(w, r, h.agreements.ResumeAgreement, "active")
}

func (h *Handler) agreementLifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, callerID, agreementID int64) error, status string) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	agreementID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agreement id")
		return
	}
	if err := op(r.Context(), userID, agreementID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) ListAgreements(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	agreements, err := h.agreements.ListAgreements(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"agreements": agreements})
}
