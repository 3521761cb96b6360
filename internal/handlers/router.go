package handlers

import (
	"net/http"

	"nationsim/internal/config"
	"nationsim/internal/db"
	"nationsim/internal/middleware"
	"nationsim/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner   db.TxRunner
	cfg        config.Config
	users      UserStore
	balances   BalanceStore
	offers     OfferReader
	audit      AuditStore
	ledger     LedgerService
	market     MarketService
	trades     TradeService
	agreements AgreementService
	hub        *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, balances BalanceStore, offers OfferReader, audit AuditStore, ledger LedgerService, market MarketService, trades TradeService, agreements AgreementService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:   txRunner,
		cfg:        cfg,
		users:      users,
		balances:   balances,
		offers:     offers,
		audit:      audit,
		ledger:     ledger,
		market:     market,
		trades:     trades,
		agreements: agreements,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/market", h.ListOffers)
		r.Get("/market/summary", h.MarketSummary)
		r.Post("/market/offers", h.PostOffer)
		r.Post("/market/offers/{id}/accept", h.AcceptOffer)
		r.Delete("/market/offers/{id}", h.WithdrawOffer)
		r.Get("/my-offers", h.MyOffers)
		r.Post("/trades", h.ProposeTrade)
		r.Get("/trades", h.ListTrades)
		r.Post("/trades/{id}/accept", h.AcceptTrade)
		r.Post("/trades/{id}/decline", h.DeclineTrade)
		r.Post("/agreements", h.ProposeAgreement)
		r.Get("/agreements", h.ListAgreements)
		r.Post("/agreements/{id}/accept", h.AcceptAgreement)
		r.Post("/agreements/{id}/reject", h.RejectAgreement)
		r.Post("/agreements/{id}/cancel", h.CancelAgreement)
		r.Post("/agreements/{id}/resume", h.ResumeAgreement)
		r.Get("/balances", h.Balances)
		r.Post("/transfer", h.Transfer)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
