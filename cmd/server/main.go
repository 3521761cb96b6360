package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nationsim/internal/config"
	"nationsim/internal/db"
	"nationsim/internal/handlers"
	"nationsim/internal/logging"
	"nationsim/internal/scheduler"
	"nationsim/internal/services"
	"nationsim/internal/store"
	"nationsim/internal/websocket"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.AppEnv)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	balances := store.NewBalanceStore(database)
	offers := store.NewOfferStore(database)
	trades := store.NewTradeStore(database)
	agreements := store.NewAgreementStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	ledger := services.NewLedgerService(txRunner, balances, audit, hub, logger)
	market := services.NewMarketService(txRunner, ledger, offers, audit, hub, logger, cfg.MarketPageSize)
	tradeService := services.NewTradeService(txRunner, ledger, trades, users, audit, hub, logger)
	agreementService := services.NewAgreementService(txRunner, ledger, agreements, balances, users, audit, hub, logger)

	handler := handlers.New(txRunner, cfg, users, balances, offers, audit, ledger, market, tradeService, agreementService, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	sched := scheduler.New(agreements, agreementService, cfg.AgreementInterval, logger)
	go sched.Run(schedCtx)

	go func() {
		logger.Info("server_listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
