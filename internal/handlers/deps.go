package handlers

import (
	"context"

	"nationsim/internal/models"
	"nationsim/internal/services"
	"nationsim/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Tx, username, passwordHash string) (int64, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID int64) (models.User, error)
}

type BalanceStore interface {
	CreateFor(ctx context.Context, tx store.Execer, userID int64) error
	GetGold(ctx context.Context, userID int64) (int64, error)
	GetResources(ctx context.Context, userID int64) (store.ResourceBalances, error)
}

type OfferReader interface {
	ListByOwner(ctx context.Context, userID int64) ([]models.Offer, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID *int64, action, entityType, entityID, data string) error
}

type LedgerService interface {
	Send(ctx context.Context, giver, taker int64, resource string, amount int64) error
}

type MarketService interface {
	PostOffer(ctx context.Context, userID int64, side, resource string, amount, price int64) (int64, error)
	AcceptOffer(ctx context.Context, callerID, offerID, amountWanted int64) error
	WithdrawOffer(ctx context.Context, callerID, offerID int64) error
	ListOffers(ctx context.Context, params services.ListOffersParams) (services.OfferPage, error)
	Summary(ctx context.Context) ([]services.ResourceSummary, error)
}

type TradeService interface {
	ProposeTrade(ctx context.Context, offererID, offereeID int64, side, resource string, amount, price int64) (int64, error)
	AcceptTrade(ctx context.Context, callerID, tradeID int64) error
	DeclineTrade(ctx context.Context, callerID, tradeID int64) error
	ListTrades(ctx context.Context, userID int64) (services.TradeListing, error)
}

type AgreementService interface {
	ProposeAgreement(ctx context.Context, params services.ProposeAgreementParams) (int64, error)
	AcceptAgreement(ctx context.Context, callerID, agreementID int64) (services.ExecuteOutcome, error)
	RejectAgreement(ctx context.Context, callerID, agreementID int64) error
	CancelAgreement(ctx context.Context, callerID, agreementID int64) error
	ResumeAgreement(ctx context.Context, callerID, agreementID int64) error
	ListAgreements(ctx context.Context, userID int64) ([]store.AgreementWithNames, error)
}
