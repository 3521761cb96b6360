package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"nationsim/internal/db"
	"nationsim/internal/models"
	"nationsim/internal/resources"
	"nationsim/internal/store"
	"nationsim/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// MarketService runs the public order book: standing buy/sell offers anyone
// can fill. Escrow moves through the bank at posting time, so an open offer
// can never be double-spent elsewhere.
type MarketService struct {
	txRunner db.TxRunner
	ledger   Ledger
	offers   OfferStore
	audit    AuditStore
	hub      BalanceHub
	logger   *slog.Logger
	pageSize int
}

type OfferStore interface {
	Insert(ctx context.Context, tx store.Tx, input store.OfferInput) (int64, error)
	GetForUpdate(ctx context.Context, tx store.Getter, offerID int64) (models.Offer, error)
	DecrementAmount(ctx context.Context, tx store.Getter, offerID, amount int64) (int64, error)
	Delete(ctx context.Context, tx store.Execer, offerID int64) error
	List(ctx context.Context, filter store.OfferFilter) ([]store.OfferWithOwner, error)
	Count(ctx context.Context, filter store.OfferFilter) (int64, error)
	Stats(ctx context.Context) ([]store.ResourceMarketStat, error)
}

func NewMarketService(txRunner db.TxRunner, ledger Ledger, offers OfferStore, audit AuditStore, hub BalanceHub, logger *slog.Logger, pageSize int) *MarketService {
	return &MarketService{
		txRunner: txRunner,
		ledger:   ledger,
		offers:   offers,
		audit:    audit,
		hub:      hub,
		logger:   logger,
		pageSize: pageSize,
	}
}

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// PostOffer escrows the offered side to the bank and inserts the listing in
// one transaction: a failed escrow never leaves an offer row behind.
func (s *MarketService) PostOffer(ctx context.Context, userID int64, side, resource string, amount, price int64) (int64, error) {
	if side != SideBuy && side != SideSell {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if !resources.Valid(resource) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	if amount < 1 {
		return 0, fmt.Errorf("%w: amount %d", ErrInvalidAmount, amount)
	}
	if price < 1 {
		return 0, fmt.Errorf("%w: price %d", ErrInvalidAmount, price)
	}
	escrowResource, escrowAmount := resource, amount
	if side == SideBuy {
		escrowResource, escrowAmount = resources.Money, amount*price
	}
	var offerID int64
	var escrow TransferBalances
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		escrow, err = s.ledger.Transfer(ctx, tx, userID, Bank, escrowResource, escrowAmount)
		if err != nil {
			return err
		}
		offerID, err = s.offers.Insert(ctx, tx, store.OfferInput{
			UserID:   userID,
			Type:     side,
			Resource: resource,
			Amount:   amount,
			Price:    price,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"side":     side,
			"resource": resource,
			"amount":   amount,
			"price":    price,
		})
		return s.audit.Log(ctx, tx, &userID, "offer_posted", "offer", strconv.FormatInt(offerID, 10), string(data))
	})
	if err != nil {
		return 0, err
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{Resource: escrowResource, Balance: escrow.Giver})
	return offerID, nil
}

// AcceptOffer fills amountWanted units of an open offer. Filling a sell offer
// pays the owner and hands the escrowed resource to the caller; filling a buy
// offer takes the caller's resource and pays them from the escrowed money.
// The offer row is locked first and its amount decremented conditionally, so
// overlapping fills can never oversell the listing.
func (s *MarketService) AcceptOffer(ctx context.Context, callerID, offerID, amountWanted int64) error {
	var offer models.Offer
	var callerMoney, callerResource, ownerBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		offer, err = s.offers.GetForUpdate(ctx, tx, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: offer %d", ErrNotFound, offerID)
			}
			return err
		}
		if amountWanted < 1 {
			return fmt.Errorf("%w: amount %d", ErrInvalidAmount, amountWanted)
		}
		if amountWanted > offer.Amount {
			return fmt.Errorf("%w: want %d, offer has %d", ErrExceedsAvailable, amountWanted, offer.Amount)
		}
		total := amountWanted * offer.Price
		if offer.Type == SideSell {
			money, err := s.ledger.Transfer(ctx, tx, callerID, offer.UserID, resources.Money, total)
			if err != nil {
				return err
			}
			res, err := s.ledger.Transfer(ctx, tx, Bank, callerID, offer.Resource, amountWanted)
			if err != nil {
				return err
			}
			callerMoney, callerResource, ownerBalance = money.Giver, res.Taker, money.Taker
		} else {
			res, err := s.ledger.Transfer(ctx, tx, callerID, offer.UserID, offer.Resource, amountWanted)
			if err != nil {
				return err
			}
			money, err := s.ledger.Transfer(ctx, tx, Bank, callerID, resources.Money, total)
			if err != nil {
				return err
			}
			callerMoney, callerResource, ownerBalance = money.Taker, res.Giver, res.Taker
		}
		remaining, err := s.offers.DecrementAmount(ctx, tx, offerID, amountWanted)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: want %d, offer has %d", ErrExceedsAvailable, amountWanted, offer.Amount)
			}
			return err
		}
		if remaining == 0 {
			if err := s.offers.Delete(ctx, tx, offerID); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{
			"owner":    offer.UserID,
			"side":     offer.Type,
			"resource": offer.Resource,
			"amount":   amountWanted,
			"price":    offer.Price,
		})
		return s.audit.Log(ctx, tx, &callerID, "offer_filled", "offer", strconv.FormatInt(offerID, 10), string(data))
	})
	if err != nil {
		return err
	}
	s.logger.Info("offer_filled",
		slog.Int64("offer_id", offerID),
		slog.Int64("caller_id", callerID),
		slog.Int64("owner_id", offer.UserID),
		slog.String("side", offer.Type),
		slog.String("resource", offer.Resource),
		slog.Int64("amount", amountWanted),
		slog.Int64("price", offer.Price),
	)
	s.hub.BroadcastBalance(callerID, websocket.BalanceUpdate{Resource: resources.Money, Balance: callerMoney})
	s.hub.BroadcastBalance(callerID, websocket.BalanceUpdate{Resource: offer.Resource, Balance: callerResource})
	if offer.Type == SideSell {
		s.hub.BroadcastBalance(offer.UserID, websocket.BalanceUpdate{Resource: resources.Money, Balance: ownerBalance})
	} else {
		s.hub.BroadcastBalance(offer.UserID, websocket.BalanceUpdate{Resource: offer.Resource, Balance: ownerBalance})
	}
	return nil
}

// WithdrawOffer returns the escrowed side to the owner and removes the
// listing. Only the owner may withdraw.
func (s *MarketService) WithdrawOffer(ctx context.Context, callerID, offerID int64) error {
	var refundResource string
	var refundBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		offer, err := s.offers.GetForUpdate(ctx, tx, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: offer %d", ErrNotFound, offerID)
			}
			return err
		}
		if offer.UserID != callerID {
			return ErrNotOwner
		}
		refundAmount := offer.Amount
		refundResource = offer.Resource
		if offer.Type == SideBuy {
			refundResource = resources.Money
			refundAmount = offer.Amount * offer.Price
		}
		refund, err := s.ledger.Transfer(ctx, tx, Bank, callerID, refundResource, refundAmount)
		if err != nil {
			return err
		}
		refundBalance = refund.Taker
		if err := s.offers.Delete(ctx, tx, offerID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"side":     offer.Type,
			"resource": offer.Resource,
			"amount":   offer.Amount,
			"price":    offer.Price,
		})
		return s.audit.Log(ctx, tx, &callerID, "offer_withdrawn", "offer", strconv.FormatInt(offerID, 10), string(data))
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastBalance(callerID, websocket.BalanceUpdate{Resource: refundResource, Balance: refundBalance})
	return nil
}

type ListOffersParams struct {
	Resource  string
	Side      string
	PriceDesc bool
	Page      int
}

type OfferPage struct {
	Offers    []store.OfferWithOwner `json:"offers"`
	Total     int64                  `json:"total"`
	Page      int                    `json:"page"`
	PageCount int                    `json:"page_count"`
	PageSize  int                    `json:"page_size"`
}

// ListOffers returns one page of the order book with the owner usernames and
// the paging bounds the UI needs.
func (s *MarketService) ListOffers(ctx context.Context, params ListOffersParams) (OfferPage, error) {
	if params.Resource != "" && !resources.Valid(params.Resource) {
		return OfferPage{}, fmt.Errorf("%w: %q", ErrInvalidResource, params.Resource)
	}
	if params.Side != "" && params.Side != SideBuy && params.Side != SideSell {
		return OfferPage{}, fmt.Errorf("%w: %q", ErrInvalidSide, params.Side)
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	filter := store.OfferFilter{
		Resource:  params.Resource,
		Side:      params.Side,
		PriceDesc: params.PriceDesc,
		Limit:     s.pageSize,
		Offset:    (page - 1) * s.pageSize,
	}
	offers, err := s.offers.List(ctx, filter)
	if err != nil {
		return OfferPage{}, err
	}
	total, err := s.offers.Count(ctx, filter)
	if err != nil {
		return OfferPage{}, err
	}
	pageCount := int((total + int64(s.pageSize) - 1) / int64(s.pageSize))
	return OfferPage{
		Offers:    offers,
		Total:     total,
		Page:      page,
		PageCount: pageCount,
		PageSize:  s.pageSize,
	}, nil
}

type ResourceSummary struct {
	Resource     string `json:"resource"`
	Side         string `json:"side"`
	OfferCount   int64  `json:"offer_count"`
	TotalAmount  int64  `json:"total_amount"`
	TotalValue   int64  `json:"total_value"`
	AveragePrice string `json:"average_price"`
}

// Summary aggregates the open book per resource and side with a
// volume-weighted average price.
func (s *MarketService) Summary(ctx context.Context) ([]ResourceSummary, error) {
	stats, err := s.offers.Stats(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ResourceSummary, 0, len(stats))
	for _, stat := range stats {
		average := ""
		if stat.TotalAmount > 0 {
			average = decimal.NewFromInt(stat.TotalValue).
				Div(decimal.NewFromInt(stat.TotalAmount)).
				StringFixedBank(2)
		}
		summaries = append(summaries, ResourceSummary{
			Resource:     stat.Resource,
			Side:         stat.Side,
			OfferCount:   stat.OfferCount,
			TotalAmount:  stat.TotalAmount,
			TotalValue:   stat.TotalValue,
			AveragePrice: average,
		})
	}
	return summaries, nil
}
