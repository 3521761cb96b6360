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
)

// TradeService handles bilateral trades: a direct offer from one named user
// to another. The offerer's side is escrowed at proposal time; settlement
// deletes the trade row in the same transaction as both transfers, so a trade
// settles at most once no matter how many callers race on it.
type TradeService struct {
	txRunner db.TxRunner
	ledger   Ledger
	trades   TradeStore
	users    UserStore
	audit    AuditStore
	hub      BalanceHub
	logger   *slog.Logger
}

type TradeStore interface {
	Insert(ctx context.Context, tx store.Tx, input store.TradeInput) (int64, error)
	DeleteReturning(ctx context.Context, tx store.Getter, tradeID int64) (models.Trade, error)
	ListOutgoing(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error)
	ListIncoming(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error)
}

func NewTradeService(txRunner db.TxRunner, ledger Ledger, trades TradeStore, users UserStore, audit AuditStore, hub BalanceHub, logger *slog.Logger) *TradeService {
	return &TradeService{
		txRunner: txRunner,
		ledger:   ledger,
		trades:   trades,
		users:    users,
		audit:    audit,
		hub:      hub,
		logger:   logger,
	}
}

// ProposeTrade escrows the offerer's side and records the pending trade.
// A "sell" trade offers resource for money; a "buy" trade offers money for
// resource. Escrow happens in the same transaction as the insert.
func (s *TradeService) ProposeTrade(ctx context.Context, offererID, offereeID int64, side, resource string, amount, price int64) (int64, error) {
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
	if offererID == offereeID {
		return 0, ErrSelfTrade
	}
	exists, err := s.users.Exists(ctx, offereeID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: user %d", ErrNotFound, offereeID)
	}
	escrowResource, escrowAmount := resource, amount
	if side == SideBuy {
		escrowResource, escrowAmount = resources.Money, amount*price
	}
	var tradeID int64
	var escrow TransferBalances
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		escrow, err = s.ledger.Transfer(ctx, tx, offererID, Bank, escrowResource, escrowAmount)
		if err != nil {
			return err
		}
		tradeID, err = s.trades.Insert(ctx, tx, store.TradeInput{
			Offerer:  offererID,
			Offeree:  offereeID,
			Type:     side,
			Resource: resource,
			Amount:   amount,
			Price:    price,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"offeree":  offereeID,
			"side":     side,
			"resource": resource,
			"amount":   amount,
			"price":    price,
		})
		return s.audit.Log(ctx, tx, &offererID, "trade_proposed", "trade", strconv.FormatInt(tradeID, 10), string(data))
	})
	if err != nil {
		return 0, err
	}
	s.hub.BroadcastBalance(offererID, websocket.BalanceUpdate{Resource: escrowResource, Balance: escrow.Giver})
	return tradeID, nil
}

// AcceptTrade settles a pending trade. Only the offeree may accept. For a
// sell trade the offeree pays money to the offerer and receives the escrowed
// resource; for a buy trade the offeree hands over the resource and receives
// the escrowed money.
func (s *TradeService) AcceptTrade(ctx context.Context, callerID, tradeID int64) error {
	var trade models.Trade
	var callerMoney, callerResource, offererBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		trade, err = s.trades.DeleteReturning(ctx, tx, tradeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: trade %d", ErrNotFound, tradeID)
			}
			return err
		}
		if trade.Offeree != callerID {
			return ErrNotAuthorized
		}
		total := trade.Amount * trade.Price
		if trade.Type == SideSell {
			money, err := s.ledger.Transfer(ctx, tx, callerID, trade.Offerer, resources.Money, total)
			if err != nil {
				return err
			}
			res, err := s.ledger.Transfer(ctx, tx, Bank, callerID, trade.Resource, trade.Amount)
			if err != nil {
				return err
			}
			callerMoney, callerResource, offererBalance = money.Giver, res.Taker, money.Taker
		} else {
			res, err := s.ledger.Transfer(ctx, tx, callerID, trade.Offerer, trade.Resource, trade.Amount)
			if err != nil {
				return err
			}
			money, err := s.ledger.Transfer(ctx, tx, Bank, callerID, resources.Money, total)
			if err != nil {
				return err
			}
			callerMoney, callerResource, offererBalance = money.Taker, res.Giver, res.Taker
		}
		data, _ := json.Marshal(map[string]any{
			"offerer":  trade.Offerer,
			"side":     trade.Type,
			"resource": trade.Resource,
			"amount":   trade.Amount,
			"price":    trade.Price,
		})
		return s.audit.Log(ctx, tx, &callerID, "trade_accepted", "trade", strconv.FormatInt(tradeID, 10), string(data))
	})
	if err != nil {
		return err
	}
	s.logger.Info("trade_executed",
		slog.Int64("trade_id", tradeID),
		slog.Int64("offerer", trade.Offerer),
		slog.Int64("offeree", trade.Offeree),
		slog.String("side", trade.Type),
		slog.String("resource", trade.Resource),
		slog.Int64("amount", trade.Amount),
		slog.Int64("price", trade.Price),
	)
	s.hub.BroadcastBalance(callerID, websocket.BalanceUpdate{Resource: resources.Money, Balance: callerMoney})
	s.hub.BroadcastBalance(callerID, websocket.BalanceUpdate{Resource: trade.Resource, Balance: callerResource})
	if trade.Type == SideSell {
		s.hub.BroadcastBalance(trade.Offerer, websocket.BalanceUpdate{Resource: resources.Money, Balance: offererBalance})
	} else {
		s.hub.BroadcastBalance(trade.Offerer, websocket.BalanceUpdate{Resource: trade.Resource, Balance: offererBalance})
	}
	return nil
}

// DeclineTrade cancels a pending trade and refunds the offerer's escrow.
// Either party may decline; the offerer declining is a withdrawal.
func (s *TradeService) DeclineTrade(ctx context.Context, callerID, tradeID int64) error {
	var refundResource string
	var refundBalance, offererID int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		trade, err := s.trades.DeleteReturning(ctx, tx, tradeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: trade %d", ErrNotFound, tradeID)
			}
			return err
		}
		if trade.Offerer != callerID && trade.Offeree != callerID {
			return ErrNotAuthorized
		}
		offererID = trade.Offerer
		refundAmount := trade.Amount
		refundResource = trade.Resource
		if trade.Type == SideBuy {
			refundResource = resources.Money
			refundAmount = trade.Amount * trade.Price
		}
		refund, err := s.ledger.Transfer(ctx, tx, Bank, trade.Offerer, refundResource, refundAmount)
		if err != nil {
			return err
		}
		refundBalance = refund.Taker
		data, _ := json.Marshal(map[string]any{
			"offerer":  trade.Offerer,
			"offeree":  trade.Offeree,
			"side":     trade.Type,
			"resource": trade.Resource,
			"amount":   trade.Amount,
			"price":    trade.Price,
		})
		return s.audit.Log(ctx, tx, &callerID, "trade_declined", "trade", strconv.FormatInt(tradeID, 10), string(data))
	})
	if err != nil {
		return err
	}
	s.hub.BroadcastBalance(offererID, websocket.BalanceUpdate{Resource: refundResource, Balance: refundBalance})
	return nil
}

// TradeListing is the my-offers view of pending bilateral trades.
type TradeListing struct {
	Outgoing []store.TradeWithCounterparty `json:"outgoing"`
	Incoming []store.TradeWithCounterparty `json:"incoming"`
}

func (s *TradeService) ListTrades(ctx context.Context, userID int64) (TradeListing, error) {
	outgoing, err := s.trades.ListOutgoing(ctx, userID)
	if err != nil {
		return TradeListing{}, err
	}
	incoming, err := s.trades.ListIncoming(ctx, userID)
	if err != nil {
		return TradeListing{}, err
	}
	return TradeListing{Outgoing: outgoing, Incoming: incoming}, nil
}
