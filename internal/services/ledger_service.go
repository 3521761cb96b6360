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
	"nationsim/internal/resources"
	"nationsim/internal/store"
	"nationsim/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// LedgerService owns the single primitive every settlement path goes through:
// moving one quantity of one resource (or money) between two accounts.
type LedgerService struct {
	txRunner db.TxRunner
	balances BalanceStore
	audit    AuditStore
	hub      BalanceHub
	logger   *slog.Logger
}

// TransferBalances carries the post-transfer balances for broadcasting.
// A bank side is reported as zero and must not be surfaced.
type TransferBalances struct {
	Giver int64
	Taker int64
}

func NewLedgerService(txRunner db.TxRunner, balances BalanceStore, audit AuditStore, hub BalanceHub, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		balances: balances,
		audit:    audit,
		hub:      hub,
		logger:   logger,
	}
}

// Transfer moves amount of resource from giver to taker on the caller's
// transaction. Validation order: resource name first, then amount. A non-bank
// giver is debited with a single conditional statement, so two racing
// transfers can never both pass a stale sufficiency check; a non-bank taker
// is credited in the same transaction. Business failures leave both balances
// untouched once the enclosing transaction rolls back.
func (s *LedgerService) Transfer(ctx context.Context, tx store.Tx, giver, taker int64, resource string, amount int64) (TransferBalances, error) {
	if !resources.Valid(resource) && !resources.IsMoney(resource) {
		return TransferBalances{}, fmt.Errorf("%w: %q", ErrInvalidResource, resource)
	}
	if amount < 1 {
		return TransferBalances{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	var result TransferBalances
	if giver != Bank {
		balance, err := s.balances.DebitIfSufficient(ctx, tx, giver, resource, amount)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return TransferBalances{}, s.insufficientError(ctx, tx, giver, resource, amount)
			}
			return TransferBalances{}, err
		}
		result.Giver = balance
	}
	if taker != Bank {
		balance, err := s.balances.Credit(ctx, tx, taker, resource, amount)
		if err != nil {
			return TransferBalances{}, err
		}
		result.Taker = balance
	}
	return result, nil
}

// Send is the direct player-to-player transfer: one ledger move in its own
// transaction, audited and broadcast.
func (s *LedgerService) Send(ctx context.Context, giver, taker int64, resource string, amount int64) error {
	if giver == taker {
		return ErrSelfTrade
	}
	var balances TransferBalances
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		balances, err = s.Transfer(ctx, tx, giver, taker, resource, amount)
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"giver":    giver,
			"taker":    taker,
			"resource": resource,
			"amount":   amount,
		})
		return s.audit.Log(ctx, tx, &giver, "transfer", "user", strconv.FormatInt(taker, 10), string(data))
	})
	if err != nil {
		return err
	}
	s.logger.Info("transfer_executed",
		slog.Int64("giver", giver),
		slog.Int64("taker", taker),
		slog.String("resource", resource),
		slog.Int64("amount", amount),
	)
	if giver != Bank {
		s.hub.BroadcastBalance(giver, websocket.BalanceUpdate{Resource: resource, Balance: balances.Giver})
	}
	if taker != Bank {
		s.hub.BroadcastBalance(taker, websocket.BalanceUpdate{Resource: resource, Balance: balances.Taker})
	}
	return nil
}

// insufficientError re-reads the current balance so the failure message can
// state the shortfall. The failed conditional update did not mutate anything.
func (s *LedgerService) insufficientError(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) error {
	kind := ErrInsufficientResource
	if resources.IsMoney(resource) {
		kind = ErrInsufficientFunds
	}
	balance, err := s.balances.Get(ctx, tx, userID, resource)
	if err != nil {
		return fmt.Errorf("%w: need %d %s", kind, amount, resource)
	}
	return fmt.Errorf("%w: have %d %s, need %d", kind, balance, resource, amount)
}
