package services

import (
	"context"

	"nationsim/internal/store"
	"nationsim/internal/websocket"
)

// Bank is the sentinel pseudo-account used as escrow counterparty and as the
// source/sink for system-granted value. It has no balance rows: the ledger
// never checks or mutates the bank side of a transfer.
const Bank int64 = 0

type BalanceStore interface {
	DebitIfSufficient(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error)
	Credit(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error)
	Get(ctx context.Context, q store.Getter, userID int64, resource string) (int64, error)
}

// Ledger is the transfer primitive as seen by the settlement services.
type Ledger interface {
	Transfer(ctx context.Context, tx store.Tx, giver, taker int64, resource string, amount int64) (TransferBalances, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID *int64, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID int64, update websocket.BalanceUpdate)
}

type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}
