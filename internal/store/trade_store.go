package store

import (
	"context"

	"nationsim/internal/models"
)

type TradeStore struct {
	db DB
}

type TradeInput struct {
	Offerer  int64
	Offeree  int64
	Type     string
	Resource string
	Amount   int64
	Price    int64
}

// TradeWithCounterparty is a pending trade joined with the other party's
// username for the my-offers view.
type TradeWithCounterparty struct {
	OfferID      int64  `db:"offer_id"`
	Offerer      int64  `db:"offerer"`
	Offeree      int64  `db:"offeree"`
	Counterparty string `db:"counterparty"`
	Type         string `db:"type"`
	Resource     string `db:"resource"`
	Amount       int64  `db:"amount"`
	Price        int64  `db:"price"`
}

func NewTradeStore(db DB) *TradeStore {
	return &TradeStore{db: db}
}

func (s *TradeStore) Insert(ctx context.Context, tx Tx, input TradeInput) (int64, error) {
	var tradeID int64
	err := tx.GetContext(ctx, &tradeID, `
		INSERT INTO trades (offerer, offeree, type, resource, amount, price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING offer_id
	`, input.Offerer, input.Offeree, input.Type, input.Resource, input.Amount, input.Price)
	return tradeID, err
}

// DeleteReturning removes the trade row and hands back its contents in one
// atomic statement. Of N concurrent settlement attempts exactly one sees the
// row; the rest get sql.ErrNoRows. Rolling back the enclosing transaction
// restores the row, so a failed settlement leaves the trade pending.
func (s *TradeStore) DeleteReturning(ctx context.Context, tx Getter, tradeID int64) (models.Trade, error) {
	var trade models.Trade
	err := tx.GetContext(ctx, &trade, `
		DELETE FROM trades
		WHERE offer_id = $1
		RETURNING offer_id, offerer, offeree, type, resource, amount, price, created_at
	`, tradeID)
	return trade, err
}

func (s *TradeStore) ListOutgoing(ctx context.Context, userID int64) ([]TradeWithCounterparty, error) {
	var rows []TradeWithCounterparty
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.offer_id, t.offerer, t.offeree, u.username AS counterparty,
		       t.type, t.resource, t.amount, t.price
		FROM trades t
		INNER JOIN users u ON t.offeree = u.id
		WHERE t.offerer = $1
		ORDER BY t.offer_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TradeStore) ListIncoming(ctx context.Context, userID int64) ([]TradeWithCounterparty, error) {
	var rows []TradeWithCounterparty
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.offer_id, t.offerer, t.offeree, u.username AS counterparty,
		       t.type, t.resource, t.amount, t.price
		FROM trades t
		INNER JOIN users u ON t.offerer = u.id
		WHERE t.offeree = $1
		ORDER BY t.offer_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
