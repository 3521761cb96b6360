package store

import (
	"context"
	"fmt"

	"nationsim/internal/models"
)

type OfferStore struct {
	db DB
}

type OfferInput struct {
	UserID   int64
	Type     string
	Resource string
	Amount   int64
	Price    int64
}

// OfferWithOwner is one market listing row joined with the owner's username.
type OfferWithOwner struct {
	OfferID    int64  `db:"offer_id"`
	UserID     int64  `db:"user_id"`
	Username   string `db:"username"`
	Type       string `db:"type"`
	Resource   string `db:"resource"`
	Amount     int64  `db:"amount"`
	Price      int64  `db:"price"`
	TotalPrice int64  `db:"total_price"`
}

// OfferFilter narrows and orders the market listing. Zero values mean "all".
type OfferFilter struct {
	Resource  string
	Side      string
	PriceDesc bool
	Limit     int
	Offset    int
}

// ResourceMarketStat aggregates open offers per resource and side.
type ResourceMarketStat struct {
	Resource    string `db:"resource"`
	Side        string `db:"type"`
	OfferCount  int64  `db:"offer_count"`
	TotalAmount int64  `db:"total_amount"`
	TotalValue  int64  `db:"total_value"`
}

func NewOfferStore(db DB) *OfferStore {
	return &OfferStore{db: db}
}

func (s *OfferStore) Insert(ctx context.Context, tx Tx, input OfferInput) (int64, error) {
	var offerID int64
	err := tx.GetContext(ctx, &offerID, `
		INSERT INTO offers (user_id, type, resource, amount, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING offer_id
	`, input.UserID, input.Type, input.Resource, input.Amount, input.Price)
	return offerID, err
}

// GetForUpdate locks the offer row for the duration of the transaction so
// concurrent fills of the same offer serialize.
func (s *OfferStore) GetForUpdate(ctx context.Context, tx Getter, offerID int64) (models.Offer, error) {
	var offer models.Offer
	err := tx.GetContext(ctx, &offer, `
		SELECT offer_id, user_id, type, resource, amount, price, created_at
		FROM offers
		WHERE offer_id = $1
		FOR UPDATE
	`, offerID)
	return offer, err
}

// DecrementAmount takes amount off the offer only while enough remains,
// returning the remaining amount. sql.ErrNoRows means another fill consumed
// the offer first.
func (s *OfferStore) DecrementAmount(ctx context.Context, tx Getter, offerID, amount int64) (int64, error) {
	var remaining int64
	err := tx.GetContext(ctx, &remaining, `
		UPDATE offers SET amount = amount - $1
		WHERE offer_id = $2 AND amount >= $1
		RETURNING amount
	`, amount, offerID)
	return remaining, err
}

func (s *OfferStore) Delete(ctx context.Context, tx Execer, offerID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE offer_id = $1`, offerID)
	return err
}

func (s *OfferStore) List(ctx context.Context, filter OfferFilter) ([]OfferWithOwner, error) {
	query := `
		SELECT o.offer_id, o.user_id, u.username, o.type, o.resource, o.amount, o.price,
		       o.amount * o.price AS total_price
		FROM offers o
		INNER JOIN users u ON o.user_id = u.id
	`
	where, args := filter.whereClause()
	query += where
	if filter.PriceDesc {
		query += " ORDER BY o.price DESC, o.offer_id ASC"
	} else {
		query += " ORDER BY o.price ASC, o.offer_id ASC"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))
	var rows []OfferWithOwner
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OfferStore) Count(ctx context.Context, filter OfferFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM offers o`
	where, args := filter.whereClause()
	query += where
	var total int64
	err := s.db.GetContext(ctx, &total, query, args...)
	return total, err
}

func (s *OfferStore) ListByOwner(ctx context.Context, userID int64) ([]models.Offer, error) {
	var rows []models.Offer
	err := s.db.SelectContext(ctx, &rows, `
		SELECT offer_id, user_id, type, resource, amount, price, created_at
		FROM offers
		WHERE user_id = $1
		ORDER BY offer_id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OfferStore) Stats(ctx context.Context) ([]ResourceMarketStat, error) {
	var rows []ResourceMarketStat
	err := s.db.SelectContext(ctx, &rows, `
		SELECT resource, type, COUNT(*) AS offer_count,
		       SUM(amount) AS total_amount, SUM(amount * price) AS total_value
		FROM offers
		GROUP BY resource, type
		ORDER BY resource, type
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f OfferFilter) whereClause() (string, []any) {
	where := ""
	var args []any
	appendCond := func(cond string, value any) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		args = append(args, value)
		where += "o." + cond + " = $" + itoa(len(args))
	}
	if f.Resource != "" {
		appendCond("resource", f.Resource)
	}
	if f.Side != "" {
		appendCond("type", f.Side)
	}
	return where, args
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}
