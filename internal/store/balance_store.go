package store

import (
	"context"
	"fmt"

	"nationsim/internal/resources"
)

// BalanceStore mutates the per-user balance rows: currency in stats.gold and
// one column per resource in the resources table. Column identifiers are
// resolved through the resources allow-list before any SQL is built, never
// taken from caller input directly.
type BalanceStore struct {
	db DB
}

type ResourceBalances struct {
	Rations       int64 `db:"rations"`
	Oil           int64 `db:"oil"`
	Coal          int64 `db:"coal"`
	Uranium       int64 `db:"uranium"`
	Bauxite       int64 `db:"bauxite"`
	Lead          int64 `db:"lead"`
	Copper        int64 `db:"copper"`
	Iron          int64 `db:"iron"`
	Lumber        int64 `db:"lumber"`
	Components    int64 `db:"components"`
	Steel         int64 `db:"steel"`
	ConsumerGoods int64 `db:"consumer_goods"`
	Aluminium     int64 `db:"aluminium"`
	Gasoline      int64 `db:"gasoline"`
	Ammunition    int64 `db:"ammunition"`
}

func NewBalanceStore(db DB) *BalanceStore {
	return &BalanceStore{db: db}
}

// CreateFor inserts the stats and resources rows for a freshly registered
// user; starting balances come from the column defaults.
func (s *BalanceStore) CreateFor(ctx context.Context, tx Execer, userID int64) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO stats (id) VALUES ($1)`, userID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO resources (id) VALUES ($1)`, userID)
	return err
}

// DebitIfSufficient decrements the balance in a single conditional statement
// and returns the new balance. When the balance does not cover amount no row
// matches and sql.ErrNoRows comes back with the balance untouched.
func (s *BalanceStore) DebitIfSufficient(ctx context.Context, tx Getter, userID int64, resource string, amount int64) (int64, error) {
	var balance int64
	if resources.IsMoney(resource) {
		err := tx.GetContext(ctx, &balance, `
			UPDATE stats SET gold = gold - $1
			WHERE id = $2 AND gold >= $1
			RETURNING gold
		`, amount, userID)
		return balance, err
	}
	column, ok := resources.Column(resource)
	if !ok {
		return 0, fmt.Errorf("no balance column for resource %q", resource)
	}
	query := fmt.Sprintf(`
		UPDATE resources SET %[1]s = %[1]s - $1
		WHERE id = $2 AND %[1]s >= $1
		RETURNING %[1]s
	`, column)
	err := tx.GetContext(ctx, &balance, query, amount, userID)
	return balance, err
}

// Credit increments the balance unconditionally and returns the new value.
func (s *BalanceStore) Credit(ctx context.Context, tx Getter, userID int64, resource string, amount int64) (int64, error) {
	var balance int64
	if resources.IsMoney(resource) {
		err := tx.GetContext(ctx, &balance, `
			UPDATE stats SET gold = gold + $1
			WHERE id = $2
			RETURNING gold
		`, amount, userID)
		return balance, err
	}
	column, ok := resources.Column(resource)
	if !ok {
		return 0, fmt.Errorf("no balance column for resource %q", resource)
	}
	query := fmt.Sprintf(`
		UPDATE resources SET %[1]s = %[1]s + $1
		WHERE id = $2
		RETURNING %[1]s
	`, column)
	err := tx.GetContext(ctx, &balance, query, amount, userID)
	return balance, err
}

// Get reads one balance through q, which may be a transaction or the pool.
func (s *BalanceStore) Get(ctx context.Context, q Getter, userID int64, resource string) (int64, error) {
	var balance int64
	if resources.IsMoney(resource) {
		err := q.GetContext(ctx, &balance, `SELECT gold FROM stats WHERE id = $1`, userID)
		return balance, err
	}
	column, ok := resources.Column(resource)
	if !ok {
		return 0, fmt.Errorf("no balance column for resource %q", resource)
	}
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE id = $1`, column)
	err := q.GetContext(ctx, &balance, query, userID)
	return balance, err
}

func (s *BalanceStore) GetGold(ctx context.Context, userID int64) (int64, error) {
	var gold int64
	err := s.db.GetContext(ctx, &gold, `SELECT gold FROM stats WHERE id = $1`, userID)
	return gold, err
}

func (s *BalanceStore) GetResources(ctx context.Context, userID int64) (ResourceBalances, error) {
	var row ResourceBalances
	err := s.db.GetContext(ctx, &row, `
		SELECT rations, oil, coal, uranium, bauxite, lead, copper, iron, lumber,
		       components, steel, consumer_goods, aluminium, gasoline, ammunition
		FROM resources
		WHERE id = $1
	`, userID)
	return row, err
}

// Map flattens the row into resource-name keys for JSON responses.
func (r ResourceBalances) Map() map[string]int64 {
	return map[string]int64{
		"rations":        r.Rations,
		"oil":            r.Oil,
		"coal":           r.Coal,
		"uranium":        r.Uranium,
		"bauxite":        r.Bauxite,
		"lead":           r.Lead,
		"copper":         r.Copper,
		"iron":           r.Iron,
		"lumber":         r.Lumber,
		"components":     r.Components,
		"steel":          r.Steel,
		"consumer_goods": r.ConsumerGoods,
		"aluminium":      r.Aluminium,
		"gasoline":       r.Gasoline,
		"ammunition":     r.Ammunition,
	}
}
