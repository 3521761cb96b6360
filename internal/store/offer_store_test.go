package store

import (
	"context"
	"strings"
	"testing"
)

func TestOfferFilterWhereClause(t *testing.T) {
	where, args := OfferFilter{}.whereClause()
	if where != "" || len(args) != 0 {
		t.Fatalf("expected empty clause, got %q with %v", where, args)
	}
	where, args = OfferFilter{Resource: "iron", Side: "sell"}.whereClause()
	if where != " WHERE o.resource = $1 AND o.type = $2" {
		t.Fatalf("unexpected clause: %q", where)
	}
	if len(args) != 2 || args[0] != "iron" || args[1] != "sell" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestDecrementAmountIsConditional(t *testing.T) {
	var gotQuery string
	getter := stubGetter{getFn: func(_ context.Context, dest any, query string, _ ...any) error {
		gotQuery = query
		*(dest.(*int64)) = 4
		return nil
	}}
	store := NewOfferStore(stubDB{})
	remaining, err := store.DecrementAmount(context.Background(), getter, 12, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 4 {
		t.Fatalf("expected remaining 4, got %d", remaining)
	}
	if !strings.Contains(gotQuery, "amount >= $1") || !strings.Contains(gotQuery, "RETURNING amount") {
		t.Fatalf("expected conditional decrement, got query: %s", gotQuery)
	}
}

func TestListOrdersByPrice(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	db := stubDB{selectFn: func(_ context.Context, _ any, query string, args ...any) error {
		gotQuery = query
		gotArgs = args
		return nil
	}}
	store := NewOfferStore(db)
	if _, err := store.List(context.Background(), OfferFilter{Resource: "coal", Limit: 50, Offset: 100}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "ORDER BY o.price ASC") {
		t.Fatalf("expected ascending price order, got query: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "LIMIT $2 OFFSET $3") {
		t.Fatalf("expected paging placeholders after filter args, got query: %s", gotQuery)
	}
	if len(gotArgs) != 3 || gotArgs[0] != "coal" || gotArgs[1] != 50 || gotArgs[2] != 100 {
		t.Fatalf("unexpected args: %v", gotArgs)
	}

	if _, err := store.List(context.Background(), OfferFilter{PriceDesc: true, Limit: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "ORDER BY o.price DESC") {
		t.Fatalf("expected descending price order, got query: %s", gotQuery)
	}
}

func TestGetForUpdateLocksRow(t *testing.T) {
	var gotQuery string
	getter := stubGetter{getFn: func(_ context.Context, _ any, query string, _ ...any) error {
		gotQuery = query
		return nil
	}}
	store := NewOfferStore(stubDB{})
	if _, err := store.GetForUpdate(context.Background(), getter, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "FOR UPDATE") {
		t.Fatalf("expected row lock, got query: %s", gotQuery)
	}
}
