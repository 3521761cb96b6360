package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestDeleteReturningIsAtomic(t *testing.T) {
	var gotQuery string
	getter := stubGetter{getFn: func(_ context.Context, _ any, query string, _ ...any) error {
		gotQuery = query
		return nil
	}}
	store := NewTradeStore(stubDB{})
	if _, err := store.DeleteReturning(context.Background(), getter, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "DELETE FROM trades") || !strings.Contains(gotQuery, "RETURNING") {
		t.Fatalf("expected delete-returning statement, got query: %s", gotQuery)
	}
}

func TestDeleteReturningMissingRow(t *testing.T) {
	getter := stubGetter{getFn: func(context.Context, any, string, ...any) error {
		return sql.ErrNoRows
	}}
	store := NewTradeStore(stubDB{})
	if _, err := store.DeleteReturning(context.Background(), getter, 9); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
