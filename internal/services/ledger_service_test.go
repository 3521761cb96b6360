package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"nationsim/internal/store"
)

func TestTransferValidatesResourceBeforeAmount(t *testing.T) {
	service := NewLedgerService(fakeTxRunner{}, stubBalances{
		debitFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			t.Fatalf("store should not be called")
			return 0, nil
		},
	}, &stubAudit{}, &stubHub{}, testLogger())
	_, err := service.Transfer(context.Background(), nil, 1, 2, "dilithium", 0)
	if !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("expected ErrInvalidResource, got %v", err)
	}
}

func TestTransferRejectsZeroAmount(t *testing.T) {
	service := NewLedgerService(fakeTxRunner{}, stubBalances{}, &stubAudit{}, &stubHub{}, testLogger())
	_, err := service.Transfer(context.Background(), nil, 1, 2, "iron", 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferBankGiverSkipsDebit(t *testing.T) {
	credited := false
	service := NewLedgerService(fakeTxRunner{}, stubBalances{
		debitFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			t.Fatalf("bank giver must not be debited")
			return 0, nil
		},
		creditFn: func(_ context.Context, _ store.Getter, userID int64, resource string, amount int64) (int64, error) {
			credited = true
			if userID != 2 || resource != "iron" || amount != 10 {
				t.Fatalf("unexpected credit of %d %s to %d", amount, resource, userID)
			}
			return 10, nil
		},
	}, &stubAudit{}, &stubHub{}, testLogger())
	balances, err := service.Transfer(context.Background(), nil, Bank, 2, "iron", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !credited {
		t.Fatal("expected credit to run")
	}
	if balances.Taker != 10 {
		t.Fatalf("expected taker balance 10, got %d", balances.Taker)
	}
}

func TestTransferInsufficientMoney(t *testing.T) {
	service := NewLedgerService(fakeTxRunner{}, stubBalances{
		debitFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			return 0, sql.ErrNoRows
		},
		getFn: func(context.Context, store.Getter, int64, string) (int64, error) {
			return 30, nil
		},
	}, &stubAudit{}, &stubHub{}, testLogger())
	_, err := service.Transfer(context.Background(), nil, 1, 2, "money", 100)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestTransferInsufficientResource(t *testing.T) {
	service := NewLedgerService(fakeTxRunner{}, stubBalances{
		debitFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			return 0, sql.ErrNoRows
		},
	}, &stubAudit{}, &stubHub{}, testLogger())
	_, err := service.Transfer(context.Background(), nil, 1, 2, "coal", 100)
	if !errors.Is(err, ErrInsufficientResource) {
		t.Fatalf("expected ErrInsufficientResource, got %v", err)
	}
}

func TestSendRejectsSelfTransfer(t *testing.T) {
	service := NewLedgerService(fakeTxRunner{}, stubBalances{}, &stubAudit{}, &stubHub{}, testLogger())
	if err := service.Send(context.Background(), 5, 5, "iron", 1); !errors.Is(err, ErrSelfTrade) {
		t.Fatalf("expected ErrSelfTrade, got %v", err)
	}
}

func TestSendAuditsAndBroadcasts(t *testing.T) {
	audit := &stubAudit{}
	hub := &stubHub{}
	service := NewLedgerService(fakeTxRunner{}, stubBalances{
		debitFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			return 40, nil
		},
		creditFn: func(context.Context, store.Getter, int64, string, int64) (int64, error) {
			return 60, nil
		},
	}, audit, hub, testLogger())
	if err := service.Send(context.Background(), 1, 2, "iron", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audit.entries) != 1 || audit.entries[0].action != "transfer" {
		t.Fatalf("expected one transfer audit entry, got %+v", audit.entries)
	}
	if audit.entries[0].actorID == nil || *audit.entries[0].actorID != 1 {
		t.Fatalf("expected actor 1, got %+v", audit.entries[0].actorID)
	}
	if len(hub.broadcasts) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(hub.broadcasts))
	}
	if hub.broadcasts[0].userID != 1 || hub.broadcasts[0].update.Balance != 40 {
		t.Fatalf("unexpected giver broadcast: %+v", hub.broadcasts[0])
	}
	if hub.broadcasts[1].userID != 2 || hub.broadcasts[1].update.Balance != 60 {
		t.Fatalf("unexpected taker broadcast: %+v", hub.broadcasts[1])
	}
}
