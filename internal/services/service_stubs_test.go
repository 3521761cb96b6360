package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"nationsim/internal/models"
	"nationsim/internal/store"
	"nationsim/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBalances struct {
	debitFn  func(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error)
	creditFn func(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error)
	getFn    func(ctx context.Context, q store.Getter, userID int64, resource string) (int64, error)
}

func (s stubBalances) DebitIfSufficient(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error) {
	if s.debitFn == nil {
		return 0, nil
	}
	return s.debitFn(ctx, tx, userID, resource, amount)
}

func (s stubBalances) Credit(ctx context.Context, tx store.Getter, userID int64, resource string, amount int64) (int64, error) {
	if s.creditFn == nil {
		return 0, nil
	}
	return s.creditFn(ctx, tx, userID, resource, amount)
}

func (s stubBalances) Get(ctx context.Context, q store.Getter, userID int64, resource string) (int64, error) {
	if s.getFn == nil {
		return 0, nil
	}
	return s.getFn(ctx, q, userID, resource)
}

type transferCall struct {
	giver    int64
	taker    int64
	resource string
	amount   int64
}

// recordingLedger captures transfer calls; transferFn can inject failures or
// custom balances per call.
type recordingLedger struct {
	calls      []transferCall
	transferFn func(call transferCall) (TransferBalances, error)
}

func (l *recordingLedger) Transfer(_ context.Context, _ store.Tx, giver, taker int64, resource string, amount int64) (TransferBalances, error) {
	call := transferCall{giver: giver, taker: taker, resource: resource, amount: amount}
	l.calls = append(l.calls, call)
	if l.transferFn == nil {
		return TransferBalances{}, nil
	}
	return l.transferFn(call)
}

type auditEntry struct {
	actorID *int64
	action  string
}

type stubAudit struct {
	entries []auditEntry
	err     error
}

func (s *stubAudit) Log(_ context.Context, _ store.Execer, actorID *int64, action, _, _, _ string) error {
	s.entries = append(s.entries, auditEntry{actorID: actorID, action: action})
	return s.err
}

type broadcast struct {
	userID int64
	update websocket.BalanceUpdate
}

type stubHub struct {
	broadcasts []broadcast
}

func (s *stubHub) BroadcastBalance(userID int64, update websocket.BalanceUpdate) {
	s.broadcasts = append(s.broadcasts, broadcast{userID: userID, update: update})
}

type stubUsers struct {
	existsFn func(ctx context.Context, userID int64) (bool, error)
}

func (s stubUsers) Exists(ctx context.Context, userID int64) (bool, error) {
	if s.existsFn == nil {
		return true, nil
	}
	return s.existsFn(ctx, userID)
}

type stubOffers struct {
	insertFn       func(ctx context.Context, tx store.Tx, input store.OfferInput) (int64, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, offerID int64) (models.Offer, error)
	decrementFn    func(ctx context.Context, tx store.Getter, offerID, amount int64) (int64, error)
	deleteFn       func(ctx context.Context, tx store.Execer, offerID int64) error
	listFn         func(ctx context.Context, filter store.OfferFilter) ([]store.OfferWithOwner, error)
	countFn        func(ctx context.Context, filter store.OfferFilter) (int64, error)
	statsFn        func(ctx context.Context) ([]store.ResourceMarketStat, error)
}

func (s stubOffers) Insert(ctx context.Context, tx store.Tx, input store.OfferInput) (int64, error) {
	if s.insertFn == nil {
		return 1, nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubOffers) GetForUpdate(ctx context.Context, tx store.Getter, offerID int64) (models.Offer, error) {
	if s.getForUpdateFn == nil {
		return models.Offer{}, nil
	}
	return s.getForUpdateFn(ctx, tx, offerID)
}

func (s stubOffers) DecrementAmount(ctx context.Context, tx store.Getter, offerID, amount int64) (int64, error) {
	if s.decrementFn == nil {
		return 0, nil
	}
	return s.decrementFn(ctx, tx, offerID, amount)
}

func (s stubOffers) Delete(ctx context.Context, tx store.Execer, offerID int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, offerID)
}

func (s stubOffers) List(ctx context.Context, filter store.OfferFilter) ([]store.OfferWithOwner, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubOffers) Count(ctx context.Context, filter store.OfferFilter) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, filter)
}

func (s stubOffers) Stats(ctx context.Context) ([]store.ResourceMarketStat, error) {
	if s.statsFn == nil {
		return nil, nil
	}
	return s.statsFn(ctx)
}

type stubTrades struct {
	insertFn          func(ctx context.Context, tx store.Tx, input store.TradeInput) (int64, error)
	deleteReturningFn func(ctx context.Context, tx store.Getter, tradeID int64) (models.Trade, error)
	listOutgoingFn    func(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error)
	listIncomingFn    func(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error)
}

func (s stubTrades) Insert(ctx context.Context, tx store.Tx, input store.TradeInput) (int64, error) {
	if s.insertFn == nil {
		return 1, nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s stubTrades) DeleteReturning(ctx context.Context, tx store.Getter, tradeID int64) (models.Trade, error) {
	if s.deleteReturningFn == nil {
		return models.Trade{}, nil
	}
	return s.deleteReturningFn(ctx, tx, tradeID)
}

func (s stubTrades) ListOutgoing(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error) {
	if s.listOutgoingFn == nil {
		return nil, nil
	}
	return s.listOutgoingFn(ctx, userID)
}

func (s stubTrades) ListIncoming(ctx context.Context, userID int64) ([]store.TradeWithCounterparty, error) {
	if s.listIncomingFn == nil {
		return nil, nil
	}
	return s.listIncomingFn(ctx, userID)
}

type statusChange struct {
	id     int64
	status string
}

type stubAgreements struct {
	insertFn       func(ctx context.Context, tx store.Tx, input store.AgreementInput) (int64, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, id int64) (models.TradeAgreement, error)
	markExecutedFn func(ctx context.Context, tx store.Execer, id int64, executionCount int, nextExecution *time.Time) error
	listForUserFn  func(ctx context.Context, userID int64) ([]store.AgreementWithNames, error)
	listDueFn      func(ctx context.Context) ([]int64, error)

	statusChanges []statusChange
	activated     []int64
	resumed       []int64
}

func (s *stubAgreements) Insert(ctx context.Context, tx store.Tx, input store.AgreementInput) (int64, error) {
	if s.insertFn == nil {
		return 1, nil
	}
	return s.insertFn(ctx, tx, input)
}

func (s *stubAgreements) GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.TradeAgreement, error) {
	if s.getForUpdateFn == nil {
		return models.TradeAgreement{}, nil
	}
	return s.getForUpdateFn(ctx, tx, id)
}

func (s *stubAgreements) SetStatus(_ context.Context, _ store.Execer, id int64, status string) error {
	s.statusChanges = append(s.statusChanges, statusChange{id: id, status: status})
	return nil
}

func (s *stubAgreements) Activate(_ context.Context, _ store.Execer, id int64) error {
	s.activated = append(s.activated, id)
	return nil
}

func (s *stubAgreements) Resume(_ context.Context, _ store.Execer, id int64, _ time.Time) error {
	s.resumed = append(s.resumed, id)
	return nil
}

func (s *stubAgreements) MarkExecuted(ctx context.Context, tx store.Execer, id int64, executionCount int, nextExecution *time.Time) error {
	if s.markExecutedFn == nil {
		return nil
	}
	return s.markExecutedFn(ctx, tx, id, executionCount, nextExecution)
}

func (s *stubAgreements) ListForUser(ctx context.Context, userID int64) ([]store.AgreementWithNames, error) {
	if s.listForUserFn == nil {
		return nil, nil
	}
	return s.listForUserFn(ctx, userID)
}

func (s *stubAgreements) ListDueIDs(ctx context.Context) ([]int64, error) {
	if s.listDueFn == nil {
		return nil, nil
	}
	return s.listDueFn(ctx)
}

func intPtr(v int) *int {
	return &v
}

func requireTransfer(t *testing.T, call transferCall, giver, taker int64, resource string, amount int64) {
	t.Helper()
	if call.giver != giver || call.taker != taker || call.resource != resource || call.amount != amount {
		t.Fatalf("unexpected transfer %+v, expected giver=%d taker=%d resource=%s amount=%d",
			call, giver, taker, resource, amount)
	}
}
