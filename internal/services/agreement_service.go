package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"nationsim/internal/db"
	"nationsim/internal/models"
	"nationsim/internal/resources"
	"nationsim/internal/store"
	"nationsim/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// validIntervals are the accepted execution intervals in hours: hourly up to
// weekly.
var validIntervals = map[int]bool{1: true, 6: true, 12: true, 24: true, 48: true, 72: true, 168: true}

// AgreementService runs recurring bilateral exchanges. An agreement swaps a
// fixed quantity of one resource for another on a fixed interval until it is
// cancelled, completes its execution limit, or pauses because a party cannot
// cover its side.
type AgreementService struct {
	txRunner   db.TxRunner
	ledger     Ledger
	agreements AgreementStore
	balances   BalanceStore
	users      UserStore
	audit      AuditStore
	hub        BalanceHub
	logger     *slog.Logger
}

type AgreementStore interface {
	Insert(ctx context.Context, tx store.Tx, input store.AgreementInput) (int64, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.TradeAgreement, error)
	SetStatus(ctx context.Context, tx store.Execer, id int64, status string) error
	Activate(ctx context.Context, tx store.Execer, id int64) error
	Resume(ctx context.Context, tx store.Execer, id int64, nextExecution time.Time) error
	MarkExecuted(ctx context.Context, tx store.Execer, id int64, executionCount int, nextExecution *time.Time) error
	ListForUser(ctx context.Context, userID int64) ([]store.AgreementWithNames, error)
	ListDueIDs(ctx context.Context) ([]int64, error)
}

func NewAgreementService(txRunner db.TxRunner, ledger Ledger, agreements AgreementStore, balances BalanceStore, users UserStore, audit AuditStore, hub BalanceHub, logger *slog.Logger) *AgreementService {
	return &AgreementService{
		txRunner:   txRunner,
		ledger:     ledger,
		agreements: agreements,
		balances:   balances,
		users:      users,
		audit:      audit,
		hub:        hub,
		logger:     logger,
	}
}

type ProposeAgreementParams struct {
	ProposerID       int64
	ProposerResource string
	ProposerAmount   int64
	ReceiverID       int64
	ReceiverResource string
	ReceiverAmount   int64
	IntervalHours    int
	MaxExecutions    *int
	Message          string
}

func validExchangeResource(name string) bool {
	return resources.Valid(name) || resources.IsMoney(name)
}

// ProposeAgreement records a pending agreement. Nothing is escrowed: each
// execution settles from live balances, which is why execution can pause.
// The proposer must be able to cover one execution at proposal time.
func (s *AgreementService) ProposeAgreement(ctx context.Context, params ProposeAgreementParams) (int64, error) {
	if !validExchangeResource(params.ProposerResource) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResource, params.ProposerResource)
	}
	if !validExchangeResource(params.ReceiverResource) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResource, params.ReceiverResource)
	}
	if params.ProposerAmount < 1 {
		return 0, fmt.Errorf("%w: proposer amount %d", ErrInvalidAmount, params.ProposerAmount)
	}
	if params.ReceiverAmount < 1 {
		return 0, fmt.Errorf("%w: receiver amount %d", ErrInvalidAmount, params.ReceiverAmount)
	}
	if !validIntervals[params.IntervalHours] {
		return 0, fmt.Errorf("%w: %d hours", ErrInvalidInterval, params.IntervalHours)
	}
	if params.MaxExecutions != nil && *params.MaxExecutions < 1 {
		return 0, fmt.Errorf("%w: max executions %d", ErrInvalidAmount, *params.MaxExecutions)
	}
	if params.ProposerID == params.ReceiverID {
		return 0, ErrSelfTrade
	}
	exists, err := s.users.Exists(ctx, params.ReceiverID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: user %d", ErrNotFound, params.ReceiverID)
	}
	var agreementID int64
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkCovers(ctx, tx, params.ProposerID, params.ProposerResource, params.ProposerAmount); err != nil {
			return err
		}
		var err error
		agreementID, err = s.agreements.Insert(ctx, tx, store.AgreementInput{
			ProposerID:       params.ProposerID,
			ProposerResource: params.ProposerResource,
			ProposerAmount:   params.ProposerAmount,
			ReceiverID:       params.ReceiverID,
			ReceiverResource: params.ReceiverResource,
			ReceiverAmount:   params.ReceiverAmount,
			IntervalHours:    params.IntervalHours,
			MaxExecutions:    params.MaxExecutions,
			Message:          params.Message,
		})
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"receiver":          params.ReceiverID,
			"proposer_resource": params.ProposerResource,
			"proposer_amount":   params.ProposerAmount,
			"receiver_resource": params.ReceiverResource,
			"receiver_amount":   params.ReceiverAmount,
			"interval_hours":    params.IntervalHours,
		})
		return s.audit.Log(ctx, tx, &params.ProposerID, "agreement_proposed", "agreement", strconv.FormatInt(agreementID, 10), string(data))
	})
	if err != nil {
		return 0, err
	}
	return agreementID, nil
}

// AcceptAgreement activates a pending agreement. Only the receiver may
// accept, and the receiver must be able to cover one execution. The first
// execution runs immediately after activation commits.
func (s *AgreementService) AcceptAgreement(ctx context.Context, callerID, agreementID int64) (ExecuteOutcome, error) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		agreement, err := s.getLocked(ctx, tx, agreementID)
		if err != nil {
			return err
		}
		if agreement.ReceiverID != callerID {
			return ErrNotAuthorized
		}
		if agreement.Status != models.AgreementPending {
			return fmt.Errorf("%w: agreement is %s", ErrInvalidState, agreement.Status)
		}
		if err := s.checkCovers(ctx, tx, agreement.ReceiverID, agreement.ReceiverResource, agreement.ReceiverAmount); err != nil {
			return err
		}
		if err := s.agreements.Activate(ctx, tx, agreementID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, &callerID, "agreement_accepted", "agreement", strconv.FormatInt(agreementID, 10), "{}")
	})
	if err != nil {
		return ExecuteOutcome{}, err
	}
	return s.Execute(ctx, agreementID)
}

// RejectAgreement declines a pending agreement. Receiver only.
func (s *AgreementService) RejectAgreement(ctx context.Context, callerID, agreementID int64) error {
	return s.lifecycle(ctx, callerID, agreementID, "agreement_rejected", func(agreement models.TradeAgreement) error {
		if agreement.ReceiverID != callerID {
			return ErrNotAuthorized
		}
		if agreement.Status != models.AgreementPending {
			return fmt.Errorf("%w: agreement is %s", ErrInvalidState, agreement.Status)
		}
		return nil
	})
}

// CancelAgreement ends an agreement for good. Either party may cancel a
// pending, active, or paused agreement.
func (s *AgreementService) CancelAgreement(ctx context.Context, callerID, agreementID int64) error {
	return s.lifecycle(ctx, callerID, agreementID, "agreement_cancelled", func(agreement models.TradeAgreement) error {
		if agreement.ProposerID != callerID && agreement.ReceiverID != callerID {
			return ErrNotAuthorized
		}
		switch agreement.Status {
		case models.AgreementPending, models.AgreementActive, models.AgreementPaused:
			return nil
		}
		return fmt.Errorf("%w: agreement is %s", ErrInvalidState, agreement.Status)
	})
}

func (s *AgreementService) lifecycle(ctx context.Context, callerID, agreementID int64, action string, check func(models.TradeAgreement) error) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		agreement, err := s.getLocked(ctx, tx, agreementID)
		if err != nil {
			return err
		}
		if err := check(agreement); err != nil {
			return err
		}
		if err := s.agreements.SetStatus(ctx, tx, agreementID, models.AgreementCancelled); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, &callerID, action, "agreement", strconv.FormatInt(agreementID, 10), "{}")
	})
}

// ResumeAgreement reactivates a paused agreement. Either party may resume,
// and both parties must currently cover their sides; the next execution is
// scheduled one interval out.
func (s *AgreementService) ResumeAgreement(ctx context.Context, callerID, agreementID int64) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		agreement, err := s.getLocked(ctx, tx, agreementID)
		if err != nil {
			return err
		}
		if agreement.ProposerID != callerID && agreement.ReceiverID != callerID {
			return ErrNotAuthorized
		}
		if agreement.Status != models.AgreementPaused {
			return fmt.Errorf("%w: agreement is %s", ErrInvalidState, agreement.Status)
		}
		if err := s.checkCovers(ctx, tx, agreement.ProposerID, agreement.ProposerResource, agreement.ProposerAmount); err != nil {
			return err
		}
		if err := s.checkCovers(ctx, tx, agreement.ReceiverID, agreement.ReceiverResource, agreement.ReceiverAmount); err != nil {
			return err
		}
		next := time.Now().Add(time.Duration(agreement.IntervalHours) * time.Hour)
		if err := s.agreements.Resume(ctx, tx, agreementID, next); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, &callerID, "agreement_resumed", "agreement", strconv.FormatInt(agreementID, 10), "{}")
	})
}

// ExecuteOutcome reports what one execution attempt did. Paused is not an
// error: the pause itself must commit, so it travels here instead of in the
// error return.
type ExecuteOutcome struct {
	Executed  bool   `json:"executed"`
	Paused    bool   `json:"paused"`
	Completed bool   `json:"completed"`
	Reason    string `json:"reason,omitempty"`
}

// Execute runs one exchange of an active agreement. The row lock serializes
// concurrent attempts; whichever loses the race re-reads a bumped
// next_execution or a non-active status and leaves the agreement alone. If
// either party cannot cover its side the agreement pauses and that pause
// commits.
func (s *AgreementService) Execute(ctx context.Context, agreementID int64) (ExecuteOutcome, error) {
	var outcome ExecuteOutcome
	var agreement models.TradeAgreement
	var proposerGets, receiverGets TransferBalances
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		outcome = ExecuteOutcome{}
		var err error
		agreement, err = s.getLocked(ctx, tx, agreementID)
		if err != nil {
			return err
		}
		if agreement.Status != models.AgreementActive {
			return fmt.Errorf("%w: agreement is %s", ErrInvalidState, agreement.Status)
		}
		reason, short, err := s.shortfall(ctx, tx, agreement)
		if err != nil {
			return err
		}
		if short {
			if err := s.agreements.SetStatus(ctx, tx, agreementID, models.AgreementPaused); err != nil {
				return err
			}
			outcome.Paused = true
			outcome.Reason = reason
			data, _ := json.Marshal(map[string]any{"reason": reason})
			return s.audit.Log(ctx, tx, nil, "agreement_paused", "agreement", strconv.FormatInt(agreementID, 10), string(data))
		}
		receiverGets, err = s.ledger.Transfer(ctx, tx, agreement.ProposerID, agreement.ReceiverID, agreement.ProposerResource, agreement.ProposerAmount)
		if err != nil {
			return err
		}
		proposerGets, err = s.ledger.Transfer(ctx, tx, agreement.ReceiverID, agreement.ProposerID, agreement.ReceiverResource, agreement.ReceiverAmount)
		if err != nil {
			return err
		}
		count := agreement.ExecutionCount + 1
		var next *time.Time
		if agreement.MaxExecutions == nil || count < *agreement.MaxExecutions {
			t := time.Now().Add(time.Duration(agreement.IntervalHours) * time.Hour)
			next = &t
		} else {
			outcome.Completed = true
		}
		if err := s.agreements.MarkExecuted(ctx, tx, agreementID, count, next); err != nil {
			return err
		}
		outcome.Executed = true
		data, _ := json.Marshal(map[string]any{
			"proposer":        agreement.ProposerID,
			"receiver":        agreement.ReceiverID,
			"execution_count": count,
		})
		return s.audit.Log(ctx, tx, nil, "agreement_executed", "agreement", strconv.FormatInt(agreementID, 10), string(data))
	})
	if err != nil {
		return ExecuteOutcome{}, err
	}
	if outcome.Executed {
		s.logger.Info("agreement_executed",
			slog.Int64("agreement_id", agreementID),
			slog.Int64("proposer", agreement.ProposerID),
			slog.Int64("receiver", agreement.ReceiverID),
			slog.Int("execution_count", agreement.ExecutionCount+1),
			slog.Bool("completed", outcome.Completed),
		)
		s.hub.BroadcastBalance(agreement.ProposerID, websocket.BalanceUpdate{Resource: agreement.ProposerResource, Balance: receiverGets.Giver})
		s.hub.BroadcastBalance(agreement.ProposerID, websocket.BalanceUpdate{Resource: agreement.ReceiverResource, Balance: proposerGets.Taker})
		s.hub.BroadcastBalance(agreement.ReceiverID, websocket.BalanceUpdate{Resource: agreement.ProposerResource, Balance: receiverGets.Taker})
		s.hub.BroadcastBalance(agreement.ReceiverID, websocket.BalanceUpdate{Resource: agreement.ReceiverResource, Balance: proposerGets.Giver})
	} else if outcome.Paused {
		s.logger.Warn("agreement_paused",
			slog.Int64("agreement_id", agreementID),
			slog.String("reason", outcome.Reason),
		)
	}
	return outcome, nil
}

func (s *AgreementService) ListAgreements(ctx context.Context, userID int64) ([]store.AgreementWithNames, error) {
	return s.agreements.ListForUser(ctx, userID)
}

func (s *AgreementService) getLocked(ctx context.Context, tx *sqlx.Tx, agreementID int64) (models.TradeAgreement, error) {
	agreement, err := s.agreements.GetForUpdate(ctx, tx, agreementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TradeAgreement{}, fmt.Errorf("%w: agreement %d", ErrNotFound, agreementID)
		}
		return models.TradeAgreement{}, err
	}
	return agreement, nil
}

// checkCovers fails with an insufficiency error when the user's balance is
// below amount.
func (s *AgreementService) checkCovers(ctx context.Context, tx *sqlx.Tx, userID int64, resource string, amount int64) error {
	balance, err := s.balances.Get(ctx, tx, userID, resource)
	if err != nil {
		return err
	}
	if balance < amount {
		kind := ErrInsufficientResource
		if resources.IsMoney(resource) {
			kind = ErrInsufficientFunds
		}
		return fmt.Errorf("%w: have %d %s, need %d", kind, balance, resource, amount)
	}
	return nil
}

// shortfall reports which party, if any, cannot cover its side of one
// execution.
func (s *AgreementService) shortfall(ctx context.Context, tx *sqlx.Tx, agreement models.TradeAgreement) (string, bool, error) {
	proposerBalance, err := s.balances.Get(ctx, tx, agreement.ProposerID, agreement.ProposerResource)
	if err != nil {
		return "", false, err
	}
	if proposerBalance < agreement.ProposerAmount {
		return fmt.Sprintf("proposer has %d %s, needs %d", proposerBalance, agreement.ProposerResource, agreement.ProposerAmount), true, nil
	}
	receiverBalance, err := s.balances.Get(ctx, tx, agreement.ReceiverID, agreement.ReceiverResource)
	if err != nil {
		return "", false, err
	}
	if receiverBalance < agreement.ReceiverAmount {
		return fmt.Sprintf("receiver has %d %s, needs %d", receiverBalance, agreement.ReceiverResource, agreement.ReceiverAmount), true, nil
	}
	return "", false, nil
}
