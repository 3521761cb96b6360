package store

import (
	"context"
	"time"

	"nationsim/internal/models"
)

type AgreementStore struct {
	db DB
}

type AgreementInput struct {
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

// AgreementWithNames joins both parties' usernames for listing.
type AgreementWithNames struct {
	models.TradeAgreement
	ProposerName string `db:"proposer_name"`
	ReceiverName string `db:"receiver_name"`
}

func NewAgreementStore(db DB) *AgreementStore {
	return &AgreementStore{db: db}
}

func (s *AgreementStore) Insert(ctx context.Context, tx Tx, input AgreementInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO trade_agreements
			(proposer_id, proposer_resource, proposer_amount,
			 receiver_id, receiver_resource, receiver_amount,
			 interval_hours, max_executions, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING id
	`, input.ProposerID, input.ProposerResource, input.ProposerAmount,
		input.ReceiverID, input.ReceiverResource, input.ReceiverAmount,
		input.IntervalHours, input.MaxExecutions, input.Message)
	return id, err
}

// GetForUpdate locks the agreement row so concurrent execution or lifecycle
// attempts on the same agreement serialize.
func (s *AgreementStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.TradeAgreement, error) {
	var agreement models.TradeAgreement
	err := tx.GetContext(ctx, &agreement, `
		SELECT id, proposer_id, proposer_resource, proposer_amount,
		       receiver_id, receiver_resource, receiver_amount,
		       interval_hours, next_execution, last_execution,
		       max_executions, execution_count, status, message,
		       created_at, updated_at
		FROM trade_agreements
		WHERE id = $1
		FOR UPDATE
	`, id)
	return agreement, err
}

func (s *AgreementStore) SetStatus(ctx context.Context, tx Execer, id int64, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE trade_agreements
		SET status = $1, updated_at = now()
		WHERE id = $2
	`, status, id)
	return err
}

// Activate flips a pending agreement to active with an immediate first
// execution slot.
func (s *AgreementStore) Activate(ctx context.Context, tx Execer, id int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE trade_agreements
		SET status = 'active', next_execution = now(), updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// Resume reactivates a paused agreement with the given next execution time.
func (s *AgreementStore) Resume(ctx context.Context, tx Execer, id int64, nextExecution time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE trade_agreements
		SET status = 'active', next_execution = $1, updated_at = now()
		WHERE id = $2
	`, nextExecution, id)
	return err
}

// MarkExecuted records one completed execution. nextExecution nil means the
// agreement reached its execution limit and is completed.
func (s *AgreementStore) MarkExecuted(ctx context.Context, tx Execer, id int64, executionCount int, nextExecution *time.Time) error {
	if nextExecution == nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE trade_agreements
			SET execution_count = $1, last_execution = now(),
			    next_execution = NULL, status = 'completed', updated_at = now()
			WHERE id = $2
		`, executionCount, id)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE trade_agreements
		SET execution_count = $1, last_execution = now(),
		    next_execution = $2, updated_at = now()
		WHERE id = $3
	`, executionCount, *nextExecution, id)
	return err
}

func (s *AgreementStore) ListForUser(ctx context.Context, userID int64) ([]AgreementWithNames, error) {
	var rows []AgreementWithNames
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ta.id, ta.proposer_id, ta.proposer_resource, ta.proposer_amount,
		       ta.receiver_id, ta.receiver_resource, ta.receiver_amount,
		       ta.interval_hours, ta.next_execution, ta.last_execution,
		       ta.max_executions, ta.execution_count, ta.status, ta.message,
		       ta.created_at, ta.updated_at,
		       p.username AS proposer_name, r.username AS receiver_name
		FROM trade_agreements ta
		INNER JOIN users p ON ta.proposer_id = p.id
		INNER JOIN users r ON ta.receiver_id = r.id
		WHERE (ta.proposer_id = $1 OR ta.receiver_id = $1)
		  AND ta.status != 'cancelled'
		ORDER BY
			CASE ta.status
				WHEN 'pending' THEN 1
				WHEN 'active' THEN 2
				WHEN 'paused' THEN 3
				ELSE 4
			END,
			ta.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDueIDs returns active agreements whose next execution has passed. The
// scheduler feeds these back into the execution path one by one.
func (s *AgreementStore) ListDueIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM trade_agreements
		WHERE status = 'active' AND next_execution <= now()
		ORDER BY next_execution ASC
	`)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
