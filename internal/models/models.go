package models

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Offer struct {
	OfferID   int64     `db:"offer_id" json:"offer_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Resource  string    `db:"resource" json:"resource"`
	Amount    int64     `db:"amount" json:"amount"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Trade struct {
	OfferID   int64     `db:"offer_id" json:"offer_id"`
	Offerer   int64     `db:"offerer" json:"offerer"`
	Offeree   int64     `db:"offeree" json:"offeree"`
	Type      string    `db:"type" json:"type"`
	Resource  string    `db:"resource" json:"resource"`
	Amount    int64     `db:"amount" json:"amount"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	AgreementPending   = "pending"
	AgreementActive    = "active"
	AgreementPaused    = "paused"
	AgreementCompleted = "completed"
	AgreementCancelled = "cancelled"
)

type TradeAgreement struct {
	ID               int64      `db:"id" json:"id"`
	ProposerID       int64      `db:"proposer_id" json:"proposer_id"`
	ProposerResource string     `db:"proposer_resource" json:"proposer_resource"`
	ProposerAmount   int64      `db:"proposer_amount" json:"proposer_amount"`
	ReceiverID       int64      `db:"receiver_id" json:"receiver_id"`
	ReceiverResource string     `db:"receiver_resource" json:"receiver_resource"`
	ReceiverAmount   int64      `db:"receiver_amount" json:"receiver_amount"`
	IntervalHours    int        `db:"interval_hours" json:"interval_hours"`
	NextExecution    *time.Time `db:"next_execution" json:"next_execution,omitempty"`
	LastExecution    *time.Time `db:"last_execution" json:"last_execution,omitempty"`
	MaxExecutions    *int       `db:"max_executions" json:"max_executions,omitempty"`
	ExecutionCount   int        `db:"execution_count" json:"execution_count"`
	Status           string     `db:"status" json:"status"`
	Message          string     `db:"message" json:"message"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
