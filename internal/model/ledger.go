package model

import "time"

// TxKind is the kind of a ledger transaction. The sign of the stored amount
// always agrees with the kind: awards are positive, spends are negative.
type TxKind string

const (
	KindAward TxKind = "award"
	KindSpend TxKind = "spend"
)

// User is the identity the ledger accounts against. Users are created by the
// registration flow, not by the ledger; the ledger only requires that a
// referenced id exists.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is an optional grouping tag for transactions, e.g. a Wingate
// Invitational race. Managed by external event tooling.
type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EventType   string    `json:"eventType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Transaction is a single immutable entry in the WINGO ledger. A user's
// balance is always the sum of their transaction amounts; it is never stored
// anywhere else.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	EventID     *int64    `json:"eventId"`
	Amount      int64     `json:"amount"`
	Type        TxKind    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AwardRequest struct {
	UserID         int64  `json:"userId"`
	Amount         int64  `json:"amount"`
	EventID        *int64 `json:"eventId,omitempty"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type SpendRequest struct {
	UserID         int64  `json:"userId"`
	Amount         int64  `json:"amount"`
	EventID        *int64 `json:"eventId,omitempty"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type TransactionResult struct {
	Success    bool  `json:"success"`
	NewBalance int64 `json:"newBalance"`
}

type HistoryResult struct {
	Balance      int64         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// TransactionEvent is published on the bus after a transaction commits, so
// collaborators (leaderboard, wallet pages) can react without polling.
type TransactionEvent struct {
	TransactionID int64     `json:"transactionId"`
	UserID        int64     `json:"userId"`
	EventID       *int64    `json:"eventId,omitempty"`
	Amount        int64     `json:"amount"`
	Type          TxKind    `json:"type"`
	NewBalance    int64     `json:"newBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}
