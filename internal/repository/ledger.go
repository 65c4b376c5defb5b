package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EricGoldwein/run320-sub001/internal/model"
)

// LedgerRepo is the Postgres-backed transaction store. The transaction log is
// the only source of truth: balances are derived with SUM(amount), never kept
// in a counter column.
type LedgerRepo struct {
	dbPool *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{dbPool: db}
}

// Balance sums all transaction amounts for the user. A user with no
// transactions has balance 0; existence is not checked here.
func (r *LedgerRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.dbPool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM wingo_transactions WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("balance query: %w", err)
	}
	return balance, nil
}

// AppendAward appends a positive award transaction and returns it together
// with the post-append balance.
func (r *LedgerRepo) AppendAward(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	return r.append(ctx, userID, model.KindAward, amount, eventID, description)
}

// AppendSpend appends a negative spend transaction, but only if the user's
// balance at the moment of the append covers it. The check and the insert
// commit in the same store transaction.
func (r *LedgerRepo) AppendSpend(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	return r.append(ctx, userID, model.KindSpend, -amount, eventID, description)
}

// append runs lock → reference checks → sum → conditional insert as one
// Postgres transaction. The FOR UPDATE on the user row serializes concurrent
// writes for the same user while leaving other users unblocked; two spends
// racing for the last WINGOs cannot both pass the balance check.
func (r *LedgerRepo) append(ctx context.Context, userID int64, kind model.TxKind, signedAmount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrUnknownUser
		}
		return nil, 0, fmt.Errorf("lock user %d: %w", userID, err)
	}

	if eventID != nil {
		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, *eventID).Scan(&exists)
		if err != nil {
			return nil, 0, fmt.Errorf("check event %d: %w", *eventID, err)
		}
		if !exists {
			return nil, 0, ErrUnknownEvent
		}
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM wingo_transactions WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		return nil, 0, fmt.Errorf("balance query: %w", err)
	}

	if kind == model.KindSpend && balance+signedAmount < 0 {
		return nil, 0, ErrInsufficientBalance
	}

	t := model.Transaction{
		UserID:      userID,
		EventID:     eventID,
		Amount:      signedAmount,
		Type:        kind,
		Description: description,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO wingo_transactions (user_id, event_id, amount, type, description)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 RETURNING id, created_at`,
		userID, eventID, signedAmount, string(kind), description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, 0, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return &t, balance + signedAmount, nil
}

// History returns the user's balance and full transaction list, newest first
// (created_at, then id, so the order stays total when timestamps collide).
// The balance is summed from the same result set, so the pair is one
// consistent snapshot.
func (r *LedgerRepo) History(ctx context.Context, userID int64) (int64, []model.Transaction, error) {
	rows, err := r.dbPool.Query(ctx,
		`SELECT id, user_id, event_id, amount, type, COALESCE(description, ''), created_at
		 FROM wingo_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	var balance int64
	txs := make([]model.Transaction, 0)
	for rows.Next() {
		var (
			t    model.Transaction
			kind string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.EventID, &t.Amount, &kind, &t.Description, &t.CreatedAt); err != nil {
			return 0, nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = model.TxKind(kind)
		balance += t.Amount
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("history rows: %w", err)
	}
	return balance, txs, nil
}
