package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/EricGoldwein/run320-sub001/internal/model"
	"github.com/EricGoldwein/run320-sub001/internal/repository"
)

// TopicTransactions carries every committed ledger transaction.
const TopicTransactions = "wingo.transactions"

// Ledger defines the business operations of the WINGO ledger. All transports
// (HTTP, NATS) depend on this interface, not on the concrete store.
type Ledger interface {
	Award(ctx context.Context, req model.AwardRequest) (*model.TransactionResult, error)
	Spend(ctx context.Context, req model.SpendRequest) (*model.TransactionResult, error)
	History(ctx context.Context, userID int64) (*model.HistoryResult, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// Store is the persistence contract the service needs. Append operations are
// atomic: reference checks, the balance check and the insert commit together,
// serialized per user, or nothing is written at all.
type Store interface {
	AppendAward(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error)
	AppendSpend(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error)
	Balance(ctx context.Context, userID int64) (int64, error)
	History(ctx context.Context, userID int64) (int64, []model.Transaction, error)
}

// Deduper reserves idempotency keys for requests that carry one.
type Deduper interface {
	Reserve(ctx context.Context, key string) error
	Release(ctx context.Context, key string)
}

// LedgerService validates requests and delegates the atomic append to the
// store. The bus may be nil, in which case committed transactions are simply
// not announced.
type LedgerService struct {
	store Store
	idem  Deduper
	bus   repository.MessageBus
}

func NewLedgerService(store Store, idem Deduper, bus repository.MessageBus) *LedgerService {
	return &LedgerService{store: store, idem: idem, bus: bus}
}

// Award credits WINGOs. Awarding is unbounded: once the amount and references
// validate it cannot violate the non-negative balance invariant.
func (s *LedgerService) Award(ctx context.Context, req model.AwardRequest) (*model.TransactionResult, error) {
	if req.Amount <= 0 {
		return nil, repository.ErrInvalidAmount
	}
	if err := s.reserve(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	t, newBalance, err := s.store.AppendAward(ctx, req.UserID, req.Amount, req.EventID, req.Description)
	if err != nil {
		// A failed append committed nothing, so the key is freed for retry.
		s.release(ctx, req.IdempotencyKey)
		return nil, err
	}

	s.publish(t, newBalance)
	return &model.TransactionResult{Success: true, NewBalance: newBalance}, nil
}

// Spend debits WINGOs. The overdraw check happens inside the store's commit,
// never here: a balance read in this layer would be stale by the time the
// append runs.
func (s *LedgerService) Spend(ctx context.Context, req model.SpendRequest) (*model.TransactionResult, error) {
	if req.Amount <= 0 {
		return nil, repository.ErrInvalidAmount
	}
	if err := s.reserve(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	}

	t, newBalance, err := s.store.AppendSpend(ctx, req.UserID, req.Amount, req.EventID, req.Description)
	if err != nil {
		s.release(ctx, req.IdempotencyKey)
		return nil, err
	}

	s.publish(t, newBalance)
	return &model.TransactionResult{Success: true, NewBalance: newBalance}, nil
}

func (s *LedgerService) History(ctx context.Context, userID int64) (*model.HistoryResult, error) {
	balance, txs, err := s.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.HistoryResult{Balance: balance, Transactions: txs}, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.store.Balance(ctx, userID)
}

func (s *LedgerService) reserve(ctx context.Context, key string) error {
	if key == "" || s.idem == nil {
		return nil
	}
	return s.idem.Reserve(ctx, key)
}

func (s *LedgerService) release(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	s.idem.Release(ctx, key)
}

// publish announces a committed transaction. Best effort: the ledger row is
// already durable, so a publish failure is logged and never unwinds it.
func (s *LedgerService) publish(t *model.Transaction, newBalance int64) {
	if s.bus == nil {
		return
	}
	event := model.TransactionEvent{
		TransactionID: t.ID,
		UserID:        t.UserID,
		EventID:       t.EventID,
		Amount:        t.Amount,
		Type:          t.Type,
		NewBalance:    newBalance,
		CreatedAt:     t.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err == nil {
		err = s.bus.Publish(TopicTransactions, data)
	}
	if err != nil {
		slog.Error("ledger: failed to publish transaction event",
			"transaction_id", t.ID,
			"user_id", t.UserID,
			"error", err,
		)
	}
}
