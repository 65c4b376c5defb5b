package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EricGoldwein/run320-sub001/internal/model"
	"github.com/EricGoldwein/run320-sub001/internal/repository"
)

// memStore is an in-memory Store with the same contract as the Postgres repo:
// appends are atomic and serialized per call, the balance check happens under
// the same lock as the insert.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]bool
	events map[int64]bool
	txs    map[int64][]model.Transaction
}

func newMemStore(userIDs ...int64) *memStore {
	s := &memStore{
		users:  make(map[int64]bool),
		events: make(map[int64]bool),
		txs:    make(map[int64][]model.Transaction),
	}
	for _, id := range userIDs {
		s.users[id] = true
	}
	return s
}

func (s *memStore) AppendAward(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	return s.append(userID, model.KindAward, amount, eventID, description)
}

func (s *memStore) AppendSpend(ctx context.Context, userID, amount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	return s.append(userID, model.KindSpend, -amount, eventID, description)
}

func (s *memStore) append(userID int64, kind model.TxKind, signedAmount int64, eventID *int64, description string) (*model.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.users[userID] {
		return nil, 0, repository.ErrUnknownUser
	}
	if eventID != nil && !s.events[*eventID] {
		return nil, 0, repository.ErrUnknownEvent
	}

	var balance int64
	for _, t := range s.txs[userID] {
		balance += t.Amount
	}
	if kind == model.KindSpend && balance+signedAmount < 0 {
		return nil, 0, repository.ErrInsufficientBalance
	}

	s.nextID++
	t := model.Transaction{
		ID:          s.nextID,
		UserID:      userID,
		EventID:     eventID,
		Amount:      signedAmount,
		Type:        kind,
		Description: description,
		CreatedAt:   time.Now(),
	}
	s.txs[userID] = append(s.txs[userID], t)
	return &t, balance + signedAmount, nil
}

func (s *memStore) Balance(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var balance int64
	for _, t := range s.txs[userID] {
		balance += t.Amount
	}
	return balance, nil
}

func (s *memStore) History(ctx context.Context, userID int64) (int64, []model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.txs[userID]
	var balance int64
	out := make([]model.Transaction, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		balance += list[i].Amount
		out = append(out, list[i])
	}
	return balance, out, nil
}

type fakeDeduper struct {
	mu       sync.Mutex
	reserved map[string]bool
	released []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{reserved: make(map[string]bool)}
}

func (d *fakeDeduper) Reserve(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reserved[key] {
		return repository.ErrDuplicateRequest
	}
	d.reserved[key] = true
	return nil
}

func (d *fakeDeduper) Release(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.reserved, key)
	d.released = append(d.released, key)
}

type fakeBus struct {
	mu     sync.Mutex
	topics []string
}

func (b *fakeBus) Publish(topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func TestAward(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)

	res, err := svc.Award(context.Background(), model.AwardRequest{UserID: 1, Amount: 50})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(50), res.NewBalance)
}

func TestAward_InvalidAmount(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)

	for _, amount := range []int64{0, -5} {
		_, err := svc.Award(context.Background(), model.AwardRequest{UserID: 1, Amount: amount})
		assert.ErrorIs(t, err, repository.ErrInvalidAmount)
	}

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, balance, "rejected awards must not touch the ledger")
}

func TestAward_UnknownReferences(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)

	_, err := svc.Award(context.Background(), model.AwardRequest{UserID: 99, Amount: 10})
	assert.ErrorIs(t, err, repository.ErrUnknownUser)

	eventID := int64(7)
	_, err = svc.Award(context.Background(), model.AwardRequest{UserID: 1, Amount: 10, EventID: &eventID})
	assert.ErrorIs(t, err, repository.ErrUnknownEvent)
}

func TestSpend(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)
	ctx := context.Background()

	_, err := svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 50})
	require.NoError(t, err)

	res, err := svc.Spend(ctx, model.SpendRequest{UserID: 1, Amount: 30, Description: "wingo wednesday entry"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.NewBalance)
}

func TestSpend_InsufficientBalance(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)
	ctx := context.Background()

	_, err := svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 20})
	require.NoError(t, err)

	_, err = svc.Spend(ctx, model.SpendRequest{UserID: 1, Amount: 30})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance, "a rejected spend must leave the balance unchanged")
}

// Two concurrent spends of 15 against a balance of 20: exactly one commits.
func TestSpend_ConcurrentOverdraw(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)
	ctx := context.Background()

	_, err := svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 20})
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Spend(ctx, model.SpendRequest{UserID: 1, Amount: 15})
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
			insufficient++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestAward_Commutative(t *testing.T) {
	amounts := []int64{5, 40, 1, 320}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}}

	var balances []int64
	for _, order := range orders {
		svc := NewLedgerService(newMemStore(1), nil, nil)
		for _, i := range order {
			_, err := svc.Award(context.Background(), model.AwardRequest{UserID: 1, Amount: amounts[i]})
			require.NoError(t, err)
		}
		b, err := svc.Balance(context.Background(), 1)
		require.NoError(t, err)
		balances = append(balances, b)
	}

	assert.Equal(t, balances[0], balances[1])
	assert.Equal(t, balances[0], balances[2])
}

func TestHistory_NewestFirst(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)
	ctx := context.Background()

	_, err := svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 50})
	require.NoError(t, err)
	_, err = svc.Spend(ctx, model.SpendRequest{UserID: 1, Amount: 30})
	require.NoError(t, err)

	res, err := svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Balance)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, int64(-30), res.Transactions[0].Amount)
	assert.Equal(t, model.KindSpend, res.Transactions[0].Type)
	assert.Equal(t, int64(50), res.Transactions[1].Amount)
	assert.Equal(t, model.KindAward, res.Transactions[1].Type)
}

func TestHistory_EmptyUser(t *testing.T) {
	svc := NewLedgerService(newMemStore(1), nil, nil)

	res, err := svc.History(context.Background(), 42)
	require.NoError(t, err)
	assert.Zero(t, res.Balance)
	assert.Empty(t, res.Transactions)
}

func TestIdempotency_DuplicateKeyRejected(t *testing.T) {
	store := newMemStore(1)
	svc := NewLedgerService(store, newFakeDeduper(), nil)
	ctx := context.Background()

	req := model.AwardRequest{UserID: 1, Amount: 10, IdempotencyKey: "mine-2026-03-20"}

	_, err := svc.Award(ctx, req)
	require.NoError(t, err)

	_, err = svc.Award(ctx, req)
	assert.ErrorIs(t, err, repository.ErrDuplicateRequest)

	balance, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance, "the duplicate must not be appended")
}

func TestIdempotency_KeyReleasedOnFailure(t *testing.T) {
	dedup := newFakeDeduper()
	svc := NewLedgerService(newMemStore(1), dedup, nil)
	ctx := context.Background()

	req := model.SpendRequest{UserID: 1, Amount: 30, IdempotencyKey: "bet-17"}

	_, err := svc.Spend(ctx, req)
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
	assert.Contains(t, dedup.released, "bet-17", "a failed append must free the key for retry")

	// After funding, the retry with the same key goes through.
	_, err = svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 50})
	require.NoError(t, err)
	res, err := svc.Spend(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.NewBalance)
}

func TestPublish_OnCommitOnly(t *testing.T) {
	bus := &fakeBus{}
	svc := NewLedgerService(newMemStore(1), nil, bus)
	ctx := context.Background()

	_, err := svc.Award(ctx, model.AwardRequest{UserID: 1, Amount: 10})
	require.NoError(t, err)
	_, err = svc.Spend(ctx, model.SpendRequest{UserID: 1, Amount: 50})
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)

	assert.Equal(t, []string{TopicTransactions}, bus.topics, "only the committed award is announced")
}
