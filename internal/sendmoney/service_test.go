package sendmoney

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/pkg/audit"
)

const externalAccount = account.AccountID(9999)

// memoryStore is an account.Loader and account.Updater backed by a slice.
type memoryStore struct {
	mu         sync.Mutex
	accounts   map[account.AccountID]bool
	activities []account.Activity
	nextID     account.ActivityID
	updates    int
	failUpdate error
}

func newMemoryStore(ids ...account.AccountID) *memoryStore {
	s := &memoryStore{accounts: map[account.AccountID]bool{}}
	for _, id := range ids {
		s.accounts[id] = true
	}
	return s
}

// fund records an old deposit so that it lands in the baseline balance of id.
func (s *memoryStore) fund(t *testing.T, id account.AccountID, amount int64) {
	t.Helper()
	src, owner := externalAccount, id
	a, err := account.NewActivity(account.ActivityParams{
		Owner:     &owner,
		Source:    &src,
		Target:    &owner,
		Timestamp: time.Now().Add(-30 * 24 * time.Hour),
		Money:     account.NewMoney(amount),
	})
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.activities = append(s.activities, a.WithID(s.nextID))
}

func (s *memoryStore) LoadAccount(_ context.Context, id account.AccountID, baselineDate time.Time) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accounts[id] {
		return nil, account.ErrAccountNotFound
	}

	baseline := account.Zero
	var window []account.Activity
	for _, a := range s.activities {
		if a.OwnerAccountID() != id {
			continue
		}
		if a.Timestamp().Before(baselineDate) {
			if a.TargetAccountID() == id {
				baseline = baseline.Add(a.Money())
			}
			if a.SourceAccountID() == id {
				baseline = baseline.Subtract(a.Money())
			}
			continue
		}
		window = append(window, a)
	}
	return account.NewAccountWithID(id, baseline, account.NewActivityWindow(window...)), nil
}

func (s *memoryStore) UpdateActivities(_ context.Context, acc *account.Account) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdate != nil {
		return nil, s.failUpdate
	}

	id, _ := acc.ID()
	var out []account.Activity
	for _, a := range acc.ActivityWindow().Activities() {
		if _, ok := a.ID(); !ok {
			s.nextID++
			a = a.WithID(s.nextID)
			s.activities = append(s.activities, a)
		}
		out = append(out, a)
	}
	s.updates++
	return account.NewAccountWithID(id, acc.BaselineBalance(), account.NewActivityWindow(out...)), nil
}

// batchStore persists both sides of a transfer in one call.
type batchStore struct {
	*memoryStore
	batches int
}

func (b *batchStore) UpdateAccounts(ctx context.Context, accs ...*account.Account) ([]*account.Account, error) {
	b.mu.Lock()
	if b.failUpdate != nil {
		b.mu.Unlock()
		return nil, b.failUpdate
	}
	b.batches++
	b.mu.Unlock()

	out := make([]*account.Account, 0, len(accs))
	for _, acc := range accs {
		persisted, err := b.UpdateActivities(ctx, acc)
		if err != nil {
			return nil, err
		}
		out = append(out, persisted)
	}
	return out, nil
}

func mustCommand(t *testing.T, source, target account.AccountID, amount int64) SendMoneyCommand {
	t.Helper()
	cmd, err := NewSendMoneyCommand(source, target, account.NewMoney(amount))
	require.NoError(t, err)
	return cmd
}

func TestNewSendMoneyCommandValidation(t *testing.T) {
	_, err := NewSendMoneyCommand(1, 2, account.NewMoney(0))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = NewSendMoneyCommand(1, 2, account.NewMoney(-5))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = NewSendMoneyCommand(3, 3, account.NewMoney(5))
	assert.ErrorIs(t, err, ErrSelfTransfer)

	cmd, err := NewSendMoneyCommand(1, 2, account.NewMoney(5))
	require.NoError(t, err)
	assert.Equal(t, account.AccountID(1), cmd.SourceAccountID())
	assert.Equal(t, account.AccountID(2), cmd.TargetAccountID())
	assert.Equal(t, account.NewMoney(5), cmd.Money())
}

func TestSendMoneySucceeds(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 1000)
	var auditLog bytes.Buffer
	svc := NewService(store, store, NewMemoryLock(), Config{}, WithAuditor(audit.NewTrail(&auditLog)))

	ok, err := svc.SendMoney(ctx, mustCommand(t, 1, 2, 300))
	require.NoError(t, err)
	require.True(t, ok)

	source, err := svc.GetAccountBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(700), source)

	target, err := svc.GetAccountBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(300), target)

	assert.Equal(t, 2, store.updates)

	entries, err := audit.ReadEntries(&auditLog)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "completed", entries[0].Event.Outcome)
	assert.Equal(t, int64(300), entries[0].Event.Amount)
}

func TestSendMoneyInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 100)
	var auditLog bytes.Buffer
	svc := NewService(store, store, nil, Config{}, WithAuditor(audit.NewTrail(&auditLog)))

	ok, err := svc.SendMoney(ctx, mustCommand(t, 1, 2, 101))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.updates)

	balance, err := svc.GetAccountBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(100), balance)

	entries, err := audit.ReadEntries(&auditLog)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rejected", entries[0].Event.Outcome)
}

func TestSendMoneyThresholdExceeded(t *testing.T) {
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 10_000)
	svc := NewService(store, store, nil, Config{TransferThreshold: account.NewMoney(500)})

	ok, err := svc.SendMoney(context.Background(), mustCommand(t, 1, 2, 501))
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrThresholdExceeded)

	var te *ThresholdExceededError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, account.NewMoney(500), te.Threshold)
	assert.Equal(t, account.NewMoney(501), te.Actual)

	ok, err = svc.SendMoney(context.Background(), mustCommand(t, 1, 2, 500))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendMoneyUnknownAccount(t *testing.T) {
	store := newMemoryStore(1)
	store.fund(t, 1, 1000)
	lock := NewMemoryLock()
	svc := NewService(store, store, lock, Config{})

	_, err := svc.SendMoney(context.Background(), mustCommand(t, 1, 2, 10))
	require.ErrorIs(t, err, account.ErrAccountNotFound)

	_, err = svc.GetAccountBalance(context.Background(), 2)
	require.ErrorIs(t, err, account.ErrAccountNotFound)

	assertUnlocked(t, lock, 1, 2)
}

func TestSendMoneyDoesNotRetainLocksForUnknownAccounts(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 1_000_000)
	lock := NewMemoryLock()
	svc := NewService(store, store, lock, Config{})

	for i := 0; i < 500; i++ {
		_, err := svc.SendMoney(ctx, mustCommand(t, account.AccountID(1000+2*i), account.AccountID(1001+2*i), 1))
		require.ErrorIs(t, err, account.ErrAccountNotFound)
	}
	for i := 0; i < 50; i++ {
		ok, err := svc.SendMoney(ctx, mustCommand(t, 1, 2, 1))
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, 0, lock.size())
}

func TestSendMoneyPersistenceFailure(t *testing.T) {
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 1000)
	store.failUpdate = errors.New("disk on fire")
	lock := NewMemoryLock()
	svc := NewService(store, store, lock, Config{})

	ok, err := svc.SendMoney(context.Background(), mustCommand(t, 1, 2, 10))
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	assertUnlocked(t, lock, 1, 2)
}

func TestSendMoneyUsesBatchUpdater(t *testing.T) {
	ctx := context.Background()
	store := &batchStore{memoryStore: newMemoryStore(1, 2)}
	store.fund(t, 1, 1000)
	svc := NewService(store, store, NewMemoryLock(), Config{})

	ok, err := svc.SendMoney(ctx, mustCommand(t, 1, 2, 250))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, store.batches)

	target, err := svc.GetAccountBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(250), target)

	store.failUpdate = errors.New("commit failed")
	ok, err = svc.SendMoney(ctx, mustCommand(t, 1, 2, 100))
	assert.False(t, ok)
	require.ErrorContains(t, err, "commit failed")

	source, err := svc.GetAccountBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(750), source)
	target, err = svc.GetAccountBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(250), target)
}

func TestSendMoneyLockTimeout(t *testing.T) {
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 1000)
	lock := NewMemoryLock()
	svc := NewService(store, store, lock, Config{})

	require.NoError(t, lock.Lock(context.Background(), 2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.SendMoney(ctx, mustCommand(t, 1, 2, 10))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.updates)

	require.NoError(t, lock.Unlock(context.Background(), 2))
	assertUnlocked(t, lock, 1, 2)
}

func TestSendMoneyConcurrentTransfersConserveMoney(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(1, 2)
	store.fund(t, 1, 500)
	store.fund(t, 2, 500)
	svc := NewService(store, store, NewMemoryLock(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source, target := account.AccountID(1), account.AccountID(2)
			if i%2 == 1 {
				source, target = target, source
			}
			_, err := svc.SendMoney(ctx, mustCommand(t, source, target, 70))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	b1, err := svc.GetAccountBalance(ctx, 1)
	require.NoError(t, err)
	b2, err := svc.GetAccountBalance(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, account.NewMoney(1000), b1.Add(b2))
	assert.True(t, b1.IsPositiveOrZero())
	assert.True(t, b2.IsPositiveOrZero())
}

func assertUnlocked(t *testing.T, lock AccountLock, ids ...account.AccountID) {
	t.Helper()
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		require.NoError(t, lock.Lock(ctx, id), "account %d is still locked", id)
		require.NoError(t, lock.Unlock(ctx, id))
		cancel()
	}
}
