package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/internal/sendmoney"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	databaseURL := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Skipf("Database not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("Database not available: %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresStoreLoadAndUpdate(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	id, err := store.CreateAccount(ctx)
	require.NoError(t, err)
	other, err := store.CreateAccount(ctx)
	require.NoError(t, err)

	baselineDate := time.Now().UTC().Add(-time.Hour)
	old, err := account.NewActivity(account.ActivityParams{
		Owner:     &id,
		Source:    &other,
		Target:    &id,
		Timestamp: baselineDate.Add(-time.Hour),
		Money:     account.NewMoney(900),
	})
	require.NoError(t, err)
	_, err = store.UpdateActivities(ctx, account.NewAccountWithID(id, account.Zero, account.NewActivityWindow(old)))
	require.NoError(t, err)

	acc, err := store.LoadAccount(ctx, id, baselineDate)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(900), acc.BaselineBalance())
	assert.Equal(t, 0, acc.ActivityWindow().Len())

	require.True(t, acc.Withdraw(account.NewMoney(250), other))
	updated, err := store.UpdateActivities(ctx, acc)
	require.NoError(t, err)
	assert.Empty(t, updated.ActivityWindow().Unsaved())

	reloaded, err := store.LoadAccount(ctx, id, baselineDate)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ActivityWindow().Len())
	balance, err := reloaded.CalculateBalance()
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(650), balance)
}

func TestPostgresStoreUnknownAccount(t *testing.T) {
	store := newPostgresStore(t)

	_, err := store.LoadAccount(context.Background(), account.AccountID(1<<62), time.Now())
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestPostgresStoreSendMoney(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	source, err := store.CreateAccount(ctx)
	require.NoError(t, err)
	target, err := store.CreateAccount(ctx)
	require.NoError(t, err)

	external := account.AccountID(1 << 61)
	funding, err := account.NewActivity(account.ActivityParams{
		Owner:     &source,
		Source:    &external,
		Target:    &source,
		Timestamp: time.Now().UTC().Add(-30 * 24 * time.Hour),
		Money:     account.NewMoney(1000),
	})
	require.NoError(t, err)
	_, err = store.UpdateActivities(ctx, account.NewAccountWithID(source, account.Zero, account.NewActivityWindow(funding)))
	require.NoError(t, err)

	svc := sendmoney.NewService(store, store, sendmoney.NewMemoryLock(), sendmoney.Config{})
	cmd, err := sendmoney.NewSendMoneyCommand(source, target, account.NewMoney(100))
	require.NoError(t, err)

	ok, err := svc.SendMoney(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := svc.GetAccountBalance(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, account.NewMoney(100), balance)
}
