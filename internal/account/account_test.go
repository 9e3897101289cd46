package account

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accountWithDeposits returns account 1 with baseline 555 and deposits of 999 and 1.
func accountWithDeposits(t *testing.T) *Account {
	t.Helper()
	id := AccountID(1)
	deposit := func(amount int64) Activity {
		p := defaultActivityParams()
		p.Target = ref(id)
		p.Money = NewMoney(amount)
		return mustActivity(t, p)
	}
	return NewAccountWithID(id, NewMoney(555), NewActivityWindow(deposit(999), deposit(1)))
}

func mustBalance(t *testing.T, a *Account) Money {
	t.Helper()
	b, err := a.CalculateBalance()
	require.NoError(t, err)
	return b
}

func TestAccountCalculatesBalance(t *testing.T) {
	a := accountWithDeposits(t)

	assert.Equal(t, NewMoney(1555), mustBalance(t, a))
}

func TestAccountWithdrawalSucceeds(t *testing.T) {
	a := accountWithDeposits(t)

	ok := a.Withdraw(NewMoney(555), 99)

	require.True(t, ok)
	assert.Equal(t, 3, a.ActivityWindow().Len())
	assert.Equal(t, NewMoney(1000), mustBalance(t, a))

	added := a.ActivityWindow().Activities()[2]
	assert.Equal(t, AccountID(1), added.SourceAccountID())
	assert.Equal(t, AccountID(99), added.TargetAccountID())
	assert.Equal(t, AccountID(1), added.OwnerAccountID())
	assert.Equal(t, NewMoney(555), added.Money())
	_, hasID := added.ID()
	assert.False(t, hasID)
}

func TestAccountWithdrawalOfWholeBalance(t *testing.T) {
	a := accountWithDeposits(t)

	require.True(t, a.Withdraw(NewMoney(1555), 99))
	assert.Equal(t, Zero, mustBalance(t, a))
}

func TestAccountWithdrawalFailure(t *testing.T) {
	a := accountWithDeposits(t)

	ok := a.Withdraw(NewMoney(1556), 99)

	assert.False(t, ok)
	assert.Equal(t, 2, a.ActivityWindow().Len())
	assert.Equal(t, NewMoney(1555), mustBalance(t, a))
}

func TestAccountWithdrawalOverflowIsRejected(t *testing.T) {
	a := NewAccountWithID(1, NewMoney(-10), nil)

	assert.False(t, a.Withdraw(NewMoney(math.MaxInt64), 2))
	assert.Equal(t, 0, a.ActivityWindow().Len())
}

func TestAccountDepositSucceeds(t *testing.T) {
	a := accountWithDeposits(t)

	ok := a.Deposit(NewMoney(445), 99)

	require.True(t, ok)
	assert.Equal(t, 3, a.ActivityWindow().Len())
	assert.Equal(t, NewMoney(2000), mustBalance(t, a))

	added := a.ActivityWindow().Activities()[2]
	assert.Equal(t, AccountID(99), added.SourceAccountID())
	assert.Equal(t, AccountID(1), added.TargetAccountID())
	assert.Equal(t, AccountID(1), added.OwnerAccountID())
}

func TestAccountDepositIsUnconditional(t *testing.T) {
	a := NewAccountWithID(1, NewMoney(-100), nil)

	require.True(t, a.Deposit(NewMoney(-50), 2))
	require.True(t, a.Deposit(NewMoney(0), 2))
	assert.Equal(t, NewMoney(-150), mustBalance(t, a))
}

func TestAccountWithoutIDIsRejected(t *testing.T) {
	a := NewAccount(NewMoney(1000), NewActivityWindow())

	_, hasID := a.ID()
	assert.False(t, hasID)

	_, err := a.CalculateBalance()
	assert.ErrorIs(t, err, ErrMissingAccountID)

	assert.False(t, a.Withdraw(NewMoney(1), 2))
	assert.False(t, a.Deposit(NewMoney(1), 2))
	assert.Equal(t, 0, a.ActivityWindow().Len())
}

func TestAccountBaselineBalance(t *testing.T) {
	a := NewAccountWithID(7, NewMoney(123), nil)

	id, ok := a.ID()
	require.True(t, ok)
	assert.Equal(t, AccountID(7), id)
	assert.Equal(t, NewMoney(123), a.BaselineBalance())
	assert.Equal(t, NewMoney(123), mustBalance(t, a))
}
