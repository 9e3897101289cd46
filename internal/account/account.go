package account

import (
	"errors"
	"time"
)

// ErrMissingAccountID is returned when a balance is requested from an account
// that has no identity yet.
var ErrMissingAccountID = errors.New("account id is not set")

// Account is the aggregate root. Its balance is the baseline balance plus the
// net contribution of the activity window.
type Account struct {
	id       AccountID
	hasID    bool
	baseline Money
	window   *ActivityWindow
}

// NewAccount builds an account that has not been persisted yet.
func NewAccount(baseline Money, window *ActivityWindow) *Account {
	if window == nil {
		window = NewActivityWindow()
	}
	return &Account{baseline: baseline, window: window}
}

// NewAccountWithID builds an account with a known identity.
func NewAccountWithID(id AccountID, baseline Money, window *ActivityWindow) *Account {
	a := NewAccount(baseline, window)
	a.id = id
	a.hasID = true
	return a
}

// ID returns the account id and whether it is set.
func (a *Account) ID() (AccountID, bool) { return a.id, a.hasID }

func (a *Account) BaselineBalance() Money { return a.baseline }

func (a *Account) ActivityWindow() *ActivityWindow { return a.window }

func (a *Account) CalculateBalance() (Money, error) {
	if !a.hasID {
		return Zero, ErrMissingAccountID
	}
	return a.baseline.Add(a.window.CalculateBalance(a.id)), nil
}

// Withdraw moves money to target if the balance stays non-negative.
// It reports false, leaving the account untouched, when the account has no id
// or the funds are insufficient.
func (a *Account) Withdraw(money Money, target AccountID) bool {
	if !a.mayWithdraw(money) {
		return false
	}

	id := a.id
	withdrawal, err := NewActivity(ActivityParams{
		Source:    &id,
		Target:    &target,
		Timestamp: time.Now().UTC(),
		Money:     money,
	})
	if err != nil {
		return false
	}
	a.window.AddActivity(withdrawal)
	return true
}

func (a *Account) mayWithdraw(money Money) bool {
	balance, err := a.CalculateBalance()
	if err != nil {
		return false
	}
	rest, err := balance.CheckedSubtract(money)
	if err != nil {
		return false
	}
	return rest.IsPositiveOrZero()
}

// Deposit records money received from source. Deposits are never rejected for
// balance reasons; only an account without id refuses them.
func (a *Account) Deposit(money Money, source AccountID) bool {
	if !a.hasID {
		return false
	}

	id := a.id
	deposit, err := NewActivity(ActivityParams{
		Owner:     &id,
		Source:    &source,
		Target:    &id,
		Timestamp: time.Now().UTC(),
		Money:     money,
	})
	if err != nil {
		return false
	}
	a.window.AddActivity(deposit)
	return true
}
