package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/example/account-ledger/internal/account"
)

const queryTimeout = 5 * time.Second

// Store is implemented by every persistence backend.
type Store interface {
	account.Loader
	account.Updater
	UpdateAccounts(ctx context.Context, accs ...*account.Account) ([]*account.Account, error)
	CreateAccount(ctx context.Context) (account.AccountID, error)
	Migrate(ctx context.Context) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// activityRow is the storage shape of an activity.
type activityRow struct {
	ID        int64
	Timestamp time.Time
	Owner     int64
	Source    int64
	Target    int64
	Amount    int64
}

func (r activityRow) toActivity() (account.Activity, error) {
	id := account.ActivityID(r.ID)
	owner := account.AccountID(r.Owner)
	source := account.AccountID(r.Source)
	target := account.AccountID(r.Target)
	a, err := account.NewActivity(account.ActivityParams{
		ID:        &id,
		Owner:     &owner,
		Source:    &source,
		Target:    &target,
		Timestamp: r.Timestamp.UTC(),
		Money:     account.NewMoney(r.Amount),
	})
	if err != nil {
		return account.Activity{}, fmt.Errorf("invalid activity row %d: %w", r.ID, err)
	}
	return a, nil
}

func assembleAccount(id account.AccountID, deposits, withdrawals int64, rows []activityRow) (*account.Account, error) {
	activities := make([]account.Activity, 0, len(rows))
	for _, r := range rows {
		a, err := r.toActivity()
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}

	baseline, err := account.NewMoney(deposits).CheckedSubtract(account.NewMoney(withdrawals))
	if err != nil {
		return nil, fmt.Errorf("baseline balance of account %d: %w", id, err)
	}
	return account.NewAccountWithID(id, baseline, account.NewActivityWindow(activities...)), nil
}

// assignIDs walks the window of acc, calling insert for every activity without
// an id, and returns the window contents with the ids insert produced.
func assignIDs(acc *account.Account, insert func(account.Activity) (int64, error)) ([]account.Activity, error) {
	current := acc.ActivityWindow().Activities()
	out := make([]account.Activity, 0, len(current))
	for _, a := range current {
		if _, ok := a.ID(); ok {
			out = append(out, a)
			continue
		}
		id, err := insert(a)
		if err != nil {
			return nil, err
		}
		out = append(out, a.WithID(account.ActivityID(id)))
	}
	return out, nil
}

func accountID(acc *account.Account) (account.AccountID, error) {
	id, ok := acc.ID()
	if !ok {
		return 0, account.ErrMissingAccountID
	}
	return id, nil
}

func notFound(id account.AccountID) error {
	return fmt.Errorf("account %d: %w", id, account.ErrAccountNotFound)
}
