package account

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound is returned by a Loader for unknown account ids.
var ErrAccountNotFound = errors.New("account not found")

// Loader assembles an account from storage. The baseline balance covers all
// activity strictly before baselineDate; the window holds the activities owned
// by id at or after it.
type Loader interface {
	LoadAccount(ctx context.Context, id AccountID, baselineDate time.Time) (*Account, error)
}

// Updater persists the activities of the account window that have no id yet
// and returns the account with the assigned ids.
type Updater interface {
	UpdateActivities(ctx context.Context, acc *Account) (*Account, error)
}
