package account

import (
	"errors"
	"time"
)

var (
	ErrMissingSourceAccount = errors.New("activity: source account id is missing")
	ErrMissingTargetAccount = errors.New("activity: target account id is missing")
)

// AccountID identifies an account.
type AccountID uint64

// ActivityID identifies a persisted activity.
type ActivityID uint64

// Activity is a transfer of money from a source account to a target account,
// filed under the ledger of its owner account.
type Activity struct {
	id        ActivityID
	hasID     bool
	owner     AccountID
	source    AccountID
	target    AccountID
	timestamp time.Time
	money     Money
}

// ActivityParams are the inputs of NewActivity. Nil pointers are absent values:
// Owner defaults to Source, a zero Timestamp defaults to the current time and a
// nil ID marks an activity that has not been persisted yet.
type ActivityParams struct {
	ID        *ActivityID
	Owner     *AccountID
	Source    *AccountID
	Target    *AccountID
	Timestamp time.Time
	Money     Money
}

// NewActivity validates params and builds an Activity.
func NewActivity(p ActivityParams) (Activity, error) {
	if p.Source == nil {
		return Activity{}, ErrMissingSourceAccount
	}
	if p.Target == nil {
		return Activity{}, ErrMissingTargetAccount
	}

	a := Activity{
		owner:     *p.Source,
		source:    *p.Source,
		target:    *p.Target,
		timestamp: p.Timestamp,
		money:     p.Money,
	}
	if p.Owner != nil {
		a.owner = *p.Owner
	}
	if a.timestamp.IsZero() {
		a.timestamp = time.Now().UTC()
	}
	if p.ID != nil {
		a.id = *p.ID
		a.hasID = true
	}
	return a, nil
}

// ID returns the activity id and whether it has been assigned.
func (a Activity) ID() (ActivityID, bool) { return a.id, a.hasID }

func (a Activity) OwnerAccountID() AccountID  { return a.owner }
func (a Activity) SourceAccountID() AccountID { return a.source }
func (a Activity) TargetAccountID() AccountID { return a.target }
func (a Activity) Timestamp() time.Time       { return a.timestamp }
func (a Activity) Money() Money               { return a.money }

// WithTimestamp returns a copy of a stamped at ts, keeping its identity.
func (a Activity) WithTimestamp(ts time.Time) Activity {
	a.timestamp = ts
	return a
}

// WithID returns a copy of a carrying the persisted id.
func (a Activity) WithID(id ActivityID) Activity {
	a.id = id
	a.hasID = true
	return a
}
