package account

import (
	"errors"
	"time"
)

// ErrEmptyWindow is returned by time range queries on a window without activities.
var ErrEmptyWindow = errors.New("activity window is empty")

// ActivityWindow is the ordered log of activities recorded since the baseline date.
// It is append only; duplicates are kept.
type ActivityWindow struct {
	activities []Activity
}

// NewActivityWindow copies activities into a new window. An empty window is valid.
func NewActivityWindow(activities ...Activity) *ActivityWindow {
	w := &ActivityWindow{activities: make([]Activity, len(activities))}
	copy(w.activities, activities)
	return w
}

// Activities returns a copy of the window contents in insertion order.
func (w *ActivityWindow) Activities() []Activity {
	out := make([]Activity, len(w.activities))
	copy(out, w.activities)
	return out
}

func (w *ActivityWindow) Len() int { return len(w.activities) }

func (w *ActivityWindow) AddActivity(a Activity) {
	w.activities = append(w.activities, a)
}

// Unsaved returns the activities that have no id yet.
func (w *ActivityWindow) Unsaved() []Activity {
	var out []Activity
	for _, a := range w.activities {
		if _, ok := a.ID(); !ok {
			out = append(out, a)
		}
	}
	return out
}

// StartTimestamp is the earliest activity timestamp.
func (w *ActivityWindow) StartTimestamp() (time.Time, error) {
	if len(w.activities) == 0 {
		return time.Time{}, ErrEmptyWindow
	}
	start := w.activities[0].Timestamp()
	for _, a := range w.activities[1:] {
		if a.Timestamp().Before(start) {
			start = a.Timestamp()
		}
	}
	return start, nil
}

// EndTimestamp is the latest activity timestamp.
func (w *ActivityWindow) EndTimestamp() (time.Time, error) {
	if len(w.activities) == 0 {
		return time.Time{}, ErrEmptyWindow
	}
	end := w.activities[0].Timestamp()
	for _, a := range w.activities[1:] {
		if a.Timestamp().After(end) {
			end = a.Timestamp()
		}
	}
	return end, nil
}

// CalculateBalance nets deposits into id against withdrawals from id.
// A transfer from id to itself contributes to both sides and nets to zero.
func (w *ActivityWindow) CalculateBalance(id AccountID) Money {
	deposits, withdrawals := Zero, Zero
	for _, a := range w.activities {
		if a.TargetAccountID() == id {
			deposits = deposits.Add(a.Money())
		}
		if a.SourceAccountID() == id {
			withdrawals = withdrawals.Add(a.Money())
		}
	}
	return deposits.Subtract(withdrawals)
}
