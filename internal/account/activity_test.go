package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref[T any](v T) *T { return &v }

func defaultActivityParams() ActivityParams {
	return ActivityParams{
		Source: ref(AccountID(42)),
		Target: ref(AccountID(41)),
		Money:  NewMoney(999),
	}
}

func mustActivity(t *testing.T, p ActivityParams) Activity {
	t.Helper()
	a, err := NewActivity(p)
	require.NoError(t, err)
	return a
}

func TestNewActivityDefaults(t *testing.T) {
	before := time.Now()
	a := mustActivity(t, defaultActivityParams())

	_, hasID := a.ID()
	assert.False(t, hasID)
	assert.Equal(t, AccountID(42), a.OwnerAccountID(), "owner defaults to source")
	assert.Equal(t, AccountID(42), a.SourceAccountID())
	assert.Equal(t, AccountID(41), a.TargetAccountID())
	assert.Equal(t, NewMoney(999), a.Money())
	assert.False(t, a.Timestamp().Before(before.Add(-time.Second)))
	assert.Equal(t, time.UTC, a.Timestamp().Location())
}

func TestNewActivityExplicitFields(t *testing.T) {
	ts := time.Date(2019, 8, 3, 0, 0, 0, 0, time.UTC)
	p := defaultActivityParams()
	p.ID = ref(ActivityID(7))
	p.Owner = ref(AccountID(41))
	p.Timestamp = ts

	a := mustActivity(t, p)

	id, ok := a.ID()
	require.True(t, ok)
	assert.Equal(t, ActivityID(7), id)
	assert.Equal(t, AccountID(41), a.OwnerAccountID())
	assert.True(t, ts.Equal(a.Timestamp()))
}

func TestNewActivityRequiresAccounts(t *testing.T) {
	p := defaultActivityParams()
	p.Source = nil
	_, err := NewActivity(p)
	assert.ErrorIs(t, err, ErrMissingSourceAccount)

	p = defaultActivityParams()
	p.Source = nil
	p.Owner = ref(AccountID(1))
	_, err = NewActivity(p)
	assert.ErrorIs(t, err, ErrMissingSourceAccount)

	p = defaultActivityParams()
	p.Target = nil
	_, err = NewActivity(p)
	assert.ErrorIs(t, err, ErrMissingTargetAccount)
}

func TestActivityWithTimestampKeepsIdentity(t *testing.T) {
	p := defaultActivityParams()
	p.ID = ref(ActivityID(3))
	a := mustActivity(t, p)

	ts := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	b := a.WithTimestamp(ts)

	id, ok := b.ID()
	require.True(t, ok)
	assert.Equal(t, ActivityID(3), id)
	assert.True(t, ts.Equal(b.Timestamp()))
	assert.Equal(t, a.Money(), b.Money())
	assert.False(t, ts.Equal(a.Timestamp()), "original is unchanged")

	unsaved := mustActivity(t, defaultActivityParams()).WithTimestamp(ts)
	_, ok = unsaved.ID()
	assert.False(t, ok)
}

func TestActivityWithID(t *testing.T) {
	a := mustActivity(t, defaultActivityParams())
	b := a.WithID(11)

	id, ok := b.ID()
	require.True(t, ok)
	assert.Equal(t, ActivityID(11), id)
	_, ok = a.ID()
	assert.False(t, ok)
}
