package sendmoney

import (
	"context"
	"errors"
	"sync"

	"github.com/example/account-ledger/internal/account"
)

// ErrNotLocked is returned when releasing an account this process does not hold.
var ErrNotLocked = errors.New("account is not locked")

// AccountLock serializes mutations of a single account.
type AccountLock interface {
	Lock(ctx context.Context, id account.AccountID) error
	Unlock(ctx context.Context, id account.AccountID) error
}

// MemoryLock is an AccountLock for a single process. A slot lives only while
// some caller holds or waits for its account.
type MemoryLock struct {
	mu    sync.Mutex
	slots map[account.AccountID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{slots: make(map[account.AccountID]*lockSlot)}
}

func (l *MemoryLock) acquire(id account.AccountID) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

// drop must be called with l.mu held.
func (l *MemoryLock) drop(id account.AccountID, s *lockSlot) {
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

// Lock blocks until id is free or ctx is done.
func (l *MemoryLock) Lock(ctx context.Context, id account.AccountID) error {
	s := l.acquire(id)
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(id, s)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *MemoryLock) Unlock(_ context.Context, id account.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	if !ok {
		return ErrNotLocked
	}
	select {
	case <-s.ch:
		l.drop(id, s)
		return nil
	default:
		return ErrNotLocked
	}
}

func (l *MemoryLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
