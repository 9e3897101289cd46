package sendmoney

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/pkg/audit"
)

const (
	DefaultBaselineWindow    = 10 * 24 * time.Hour
	DefaultTransferThreshold = account.Money(1_000_000)
)

// ErrThresholdExceeded matches every *ThresholdExceededError.
var ErrThresholdExceeded = errors.New("transfer threshold exceeded")

type ThresholdExceededError struct {
	Threshold account.Money
	Actual    account.Money
}

func (e *ThresholdExceededError) Error() string {
	return fmt.Sprintf("maximum transfer threshold exceeded: tried to transfer %s but threshold is %s", e.Actual, e.Threshold)
}

func (e *ThresholdExceededError) Is(target error) bool { return target == ErrThresholdExceeded }

// Auditor receives one event per transfer attempt that reached the accounts.
type Auditor interface {
	Record(ev audit.Event) (audit.Entry, error)
}

// BatchUpdater is implemented by updaters that can persist several accounts
// in a single transaction.
type BatchUpdater interface {
	UpdateAccounts(ctx context.Context, accs ...*account.Account) ([]*account.Account, error)
}

type Config struct {
	// BaselineWindow is how far back the activity window of a loaded account reaches.
	BaselineWindow    time.Duration
	TransferThreshold account.Money
}

// Service implements the send money use case and the balance query.
type Service struct {
	loader  account.Loader
	updater account.Updater
	lock    AccountLock
	cfg     Config
	logger  *slog.Logger
	auditor Auditor
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithAuditor(a Auditor) Option { return func(s *Service) { s.auditor = a } }

func NewService(loader account.Loader, updater account.Updater, lock AccountLock, cfg Config, opts ...Option) *Service {
	if cfg.BaselineWindow <= 0 {
		cfg.BaselineWindow = DefaultBaselineWindow
	}
	if cfg.TransferThreshold <= 0 {
		cfg.TransferThreshold = DefaultTransferThreshold
	}
	if lock == nil {
		lock = NewMemoryLock()
	}

	s := &Service{
		loader:  loader,
		updater: updater,
		lock:    lock,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SendMoney withdraws the command amount from the source account and deposits
// it into the target account. It reports false when one of the accounts
// rejects the movement; errors are reserved for invalid requests and
// infrastructure failures.
//
// When the updater is a BatchUpdater both accounts are persisted atomically.
// Otherwise they are written one after the other, and a failure on the target
// leaves the withdrawal of the source committed.
func (s *Service) SendMoney(ctx context.Context, cmd SendMoneyCommand) (bool, error) {
	if cmd.Money().GreaterThan(s.cfg.TransferThreshold) {
		return false, &ThresholdExceededError{Threshold: s.cfg.TransferThreshold, Actual: cmd.Money()}
	}

	baselineDate := s.now().UTC().Add(-s.cfg.BaselineWindow)
	sourceID, targetID := cmd.SourceAccountID(), cmd.TargetAccountID()

	unlock, err := s.lockPair(ctx, sourceID, targetID)
	if err != nil {
		return false, err
	}
	defer unlock()

	source, err := s.loader.LoadAccount(ctx, sourceID, baselineDate)
	if err != nil {
		return false, fmt.Errorf("failed to load source account %d: %w", sourceID, err)
	}
	target, err := s.loader.LoadAccount(ctx, targetID, baselineDate)
	if err != nil {
		return false, fmt.Errorf("failed to load target account %d: %w", targetID, err)
	}

	if !source.Withdraw(cmd.Money(), targetID) {
		s.record(cmd, "rejected", "withdrawal refused by source account")
		return false, nil
	}
	if !target.Deposit(cmd.Money(), sourceID) {
		s.record(cmd, "rejected", "deposit refused by target account")
		return false, nil
	}

	if err := s.persist(ctx, source, target); err != nil {
		return false, err
	}

	s.record(cmd, "completed", "")
	return true, nil
}

// GetAccountBalance returns the current balance of id.
func (s *Service) GetAccountBalance(ctx context.Context, id account.AccountID) (account.Money, error) {
	acc, err := s.loader.LoadAccount(ctx, id, s.now().UTC())
	if err != nil {
		return account.Zero, fmt.Errorf("failed to load account %d: %w", id, err)
	}
	return acc.CalculateBalance()
}

func (s *Service) persist(ctx context.Context, source, target *account.Account) error {
	if b, ok := s.updater.(BatchUpdater); ok {
		if _, err := b.UpdateAccounts(ctx, source, target); err != nil {
			return fmt.Errorf("failed to persist transfer: %w", err)
		}
		return nil
	}

	sourceID, _ := source.ID()
	targetID, _ := target.ID()
	if _, err := s.updater.UpdateActivities(ctx, source); err != nil {
		return fmt.Errorf("failed to persist source account %d: %w", sourceID, err)
	}
	if _, err := s.updater.UpdateActivities(ctx, target); err != nil {
		return fmt.Errorf("failed to persist target account %d: %w", targetID, err)
	}
	return nil
}

// lockPair locks both accounts in ascending id order so that two opposite
// transfers cannot deadlock.
func (s *Service) lockPair(ctx context.Context, a, b account.AccountID) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	if err := s.lock.Lock(ctx, first); err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", first, err)
	}
	if err := s.lock.Lock(ctx, second); err != nil {
		s.release(first)
		return nil, fmt.Errorf("failed to lock account %d: %w", second, err)
	}

	return func() {
		s.release(second)
		s.release(first)
	}, nil
}

func (s *Service) release(id account.AccountID) {
	// released with a fresh context so a cancelled request still frees its locks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.lock.Unlock(ctx, id); err != nil {
		s.logger.Error("account_unlock_failed", "account_id", uint64(id), "error", err)
	}
}

func (s *Service) record(cmd SendMoneyCommand, outcome, detail string) {
	s.logger.Info("send_money",
		"source_account_id", uint64(cmd.SourceAccountID()),
		"target_account_id", uint64(cmd.TargetAccountID()),
		"amount", cmd.Money().Amount(),
		"outcome", outcome,
	)
	if s.auditor == nil {
		return
	}
	if _, err := s.auditor.Record(audit.Event{
		Action:          "transfer",
		SourceAccountID: uint64(cmd.SourceAccountID()),
		TargetAccountID: uint64(cmd.TargetAccountID()),
		Amount:          cmd.Money().Amount(),
		Outcome:         outcome,
		Detail:          detail,
	}); err != nil {
		s.logger.Error("audit_record_failed", "outcome", outcome, "error", err)
	}
}
