package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/account-ledger/internal/account"
)

const serializationFailure = "40001"

// PostgresStore loads and persists accounts in PostgreSQL.
type PostgresStore struct {
	Pool       *pgxpool.Pool
	MaxRetries int
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool, MaxRetries: 3}
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// CreateAccount allocates a new account id.
func (s *PostgresStore) CreateAccount(ctx context.Context) (account.AccountID, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	if err := s.Pool.QueryRow(queryCtx, `INSERT INTO account DEFAULT VALUES RETURNING id`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return account.AccountID(id), nil
}

// LoadAccount implements account.Loader.
func (s *PostgresStore) LoadAccount(ctx context.Context, id account.AccountID, baselineDate time.Time) (*account.Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := s.Pool.QueryRow(queryCtx, `SELECT EXISTS(SELECT 1 FROM account WHERE id = $1)`, int64(id)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return nil, notFound(id)
	}

	rows, err := s.Pool.Query(queryCtx, `
		SELECT id, timestamp, owner_account_id, source_account_id, target_account_id, amount
		FROM activity
		WHERE owner_account_id = $1 AND timestamp >= $2
		ORDER BY timestamp, id
	`, int64(id), baselineDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var window []activityRow
	for rows.Next() {
		var r activityRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Owner, &r.Source, &r.Target, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		window = append(window, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}

	var deposits, withdrawals int64
	err = s.Pool.QueryRow(queryCtx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE target_account_id = $1), 0)::BIGINT,
			COALESCE(SUM(amount) FILTER (WHERE source_account_id = $1), 0)::BIGINT
		FROM activity
		WHERE owner_account_id = $1 AND timestamp < $2
	`, int64(id), baselineDate).Scan(&deposits, &withdrawals)
	if err != nil {
		return nil, fmt.Errorf("failed to compute baseline balance: %w", err)
	}

	return assembleAccount(id, deposits, withdrawals, window)
}

// UpdateActivities implements account.Updater. New activities are inserted in a
// SERIALIZABLE transaction that is retried on serialization failures.
func (s *PostgresStore) UpdateActivities(ctx context.Context, acc *account.Account) (*account.Account, error) {
	out, err := s.UpdateAccounts(ctx, acc)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// UpdateAccounts inserts the new activities of every account in one
// SERIALIZABLE transaction, retrying on serialization failures. Either all
// accounts are persisted or none is.
func (s *PostgresStore) UpdateAccounts(ctx context.Context, accs ...*account.Account) ([]*account.Account, error) {
	ids := make([]account.AccountID, len(accs))
	for i, acc := range accs {
		id, err := accountID(acc)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var persisted [][]account.Activity
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		persisted, err = s.insertActivities(ctx, accs)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to persist activities after %d retries due to serialization failure: %w", maxRetries, err)
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("failed to persist activities: %w", err)
		}
		break
	}

	out := make([]*account.Account, len(accs))
	for i, acc := range accs {
		out[i] = account.NewAccountWithID(ids[i], acc.BaselineBalance(), account.NewActivityWindow(persisted[i]...))
	}
	return out, nil
}

func (s *PostgresStore) insertActivities(ctx context.Context, accs []*account.Account) ([][]account.Activity, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.Pool.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	insert := func(a account.Activity) (int64, error) {
		var id int64
		err := tx.QueryRow(queryCtx, `
			INSERT INTO activity (timestamp, owner_account_id, source_account_id, target_account_id, amount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, a.Timestamp(), int64(a.OwnerAccountID()), int64(a.SourceAccountID()), int64(a.TargetAccountID()), a.Money().Amount()).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert activity: %w", err)
		}
		return id, nil
	}

	persisted := make([][]account.Activity, len(accs))
	for i, acc := range accs {
		if persisted[i], err = assignIDs(acc, insert); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(queryCtx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return persisted, nil
}
