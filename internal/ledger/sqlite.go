package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/account-ledger/internal/account"
)

// OpenSQLite opens a go-sqlite3 database. In-memory databases are pinned to a
// single connection because every connection would otherwise see its own copy.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// SQLiteStore loads and persists accounts through database/sql and go-sqlite3.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context) (account.AccountID, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.DB.ExecContext(queryCtx, `INSERT INTO account DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read account id: %w", err)
	}
	return account.AccountID(id), nil
}

func (s *SQLiteStore) LoadAccount(ctx context.Context, id account.AccountID, baselineDate time.Time) (*account.Account, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var found int64
	err := s.DB.QueryRowContext(queryCtx, `SELECT id FROM account WHERE id = ?`, int64(id)).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to check account existence: %w", err)
	}

	baseline := baselineDate.UnixNano()

	rows, err := s.DB.QueryContext(queryCtx, `
		SELECT id, timestamp, owner_account_id, source_account_id, target_account_id, amount
		FROM activity
		WHERE owner_account_id = ? AND timestamp >= ?
		ORDER BY timestamp, id
	`, int64(id), baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var window []activityRow
	for rows.Next() {
		var r activityRow
		var nanos int64
		if err := rows.Scan(&r.ID, &nanos, &r.Owner, &r.Source, &r.Target, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		r.Timestamp = time.Unix(0, nanos).UTC()
		window = append(window, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}
	rows.Close()

	var deposits, withdrawals int64
	err = s.DB.QueryRowContext(queryCtx, `
		SELECT
			COALESCE(SUM(CASE WHEN target_account_id = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source_account_id = ? THEN amount ELSE 0 END), 0)
		FROM activity
		WHERE owner_account_id = ? AND timestamp < ?
	`, int64(id), int64(id), int64(id), baseline).Scan(&deposits, &withdrawals)
	if err != nil {
		return nil, fmt.Errorf("failed to compute baseline balance: %w", err)
	}

	return assembleAccount(id, deposits, withdrawals, window)
}

func (s *SQLiteStore) UpdateActivities(ctx context.Context, acc *account.Account) (*account.Account, error) {
	out, err := s.UpdateAccounts(ctx, acc)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// UpdateAccounts inserts the new activities of every account in one transaction.
func (s *SQLiteStore) UpdateAccounts(ctx context.Context, accs ...*account.Account) ([]*account.Account, error) {
	ids := make([]account.AccountID, len(accs))
	for i, acc := range accs {
		id, err := accountID(acc)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.DB.BeginTx(queryCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := func(a account.Activity) (int64, error) {
		res, err := tx.ExecContext(queryCtx, `
			INSERT INTO activity (timestamp, owner_account_id, source_account_id, target_account_id, amount)
			VALUES (?, ?, ?, ?, ?)
		`, a.Timestamp().UnixNano(), int64(a.OwnerAccountID()), int64(a.SourceAccountID()), int64(a.TargetAccountID()), a.Money().Amount())
		if err != nil {
			return 0, fmt.Errorf("failed to insert activity: %w", err)
		}
		return res.LastInsertId()
	}

	out := make([]*account.Account, len(accs))
	for i, acc := range accs {
		persisted, err := assignIDs(acc, insert)
		if err != nil {
			return nil, fmt.Errorf("failed to persist activities: %w", err)
		}
		out[i] = account.NewAccountWithID(ids[i], acc.BaselineBalance(), account.NewActivityWindow(persisted...))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return out, nil
}
