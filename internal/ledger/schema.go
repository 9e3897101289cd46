package ledger

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS account (
		id BIGSERIAL PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		owner_account_id BIGINT NOT NULL,
		source_account_id BIGINT NOT NULL,
		target_account_id BIGINT NOT NULL,
		amount BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_owner_timestamp ON activity (owner_account_id, timestamp)`,
}

// timestamps are unix nanoseconds so that range filters compare integers
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS account (
		id INTEGER PRIMARY KEY AUTOINCREMENT
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		owner_account_id INTEGER NOT NULL,
		source_account_id INTEGER NOT NULL,
		target_account_id INTEGER NOT NULL,
		amount INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_owner_timestamp ON activity (owner_account_id, timestamp)`,
}
