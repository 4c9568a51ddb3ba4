package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one versioned schema step. Versions are applied in order and
// recorded in tollgate_migrations so reruns are no-ops.
type migration struct {
	Name    string
	Version string
	Up      string
}

var migrations = []migration{
	{
		Name:    "create_tollgate_protocol",
		Version: "20240101000001",
		Up: `
CREATE TABLE IF NOT EXISTS tollgate_protocol (
    id         TEXT PRIMARY KEY,
    treasury   TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`,
	},
	{
		Name:    "create_tollgate_platforms",
		Version: "20240101000002",
		Up: `
CREATE TABLE IF NOT EXISTS tollgate_platforms (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    price_amount INTEGER NOT NULL DEFAULT 0,
    price_asset  TEXT NOT NULL DEFAULT '',
    period_ns    INTEGER NOT NULL DEFAULT 0,
    treasury     TEXT NOT NULL DEFAULT '{}',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tollgate_platforms_asset ON tollgate_platforms (price_asset);
`,
	},
	{
		Name:    "create_tollgate_accounts",
		Version: "20240101000003",
		Up: `
CREATE TABLE IF NOT EXISTS tollgate_accounts (
    id              TEXT PRIMARY KEY,
    platform_id     TEXT NOT NULL DEFAULT '',
    owner           TEXT NOT NULL DEFAULT '',
    started_at      TEXT NOT NULL DEFAULT (datetime('now')),
    last_renewed_at TEXT,
    valid_until     TEXT NOT NULL DEFAULT (datetime('now')),
    renewal_count   INTEGER NOT NULL DEFAULT 0,
    escrow          TEXT NOT NULL DEFAULT '{}',
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tollgate_accounts_platform_owner ON tollgate_accounts (platform_id, owner);
CREATE INDEX IF NOT EXISTS idx_tollgate_accounts_valid ON tollgate_accounts (platform_id, valid_until);
`,
	},
	{
		Name:    "create_tollgate_history",
		Version: "20240101000004",
		Up: `
CREATE TABLE IF NOT EXISTS tollgate_history (
    id          TEXT PRIMARY KEY,
    platform_id TEXT NOT NULL DEFAULT '',
    owner       TEXT NOT NULL DEFAULT '',
    kind        TEXT NOT NULL DEFAULT '',
    asset       TEXT NOT NULL DEFAULT '',
    amount      INTEGER NOT NULL DEFAULT 0,
    timestamp   TEXT NOT NULL DEFAULT (datetime('now')),
    metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_tollgate_history_account ON tollgate_history (platform_id, owner, timestamp);
CREATE INDEX IF NOT EXISTS idx_tollgate_history_timestamp ON tollgate_history (timestamp);
`,
	},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
	if err != nil {
		return fmt.Errorf("tollgate/sqlite: create migration table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM tollgate_migrations WHERE version = ?`, m.Version).
			Scan(&exists)
		if err != nil {
			return fmt.Errorf("tollgate/sqlite: check migration %s: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tollgate/sqlite: migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tollgate_migrations (version, name) VALUES (?, ?)`,
			m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tollgate/sqlite: record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tollgate/sqlite: commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}
