package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

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
    treasury   JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
    price_amount BIGINT NOT NULL DEFAULT 0,
    price_asset  TEXT NOT NULL DEFAULT '',
    period_ns    BIGINT NOT NULL DEFAULT 0,
    treasury     JSONB NOT NULL DEFAULT '{}',
    metadata     JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
    started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_renewed_at TIMESTAMPTZ,
    valid_until     TIMESTAMPTZ NOT NULL DEFAULT now(),
    renewal_count   INTEGER NOT NULL DEFAULT 0,
    escrow          JSONB NOT NULL DEFAULT '{}',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
    amount      BIGINT NOT NULL DEFAULT 0,
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT now(),
    metadata    JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_tollgate_history_account ON tollgate_history (platform_id, owner, timestamp);
CREATE INDEX IF NOT EXISTS idx_tollgate_history_timestamp ON tollgate_history (timestamp);
`,
	},
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return fmt.Errorf("tollgate/postgres: create migration table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := pool.QueryRow(ctx,
			`SELECT COUNT(1) FROM tollgate_migrations WHERE version = $1`, m.Version).
			Scan(&exists)
		if err != nil {
			return fmt.Errorf("tollgate/postgres: check migration %s: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.Up); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("tollgate/postgres: migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO tollgate_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("tollgate/postgres: record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("tollgate/postgres: commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}
