// Package sqlite provides a Store implementation backed by SQLite via the
// CGo-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/payment"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/protocol"
	tollgatestore "github.com/xraph/tollgate/store"
)

// compile-time interface check
var _ tollgatestore.Store = (*Store)(nil)

// Store implements store.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

// New wraps an already opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the SQLite database at dsn. The connection pool is
// capped at one writer since SQLite serializes writes anyway.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tollgate/sqlite: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tollgate/sqlite: configure %q: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Protocol Store ====================

func (s *Store) InitProtocol(ctx context.Context, proto *protocol.Protocol) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tollgate_protocol`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return tollgate.ErrProtocolInitialized
		}

		treasury, err := marshalPool(proto.Treasury)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO tollgate_protocol (id, treasury, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
			proto.ID.String(), treasury, fmtTime(proto.CreatedAt), fmtTime(proto.UpdatedAt))
		return err
	})
}

func (s *Store) GetProtocol(ctx context.Context) (*protocol.Protocol, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, treasury, created_at, updated_at FROM tollgate_protocol LIMIT 1`)
	return scanProtocol(row)
}

func (s *Store) WithdrawProtocol(ctx context.Context, assetKey string) (amount int64, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		proto, err := protocolForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		withdrawn, ok := proto.Treasury.Withdraw(assetKey)
		if !ok {
			return tollgate.ErrNotFound
		}
		amount = withdrawn
		return updateProtocolTreasury(ctx, tx, proto)
	})
	return amount, err
}

// ==================== Platform Store ====================

func (s *Store) CreatePlatform(ctx context.Context, p *platform.Platform) error {
	treasury, err := marshalPool(p.Treasury)
	if err != nil {
		return err
	}
	meta, err := marshalMeta(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tollgate_platforms (id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.Price.Amount, p.Price.Asset, int64(p.Period),
		treasury, meta, fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	return err
}

func (s *Store) GetPlatform(ctx context.Context, platformID id.PlatformID) (*platform.Platform, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms WHERE id = ?`, platformID.String())

	var r platformRow
	err := row.Scan(&r.ID, &r.Name, &r.PriceAmount, &r.PriceAsset, &r.PeriodNS,
		&r.Treasury, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tollgate.ErrPlatformNotFound
		}
		return nil, err
	}
	return fromPlatformRow(&r)
}

func (s *Store) ListPlatforms(ctx context.Context, opts platform.ListOpts) ([]*platform.Platform, error) {
	q := `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms`
	args := make([]any, 0, 3)
	if opts.Asset != "" {
		q += ` WHERE price_asset = ?`
		args = append(args, opts.Asset)
	}
	q += ` ORDER BY created_at ASC`
	if opts.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*platform.Platform, 0)
	for rows.Next() {
		var r platformRow
		if err := rows.Scan(&r.ID, &r.Name, &r.PriceAmount, &r.PriceAsset, &r.PeriodNS,
			&r.Treasury, &r.Metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		p, err := fromPlatformRow(&r)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) WithdrawPlatform(ctx context.Context, platformID id.PlatformID, assetKey string) (amount int64, err error) {
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := platformForUpdate(ctx, tx, platformID)
		if err != nil {
			return err
		}
		withdrawn, ok := p.Treasury.Withdraw(assetKey)
		if !ok {
			return tollgate.ErrNotFound
		}
		amount = withdrawn
		return updatePlatformTreasury(ctx, tx, p)
	})
	return amount, err
}

// ==================== Account Store ====================

const accountColumns = `id, platform_id, owner, started_at, last_renewed_at, valid_until, renewal_count, escrow, metadata, created_at, updated_at`

func (s *Store) GetAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
		platformID.String(), owner)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM tollgate_accounts WHERE platform_id = ? ORDER BY created_at ASC`
	args := []any{platformID.String()}
	if opts.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*account.Account, 0)
	for rows.Next() {
		var r accountRow
		if err := rows.Scan(&r.ID, &r.PlatformID, &r.Owner, &r.StartedAt, &r.LastRenewedAt,
			&r.ValidUntil, &r.RenewalCount, &r.Escrow, &r.Metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		a, err := fromAccountRow(&r)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) CommitSubscription(ctx context.Context, rcpt *payment.Receipt, acct *account.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		proto, err := protocolForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		p, err := platformForUpdate(ctx, tx, rcpt.PlatformID)
		if err != nil {
			return err
		}

		var count int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
			rcpt.PlatformID.String(), rcpt.Owner).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return tollgate.ErrSubscriptionExists
		}
		if !rcpt.Conserves() {
			return tollgate.ErrValueNotConserved
		}

		proto.Treasury.DepositFunds(rcpt.ProtocolShare)
		p.Treasury.DepositFunds(rcpt.PlatformShare)
		if err := updateProtocolTreasury(ctx, tx, proto); err != nil {
			return err
		}
		if err := updatePlatformTreasury(ctx, tx, p); err != nil {
			return err
		}
		return insertAccount(ctx, tx, acct)
	})
}

func (s *Store) CommitRenewal(ctx context.Context, rcpt *payment.Receipt, now time.Time, period time.Duration) (*account.Account, error) {
	var acct *account.Account
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		proto, err := protocolForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		p, err := platformForUpdate(ctx, tx, rcpt.PlatformID)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
			rcpt.PlatformID.String(), rcpt.Owner)
		acct, err = scanAccount(row)
		if err != nil {
			return err
		}
		if !rcpt.Conserves() {
			return tollgate.ErrValueNotConserved
		}

		proto.Treasury.DepositFunds(rcpt.ProtocolShare)
		p.Treasury.DepositFunds(rcpt.PlatformShare)
		acct.Renew(now, period)

		if err := updateProtocolTreasury(ctx, tx, proto); err != nil {
			return err
		}
		if err := updatePlatformTreasury(ctx, tx, p); err != nil {
			return err
		}
		return updateAccount(ctx, tx, acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) RemoveAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	var acct *account.Account
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
			platformID.String(), owner)
		var err error
		acct, err = scanAccount(row)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
			platformID.String(), owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) CreditEscrow(ctx context.Context, platformID id.PlatformID, owner, assetKey string, amount int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = ? AND owner = ?`,
			platformID.String(), owner)
		acct, err := scanAccount(row)
		if err != nil {
			return err
		}
		acct.Escrow.Deposit(assetKey, amount)
		acct.Touch()
		return updateAccount(ctx, tx, acct)
	})
}

// ==================== History Store ====================

func (s *Store) AppendHistory(ctx context.Context, entries []*history.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tollgate_history (id, platform_id, owner, kind, asset, amount, timestamp, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			meta, err := marshalMeta(e.Metadata)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				e.ID.String(), e.PlatformID.String(), e.Owner, string(e.Kind),
				e.Asset, e.Amount, fmtTime(e.Timestamp), meta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) QueryHistory(ctx context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error) {
	q := `
SELECT id, platform_id, owner, kind, asset, amount, timestamp, metadata
FROM tollgate_history WHERE platform_id = ? AND owner = ?`
	args := []any{platformID.String(), owner}

	if opts.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(opts.Kind))
	}
	if !opts.Start.IsZero() {
		q += ` AND timestamp > ?`
		args = append(args, fmtTime(opts.Start))
	}
	if !opts.End.IsZero() {
		q += ` AND timestamp < ?`
		args = append(args, fmtTime(opts.End))
	}
	q += ` ORDER BY timestamp ASC`
	if opts.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*history.Entry, 0)
	for rows.Next() {
		var r historyRow
		if err := rows.Scan(&r.ID, &r.PlatformID, &r.Owner, &r.Kind, &r.Asset,
			&r.Amount, &r.Timestamp, &r.Metadata); err != nil {
			return nil, err
		}
		e, err := fromHistoryRow(&r)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) PurgeHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tollgate_history WHERE timestamp < ?`, fmtTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProtocol(row rowScanner) (*protocol.Protocol, error) {
	var (
		idStr, treasury, createdAt, updatedAt string
	)
	if err := row.Scan(&idStr, &treasury, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tollgate.ErrProtocolNotInitialized
		}
		return nil, err
	}

	protoID, err := id.ParseProtocolID(idStr)
	if err != nil {
		return nil, err
	}
	pool, err := unmarshalPool(treasury)
	if err != nil {
		return nil, err
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	proto := &protocol.Protocol{ID: protoID, Treasury: pool}
	proto.CreatedAt = created
	proto.UpdatedAt = updated
	return proto, nil
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var r accountRow
	err := row.Scan(&r.ID, &r.PlatformID, &r.Owner, &r.StartedAt, &r.LastRenewedAt,
		&r.ValidUntil, &r.RenewalCount, &r.Escrow, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tollgate.ErrNoSubscription
		}
		return nil, err
	}
	return fromAccountRow(&r)
}

func protocolForUpdate(ctx context.Context, tx *sql.Tx) (*protocol.Protocol, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, treasury, created_at, updated_at FROM tollgate_protocol LIMIT 1`)
	return scanProtocol(row)
}

func platformForUpdate(ctx context.Context, tx *sql.Tx, platformID id.PlatformID) (*platform.Platform, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms WHERE id = ?`, platformID.String())

	var r platformRow
	err := row.Scan(&r.ID, &r.Name, &r.PriceAmount, &r.PriceAsset, &r.PeriodNS,
		&r.Treasury, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tollgate.ErrPlatformNotFound
		}
		return nil, err
	}
	return fromPlatformRow(&r)
}

func updateProtocolTreasury(ctx context.Context, tx *sql.Tx, proto *protocol.Protocol) error {
	treasury, err := marshalPool(proto.Treasury)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tollgate_protocol SET treasury = ?, updated_at = ? WHERE id = ?`,
		treasury, fmtTime(time.Now()), proto.ID.String())
	return err
}

func updatePlatformTreasury(ctx context.Context, tx *sql.Tx, p *platform.Platform) error {
	treasury, err := marshalPool(p.Treasury)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tollgate_platforms SET treasury = ?, updated_at = ? WHERE id = ?`,
		treasury, fmtTime(time.Now()), p.ID.String())
	return err
}

func insertAccount(ctx context.Context, tx *sql.Tx, acct *account.Account) error {
	escrow, err := marshalPool(acct.Escrow)
	if err != nil {
		return err
	}
	meta, err := marshalMeta(acct.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO tollgate_accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID.String(), acct.PlatformID.String(), acct.Owner,
		fmtTime(acct.StartedAt), fmtNullTime(acct.LastRenewedAt), fmtTime(acct.ValidUntil),
		acct.RenewalCount, escrow, meta, fmtTime(acct.CreatedAt), fmtTime(acct.UpdatedAt))
	return err
}

func updateAccount(ctx context.Context, tx *sql.Tx, acct *account.Account) error {
	escrow, err := marshalPool(acct.Escrow)
	if err != nil {
		return err
	}
	meta, err := marshalMeta(acct.Metadata)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
UPDATE tollgate_accounts
SET last_renewed_at = ?, valid_until = ?, renewal_count = ?, escrow = ?, metadata = ?, updated_at = ?
WHERE id = ?`,
		fmtNullTime(acct.LastRenewedAt), fmtTime(acct.ValidUntil), acct.RenewalCount,
		escrow, meta, fmtTime(acct.UpdatedAt), acct.ID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tollgate.ErrNoSubscription
	}
	return nil
}
