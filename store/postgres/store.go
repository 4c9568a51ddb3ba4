// Package postgres provides a Store implementation backed by PostgreSQL via
// pgx. Compound commits run in a serialized transaction with row locks on the
// treasuries they touch.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store implements store.Store on a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already constructed connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("tollgate/postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.pool)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Protocol Store ====================

func (s *Store) InitProtocol(ctx context.Context, proto *protocol.Protocol) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM tollgate_protocol`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return tollgate.ErrProtocolInitialized
		}

		treasury, err := marshalPool(proto.Treasury)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
INSERT INTO tollgate_protocol (id, treasury, created_at, updated_at)
VALUES ($1, $2, $3, $4)`,
			proto.ID.String(), treasury, proto.CreatedAt, proto.UpdatedAt)
		return err
	})
}

func (s *Store) GetProtocol(ctx context.Context) (*protocol.Protocol, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, treasury, created_at, updated_at FROM tollgate_protocol LIMIT 1`)
	return scanProtocol(row)
}

func (s *Store) WithdrawProtocol(ctx context.Context, assetKey string) (amount int64, err error) {
	err = s.inTx(ctx, func(tx pgx.Tx) error {
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
	_, err = s.pool.Exec(ctx, `
INSERT INTO tollgate_platforms (id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID.String(), p.Name, p.Price.Amount, p.Price.Asset, int64(p.Period),
		treasury, meta, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) GetPlatform(ctx context.Context, platformID id.PlatformID) (*platform.Platform, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms WHERE id = $1`, platformID.String())
	return scanPlatform(row)
}

func (s *Store) ListPlatforms(ctx context.Context, opts platform.ListOpts) ([]*platform.Platform, error) {
	q := `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms`
	args := make([]any, 0, 3)
	if opts.Asset != "" {
		args = append(args, opts.Asset)
		q += fmt.Sprintf(` WHERE price_asset = $%d`, len(args))
	}
	q += ` ORDER BY created_at ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*platform.Platform, 0)
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) WithdrawPlatform(ctx context.Context, platformID id.PlatformID, assetKey string) (amount int64, err error) {
	err = s.inTx(ctx, func(tx pgx.Tx) error {
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
	row := s.pool.QueryRow(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2`,
		platformID.String(), owner)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM tollgate_accounts WHERE platform_id = $1 ORDER BY created_at ASC`
	args := []any{platformID.String()}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*account.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) CommitSubscription(ctx context.Context, rcpt *payment.Receipt, acct *account.Account) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		proto, err := protocolForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		p, err := platformForUpdate(ctx, tx, rcpt.PlatformID)
		if err != nil {
			return err
		}

		var count int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(1) FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2`,
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
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		proto, err := protocolForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		p, err := platformForUpdate(ctx, tx, rcpt.PlatformID)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2 FOR UPDATE`,
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
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2 FOR UPDATE`,
			platformID.String(), owner)
		var err error
		acct, err = scanAccount(row)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2`,
			platformID.String(), owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) CreditEscrow(ctx context.Context, platformID id.PlatformID, owner, assetKey string, amount int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
SELECT `+accountColumns+` FROM tollgate_accounts WHERE platform_id = $1 AND owner = $2 FOR UPDATE`,
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
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, e := range entries {
			meta, err := marshalMeta(e.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
INSERT INTO tollgate_history (id, platform_id, owner, kind, asset, amount, timestamp, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				e.ID.String(), e.PlatformID.String(), e.Owner, string(e.Kind),
				e.Asset, e.Amount, e.Timestamp, meta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) QueryHistory(ctx context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error) {
	q := `
SELECT id, platform_id, owner, kind, asset, amount, timestamp, metadata
FROM tollgate_history WHERE platform_id = $1 AND owner = $2`
	args := []any{platformID.String(), owner}

	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		q += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if !opts.Start.IsZero() {
		args = append(args, opts.Start)
		q += fmt.Sprintf(` AND timestamp > $%d`, len(args))
	}
	if !opts.End.IsZero() {
		args = append(args, opts.End)
		q += fmt.Sprintf(` AND timestamp < $%d`, len(args))
	}
	q += ` ORDER BY timestamp ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
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
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tollgate_history WHERE timestamp < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ==================== Helpers ====================

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProtocol(row rowScanner) (*protocol.Protocol, error) {
	var (
		idStr              string
		treasury           []byte
		createdAt, updated time.Time
	)
	if err := row.Scan(&idStr, &treasury, &createdAt, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	proto := &protocol.Protocol{ID: protoID, Treasury: pool}
	proto.CreatedAt = createdAt
	proto.UpdatedAt = updated
	return proto, nil
}

func scanPlatform(row rowScanner) (*platform.Platform, error) {
	var r platformRow
	err := row.Scan(&r.ID, &r.Name, &r.PriceAmount, &r.PriceAsset, &r.PeriodNS,
		&r.Treasury, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tollgate.ErrPlatformNotFound
		}
		return nil, err
	}
	return fromPlatformRow(&r)
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var r accountRow
	err := row.Scan(&r.ID, &r.PlatformID, &r.Owner, &r.StartedAt, &r.LastRenewedAt,
		&r.ValidUntil, &r.RenewalCount, &r.Escrow, &r.Metadata, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tollgate.ErrNoSubscription
		}
		return nil, err
	}
	return fromAccountRow(&r)
}

func protocolForUpdate(ctx context.Context, tx pgx.Tx) (*protocol.Protocol, error) {
	row := tx.QueryRow(ctx, `
SELECT id, treasury, created_at, updated_at FROM tollgate_protocol LIMIT 1 FOR UPDATE`)
	return scanProtocol(row)
}

func platformForUpdate(ctx context.Context, tx pgx.Tx, platformID id.PlatformID) (*platform.Platform, error) {
	row := tx.QueryRow(ctx, `
SELECT id, name, price_amount, price_asset, period_ns, treasury, metadata, created_at, updated_at
FROM tollgate_platforms WHERE id = $1 FOR UPDATE`, platformID.String())
	return scanPlatform(row)
}

func updateProtocolTreasury(ctx context.Context, tx pgx.Tx, proto *protocol.Protocol) error {
	treasury, err := marshalPool(proto.Treasury)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE tollgate_protocol SET treasury = $1, updated_at = now() WHERE id = $2`,
		treasury, proto.ID.String())
	return err
}

func updatePlatformTreasury(ctx context.Context, tx pgx.Tx, p *platform.Platform) error {
	treasury, err := marshalPool(p.Treasury)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE tollgate_platforms SET treasury = $1, updated_at = now() WHERE id = $2`,
		treasury, p.ID.String())
	return err
}

func insertAccount(ctx context.Context, tx pgx.Tx, acct *account.Account) error {
	escrow, err := marshalPool(acct.Escrow)
	if err != nil {
		return err
	}
	meta, err := marshalMeta(acct.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO tollgate_accounts (`+accountColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		acct.ID.String(), acct.PlatformID.String(), acct.Owner,
		acct.StartedAt, nullTime(acct.LastRenewedAt), acct.ValidUntil,
		acct.RenewalCount, escrow, meta, acct.CreatedAt, acct.UpdatedAt)
	return err
}

func updateAccount(ctx context.Context, tx pgx.Tx, acct *account.Account) error {
	escrow, err := marshalPool(acct.Escrow)
	if err != nil {
		return err
	}
	meta, err := marshalMeta(acct.Metadata)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE tollgate_accounts
SET last_renewed_at = $1, valid_until = $2, renewal_count = $3, escrow = $4, metadata = $5, updated_at = $6
WHERE id = $7`,
		nullTime(acct.LastRenewedAt), acct.ValidUntil, acct.RenewalCount,
		escrow, meta, acct.UpdatedAt, acct.ID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tollgate.ErrNoSubscription
	}
	return nil
}
