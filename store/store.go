package store

import (
	"context"
	"time"

	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/payment"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/protocol"
)

// Store is the unified storage interface for all Tollgate entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// The compound methods CommitSubscription and CommitRenewal apply a payment
// split and an account transition as a single unit: each backend runs them
// inside its native transaction, so a failure leaves both the treasuries and
// the account untouched.
type Store interface {
	// Protocol methods
	InitProtocol(ctx context.Context, proto *protocol.Protocol) error
	GetProtocol(ctx context.Context) (*protocol.Protocol, error)
	WithdrawProtocol(ctx context.Context, assetKey string) (int64, error)

	// Platform methods
	CreatePlatform(ctx context.Context, p *platform.Platform) error
	GetPlatform(ctx context.Context, platformID id.PlatformID) (*platform.Platform, error)
	ListPlatforms(ctx context.Context, opts platform.ListOpts) ([]*platform.Platform, error)
	WithdrawPlatform(ctx context.Context, platformID id.PlatformID, assetKey string) (int64, error)

	// Account methods
	GetAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error)
	ListAccounts(ctx context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error)
	CommitSubscription(ctx context.Context, rcpt *payment.Receipt, acct *account.Account) error
	CommitRenewal(ctx context.Context, rcpt *payment.Receipt, now time.Time, period time.Duration) (*account.Account, error)
	RemoveAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error)
	CreditEscrow(ctx context.Context, platformID id.PlatformID, owner, assetKey string, amount int64) error

	// History methods
	AppendHistory(ctx context.Context, entries []*history.Entry) error
	QueryHistory(ctx context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error)
	PurgeHistory(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
