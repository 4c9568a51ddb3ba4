// Package plugin provides an extensible plugin system for Tollgate.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Protocol and platform lifecycle hooks
// ──────────────────────────────────────────────────

// OnProtocolInitialized is called once, when the protocol singleton is created.
type OnProtocolInitialized interface {
	Plugin
	OnProtocolInitialized(ctx context.Context, proto interface{}) error
}

// OnPlatformCreated is called when a new platform is created.
type OnPlatformCreated interface {
	Plugin
	OnPlatformCreated(ctx context.Context, plat interface{}) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed is called when a new subscription account is created.
type OnSubscribed interface {
	Plugin
	OnSubscribed(ctx context.Context, acct interface{}, receipt interface{}) error
}

// OnRenewed is called when an existing subscription is renewed.
type OnRenewed interface {
	Plugin
	OnRenewed(ctx context.Context, acct interface{}, receipt interface{}) error
}

// OnUnsubscribed is called when a subscription account is removed.
type OnUnsubscribed interface {
	Plugin
	OnUnsubscribed(ctx context.Context, acct interface{}) error
}

// ──────────────────────────────────────────────────
// Payment and treasury hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed is called after a payment has been split and deposited.
type OnPaymentProcessed interface {
	Plugin
	OnPaymentProcessed(ctx context.Context, receipt interface{}) error
}

// OnPaymentRejected is called when a payment fails a precondition check.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, platformID, owner string, reason error) error
}

// OnWithdrawal is called after a treasury withdrawal. Scope is "protocol"
// or "platform"; resourceID identifies the treasury owner.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, scope, resourceID, assetKey string, amount int64) error
}

// OnEscrowCredited is called when funds are parked on an account's escrow.
type OnEscrowCredited interface {
	Plugin
	OnEscrowCredited(ctx context.Context, platformID, owner, assetKey string, amount int64) error
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnHistoryFlushed is called after a batch of history entries is persisted.
type OnHistoryFlushed interface {
	Plugin
	OnHistoryFlushed(ctx context.Context, count int, elapsed time.Duration) error
}
