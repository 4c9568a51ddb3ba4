// Package audithook bridges Tollgate lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on any
// particular audit system. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tollgate/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnProtocolInitialized = (*Extension)(nil)
	_ plugin.OnPlatformCreated     = (*Extension)(nil)
	_ plugin.OnSubscribed          = (*Extension)(nil)
	_ plugin.OnRenewed             = (*Extension)(nil)
	_ plugin.OnUnsubscribed        = (*Extension)(nil)
	_ plugin.OnPaymentProcessed    = (*Extension)(nil)
	_ plugin.OnPaymentRejected     = (*Extension)(nil)
	_ plugin.OnWithdrawal          = (*Extension)(nil)
	_ plugin.OnEscrowCredited      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import any
// audit system directly; callers inject the concrete backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tollgate lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Protocol and platform lifecycle hooks
// ──────────────────────────────────────────────────

// OnProtocolInitialized implements plugin.OnProtocolInitialized.
func (e *Extension) OnProtocolInitialized(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionProtocolInitialized, SeverityInfo, OutcomeSuccess,
		ResourceProtocol, "", CategoryBilling, nil,
		"event", "protocol_initialized",
	)
}

// OnPlatformCreated implements plugin.OnPlatformCreated.
func (e *Extension) OnPlatformCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPlatformCreated, SeverityInfo, OutcomeSuccess,
		ResourcePlatform, "", CategoryBilling, nil,
		"event", "platform_created",
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (e *Extension) OnSubscribed(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_created",
	)
}

// OnRenewed implements plugin.OnRenewed.
func (e *Extension) OnRenewed(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionRenewed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_renewed",
	)
}

// OnUnsubscribed implements plugin.OnUnsubscribed.
func (e *Extension) OnUnsubscribed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionRemoved, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_removed",
	)
}

// ──────────────────────────────────────────────────
// Payment and treasury hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed implements plugin.OnPaymentProcessed.
func (e *Extension) OnPaymentProcessed(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentProcessed, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryPayment, nil,
		"event", "payment_processed",
	)
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (e *Extension) OnPaymentRejected(ctx context.Context, platformID, owner string, reason error) error {
	return e.record(ctx, ActionPaymentRejected, SeverityWarning, OutcomeFailure,
		ResourcePayment, "", CategoryPayment, reason,
		"platform_id", platformID,
		"owner", owner,
	)
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (e *Extension) OnWithdrawal(ctx context.Context, scope, resourceID, assetKey string, amount int64) error {
	return e.record(ctx, ActionTreasuryWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceTreasury, resourceID, CategoryTreasury, nil,
		"scope", scope,
		"asset", assetKey,
		"amount", amount,
	)
}

// OnEscrowCredited implements plugin.OnEscrowCredited.
func (e *Extension) OnEscrowCredited(ctx context.Context, platformID, owner, assetKey string, amount int64) error {
	return e.record(ctx, ActionEscrowCredited, SeverityInfo, OutcomeSuccess,
		ResourceEscrow, "", CategoryTreasury, nil,
		"platform_id", platformID,
		"owner", owner,
		"asset", assetKey,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
