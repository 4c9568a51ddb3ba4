// Package observability provides a metrics extension for Tollgate that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tollgate/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnProtocolInitialized = (*MetricsExtension)(nil)
	_ plugin.OnPlatformCreated     = (*MetricsExtension)(nil)
	_ plugin.OnSubscribed          = (*MetricsExtension)(nil)
	_ plugin.OnRenewed             = (*MetricsExtension)(nil)
	_ plugin.OnUnsubscribed        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentProcessed    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected     = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal          = (*MetricsExtension)(nil)
	_ plugin.OnEscrowCredited      = (*MetricsExtension)(nil)
	_ plugin.OnHistoryFlushed      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Engine plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Protocol and platform metrics
	ProtocolInitialized Counter
	PlatformCreated     Counter

	// Subscription metrics
	Subscribed   Counter
	Renewed      Counter
	Unsubscribed Counter

	// Payment metrics
	PaymentsProcessed Counter
	PaymentsRejected  Counter
	PaymentAmount     Histogram

	// Treasury metrics
	ProtocolWithdrawals Counter
	PlatformWithdrawals Counter
	EscrowCredits       Counter

	// History metrics
	HistoryBatchSize    Histogram
	HistoryFlushLatency Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Protocol and platform metrics
		ProtocolInitialized: factory.Counter("tollgate.protocol.initialized"),
		PlatformCreated:     factory.Counter("tollgate.platform.created"),

		// Subscription metrics
		Subscribed:   factory.Counter("tollgate.subscription.created"),
		Renewed:      factory.Counter("tollgate.subscription.renewed"),
		Unsubscribed: factory.Counter("tollgate.subscription.removed"),

		// Payment metrics
		PaymentsProcessed: factory.Counter("tollgate.payment.processed"),
		PaymentsRejected:  factory.Counter("tollgate.payment.rejected"),
		PaymentAmount:     factory.Histogram("tollgate.payment.amount"),

		// Treasury metrics
		ProtocolWithdrawals: factory.Counter("tollgate.treasury.protocol.withdrawals"),
		PlatformWithdrawals: factory.Counter("tollgate.treasury.platform.withdrawals"),
		EscrowCredits:       factory.Counter("tollgate.escrow.credits"),

		// History metrics
		HistoryBatchSize:    factory.Histogram("tollgate.history.batch.size"),
		HistoryFlushLatency: factory.Histogram("tollgate.history.flush.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("tollgate.store.errors"),
		PluginErrors: factory.Counter("tollgate.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Protocol and platform lifecycle hooks
// ──────────────────────────────────────────────────

// OnProtocolInitialized implements plugin.OnProtocolInitialized.
func (m *MetricsExtension) OnProtocolInitialized(_ context.Context, _ interface{}) error {
	m.ProtocolInitialized.Inc()
	return nil
}

// OnPlatformCreated implements plugin.OnPlatformCreated.
func (m *MetricsExtension) OnPlatformCreated(_ context.Context, _ interface{}) error {
	m.PlatformCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscribed implements plugin.OnSubscribed.
func (m *MetricsExtension) OnSubscribed(_ context.Context, _, _ interface{}) error {
	m.Subscribed.Inc()
	return nil
}

// OnRenewed implements plugin.OnRenewed.
func (m *MetricsExtension) OnRenewed(_ context.Context, _, _ interface{}) error {
	m.Renewed.Inc()
	return nil
}

// OnUnsubscribed implements plugin.OnUnsubscribed.
func (m *MetricsExtension) OnUnsubscribed(_ context.Context, _ interface{}) error {
	m.Unsubscribed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment and treasury hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed implements plugin.OnPaymentProcessed.
func (m *MetricsExtension) OnPaymentProcessed(_ context.Context, _ interface{}) error {
	m.PaymentsProcessed.Inc()
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _, _ string, _ error) error {
	m.PaymentsRejected.Inc()
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, scope, _, _ string, _ int64) error {
	if scope == "protocol" {
		m.ProtocolWithdrawals.Inc()
	} else {
		m.PlatformWithdrawals.Inc()
	}
	return nil
}

// OnEscrowCredited implements plugin.OnEscrowCredited.
func (m *MetricsExtension) OnEscrowCredited(_ context.Context, _, _, _ string, _ int64) error {
	m.EscrowCredits.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnHistoryFlushed implements plugin.OnHistoryFlushed.
func (m *MetricsExtension) OnHistoryFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.HistoryBatchSize.Observe(float64(count))
	m.HistoryFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
