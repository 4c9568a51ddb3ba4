package tollgate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/authority"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/payment"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/plugin"
	"github.com/xraph/tollgate/protocol"
	"github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/types"
)

// Engine is the main subscription billing engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background workers
	historyBuffer chan *history.Entry
	stopChan      chan struct{}
	wg            sync.WaitGroup

	// Configuration
	feeRate              int64
	historyBatchSize     int
	historyFlushInterval time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		historyBuffer:        make(chan *history.Entry, 10000),
		stopChan:             make(chan struct{}),
		feeRate:              payment.DefaultFeeRate,
		historyBatchSize:     100,
		historyFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithFeeRate sets the protocol's cut of every payment, in whole percent.
// Panics on a rate outside [0, 100].
func WithFeeRate(rate int64) Option {
	return func(e *Engine) {
		payment.Split(0, rate) // validates the rate
		e.feeRate = rate
	}
}

// WithHistoryConfig configures history batching parameters.
func WithHistoryConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.historyBatchSize = batchSize
		e.historyFlushInterval = flushInterval
	}
}

// FeeRate returns the configured fee rate in whole percent.
func (e *Engine) FeeRate() int64 { return e.feeRate }

// Start begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start history flush worker
	e.wg.Add(1)
	go e.historyFlushWorker(ctx)

	e.logger.Info("tollgate started",
		"fee_rate", e.feeRate,
		"batch_size", e.historyBatchSize,
		"flush_interval", e.historyFlushInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Protocol Management
// ──────────────────────────────────────────────────

// InitProtocol creates the protocol singleton and mints the one admin
// capability bound to it. Fails with ErrProtocolInitialized if the protocol
// already exists; the capability is returned only to this first caller.
func (e *Engine) InitProtocol(ctx context.Context) (*protocol.Protocol, *authority.AdminCap, error) {
	proto := protocol.New()
	if err := e.store.InitProtocol(ctx, proto); err != nil {
		return nil, nil, err
	}

	cap := authority.MintAdminCap(proto.ID)
	e.plugins.EmitProtocolInitialized(ctx, proto)

	e.logger.Info("protocol initialized", "protocol_id", proto.ID.String())
	return proto, cap, nil
}

// Protocol returns the protocol singleton.
func (e *Engine) Protocol(ctx context.Context) (*protocol.Protocol, error) {
	return e.store.GetProtocol(ctx)
}

// ──────────────────────────────────────────────────
// Platform Management
// ──────────────────────────────────────────────────

// CreatePlatform registers a new platform and mints the capability that
// authorizes withdrawals from its treasury.
func (e *Engine) CreatePlatform(ctx context.Context, name string, price types.Funds, period time.Duration) (*platform.Platform, *authority.PlatformCap, error) {
	if name == "" {
		return nil, nil, ValidationError{Field: "name", Message: "must not be empty"}
	}
	if price.Asset == "" {
		return nil, nil, ValidationError{Field: "price.asset", Message: "must not be empty"}
	}
	if price.Amount <= 0 {
		return nil, nil, ValidationError{Field: "price.amount", Message: "must be positive"}
	}

	p := platform.New(name, price, period)
	if err := e.store.CreatePlatform(ctx, p); err != nil {
		return nil, nil, err
	}

	cap := authority.MintPlatformCap(p.ID)
	e.plugins.EmitPlatformCreated(ctx, p)

	e.logger.Info("platform created",
		"platform_id", p.ID.String(),
		"name", p.Name,
		"price", p.Price.String(),
	)
	return p, cap, nil
}

// Platform retrieves a platform by ID.
func (e *Engine) Platform(ctx context.Context, platformID id.PlatformID) (*platform.Platform, error) {
	return e.store.GetPlatform(ctx, platformID)
}

// Platforms lists registered platforms.
func (e *Engine) Platforms(ctx context.Context, opts platform.ListOpts) ([]*platform.Platform, error) {
	return e.store.ListPlatforms(ctx, opts)
}

// ──────────────────────────────────────────────────
// Subscription Lifecycle
// ──────────────────────────────────────────────────

// Subscribe creates a subscription for owner on the platform. The payment is
// split between the protocol and platform treasuries and the account activates
// immediately; the fee split and the account creation commit as one unit.
// The caller supplies the clock reading; the engine never reads the clock for
// billing decisions.
func (e *Engine) Subscribe(ctx context.Context, platformID id.PlatformID, owner string, pay types.Funds, now time.Time) (*account.Account, *payment.Receipt, error) {
	p, err := e.checkPayment(ctx, platformID, owner, pay)
	if err != nil {
		return nil, nil, err
	}

	rcpt := payment.NewReceipt(platformID, owner, pay, e.feeRate, now)
	acct := account.New(platformID, owner, now, p.Period)

	if err := e.store.CommitSubscription(ctx, rcpt, acct); err != nil {
		return nil, nil, err
	}

	e.plugins.EmitSubscribed(ctx, acct, rcpt)
	e.plugins.EmitPaymentProcessed(ctx, rcpt)
	e.record(&history.Entry{
		ID:         id.NewHistoryEntryID(),
		PlatformID: platformID,
		Owner:      owner,
		Kind:       history.KindSubscribe,
		Asset:      pay.Asset,
		Amount:     pay.Amount,
		Timestamp:  now,
	})

	e.logger.Info("subscription created",
		"platform_id", platformID.String(),
		"owner", owner,
		"valid_until", acct.ValidUntil,
	)
	return acct, rcpt, nil
}

// Renew extends an existing subscription by one period. Renewing before
// expiry anchors the extension at the current ValidUntil, so no paid time is
// lost; renewing after expiry anchors it at the renewal time. The caller
// supplies the clock reading, as with Subscribe.
func (e *Engine) Renew(ctx context.Context, platformID id.PlatformID, owner string, pay types.Funds, now time.Time) (*account.Account, *payment.Receipt, error) {
	p, err := e.checkPayment(ctx, platformID, owner, pay)
	if err != nil {
		return nil, nil, err
	}

	rcpt := payment.NewReceipt(platformID, owner, pay, e.feeRate, now)

	acct, err := e.store.CommitRenewal(ctx, rcpt, now, p.Period)
	if err != nil {
		return nil, nil, err
	}

	e.plugins.EmitRenewed(ctx, acct, rcpt)
	e.plugins.EmitPaymentProcessed(ctx, rcpt)
	e.record(&history.Entry{
		ID:         id.NewHistoryEntryID(),
		PlatformID: platformID,
		Owner:      owner,
		Kind:       history.KindRenew,
		Asset:      pay.Asset,
		Amount:     pay.Amount,
		Timestamp:  now,
	})

	e.logger.Info("subscription renewed",
		"platform_id", platformID.String(),
		"owner", owner,
		"valid_until", acct.ValidUntil,
		"renewal_count", acct.RenewalCount,
	)
	return acct, rcpt, nil
}

// Unsubscribe removes owner's subscription immediately. Remaining paid time
// is not prorated, but the account's escrow is drained and returned to the
// caller for settlement with the owner.
func (e *Engine) Unsubscribe(ctx context.Context, platformID id.PlatformID, owner string) ([]types.Funds, error) {
	acct, err := e.store.RemoveAccount(ctx, platformID, owner)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitUnsubscribed(ctx, acct)

	refund := acct.Escrow.Drain()
	now := time.Now()
	e.record(&history.Entry{
		ID:         id.NewHistoryEntryID(),
		PlatformID: platformID,
		Owner:      owner,
		Kind:       history.KindUnsubscribe,
		Timestamp:  now,
	})
	for _, f := range refund {
		e.record(&history.Entry{
			ID:         id.NewHistoryEntryID(),
			PlatformID: platformID,
			Owner:      owner,
			Kind:       history.KindEscrowRefund,
			Asset:      f.Asset,
			Amount:     f.Amount,
			Timestamp:  now,
		})
	}

	e.logger.Info("subscription removed",
		"platform_id", platformID.String(),
		"owner", owner,
	)
	return refund, nil
}

// IsValid reports whether owner holds an active subscription on the platform
// at the given clock reading. An absent account is simply invalid, not an
// error.
func (e *Engine) IsValid(ctx context.Context, platformID id.PlatformID, owner string, at time.Time) (bool, error) {
	acct, err := e.store.GetAccount(ctx, platformID, owner)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return acct.ValidAt(at), nil
}

// Account retrieves owner's subscription account on the platform.
func (e *Engine) Account(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	return e.store.GetAccount(ctx, platformID, owner)
}

// Accounts lists subscription accounts on the platform.
func (e *Engine) Accounts(ctx context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error) {
	return e.store.ListAccounts(ctx, platformID, opts)
}

// ──────────────────────────────────────────────────
// Treasury Withdrawals
// ──────────────────────────────────────────────────

// WithdrawProtocol removes the full balance held under assetKey in the
// protocol treasury. The caller must present the admin capability minted at
// protocol initialization.
func (e *Engine) WithdrawProtocol(ctx context.Context, cap *authority.AdminCap, assetKey string) (types.Funds, error) {
	proto, err := e.store.GetProtocol(ctx)
	if err != nil {
		return types.Funds{}, err
	}
	if !authority.VerifyAdmin(cap, proto.ID) {
		return types.Funds{}, ErrInvalidCapability
	}

	amount, err := e.store.WithdrawProtocol(ctx, assetKey)
	if err != nil {
		return types.Funds{}, err
	}

	e.plugins.EmitWithdrawal(ctx, "protocol", proto.ID.String(), assetKey, amount)
	e.logger.Info("protocol withdrawal",
		"asset", assetKey,
		"amount", amount,
	)
	return types.Of(amount, assetKey), nil
}

// WithdrawPlatform removes the full balance held under assetKey in the
// platform's treasury. The capability must have been minted for this exact
// platform.
func (e *Engine) WithdrawPlatform(ctx context.Context, cap *authority.PlatformCap, platformID id.PlatformID, assetKey string) (types.Funds, error) {
	if !authority.Verify(cap, platformID) {
		return types.Funds{}, ErrInvalidCapability
	}

	amount, err := e.store.WithdrawPlatform(ctx, platformID, assetKey)
	if err != nil {
		return types.Funds{}, err
	}

	e.plugins.EmitWithdrawal(ctx, "platform", platformID.String(), assetKey, amount)
	e.record(&history.Entry{
		ID:         id.NewHistoryEntryID(),
		PlatformID: platformID,
		Kind:       history.KindWithdrawal,
		Asset:      assetKey,
		Amount:     amount,
		Timestamp:  time.Now(),
	})

	e.logger.Info("platform withdrawal",
		"platform_id", platformID.String(),
		"asset", assetKey,
		"amount", amount,
	)
	return types.Of(amount, assetKey), nil
}

// ──────────────────────────────────────────────────
// Escrow
// ──────────────────────────────────────────────────

// CreditEscrow parks funds on owner's account. Escrowed funds belong to the
// owner, not the platform, and travel with the account until it is removed.
func (e *Engine) CreditEscrow(ctx context.Context, platformID id.PlatformID, owner string, f types.Funds) error {
	if f.Asset == "" {
		return ValidationError{Field: "funds.asset", Message: "must not be empty"}
	}
	if f.Amount <= 0 {
		return ValidationError{Field: "funds.amount", Message: "must be positive"}
	}

	if err := e.store.CreditEscrow(ctx, platformID, owner, f.Asset, f.Amount); err != nil {
		return err
	}

	e.plugins.EmitEscrowCredited(ctx, platformID.String(), owner, f.Asset, f.Amount)
	e.record(&history.Entry{
		ID:         id.NewHistoryEntryID(),
		PlatformID: platformID,
		Owner:      owner,
		Kind:       history.KindEscrowCredit,
		Asset:      f.Asset,
		Amount:     f.Amount,
		Timestamp:  time.Now(),
	})
	return nil
}

// ──────────────────────────────────────────────────
// History
// ──────────────────────────────────────────────────

// History returns owner's transaction trail on the platform. Entries are
// buffered in-process, so very recent operations may not appear until the
// next flush.
func (e *Engine) History(ctx context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error) {
	return e.store.QueryHistory(ctx, platformID, owner, opts)
}

// PurgeHistory deletes history entries older than the cutoff and returns the
// number removed.
func (e *Engine) PurgeHistory(ctx context.Context, before time.Time) (int64, error) {
	return e.store.PurgeHistory(ctx, before)
}

// record buffers a history entry for the flush worker (non-blocking). A full
// buffer drops the entry; history is an audit convenience, never a reason to
// fail the operation that produced it.
func (e *Engine) record(entry *history.Entry) {
	select {
	case e.historyBuffer <- entry:
	default:
		e.logger.Warn("dropping history entry",
			"error", ErrHistoryBufferFull,
			"kind", entry.Kind,
		)
	}
}

// historyFlushWorker flushes buffered history entries to the store.
func (e *Engine) historyFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*history.Entry, 0, e.historyBatchSize)
	ticker := time.NewTicker(e.historyFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final flush
			if len(batch) > 0 {
				e.flushHistoryBatch(ctx, batch)
			}
			return

		case entry := <-e.historyBuffer:
			batch = append(batch, entry)
			if len(batch) >= e.historyBatchSize {
				e.flushHistoryBatch(ctx, batch)
				batch = make([]*history.Entry, 0, e.historyBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushHistoryBatch(ctx, batch)
				batch = make([]*history.Entry, 0, e.historyBatchSize)
			}
		}
	}
}

func (e *Engine) flushHistoryBatch(ctx context.Context, batch []*history.Entry) {
	start := time.Now()

	if err := e.store.AppendHistory(ctx, batch); err != nil {
		e.logger.Error("failed to flush history batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitHistoryFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed history batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// checkPayment validates a tendered payment against the platform's price and
// accepted asset. It runs before any mutation, so a rejected payment leaves
// every balance untouched.
func (e *Engine) checkPayment(ctx context.Context, platformID id.PlatformID, owner string, pay types.Funds) (*platform.Platform, error) {
	if owner == "" {
		return nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}

	p, err := e.store.GetPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if !p.Accepts(pay.Asset) {
		e.plugins.EmitPaymentRejected(ctx, platformID.String(), owner, ErrAssetNotAccepted)
		return nil, ErrAssetNotAccepted
	}
	if pay.Amount < p.Price.Amount {
		e.plugins.EmitPaymentRejected(ctx, platformID.String(), owner, ErrInsufficientFunds)
		return nil, ErrInsufficientFunds
	}
	return p, nil
}
