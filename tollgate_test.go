package tollgate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/store/memory"
	"github.com/xraph/tollgate/types"
)

const month = 30 * 24 * time.Hour

var epoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, opts ...tollgate.Option) *tollgate.Engine {
	t.Helper()

	e := tollgate.New(memory.New(), opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := e.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return e
}

func TestInitProtocol(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	proto, adminCap, err := e.InitProtocol(ctx)
	if err != nil {
		t.Fatalf("InitProtocol() error = %v", err)
	}
	if proto.ID.IsNil() {
		t.Error("protocol ID is nil")
	}
	if adminCap == nil {
		t.Fatal("admin cap is nil")
	}
	if adminCap.ProtocolID().String() != proto.ID.String() {
		t.Error("admin cap bound to wrong protocol")
	}
	if !proto.Treasury.IsEmpty() {
		t.Error("new protocol treasury not empty")
	}

	// Second initialization must fail.
	if _, _, err := e.InitProtocol(ctx); !errors.Is(err, tollgate.ErrProtocolInitialized) {
		t.Errorf("second InitProtocol() error = %v, want ErrProtocolInitialized", err)
	}
}

func TestSubscribeSplitsPayment(t *testing.T) {
	e := newEngine(t, tollgate.WithFeeRate(1))
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	acct, rcpt, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if rcpt.ProtocolShare.Amount != 10 {
		t.Errorf("protocol share = %d, want 10", rcpt.ProtocolShare.Amount)
	}
	if rcpt.PlatformShare.Amount != 990 {
		t.Errorf("platform share = %d, want 990", rcpt.PlatformShare.Amount)
	}
	if !rcpt.Conserves() {
		t.Error("receipt does not conserve payment")
	}

	proto, err := e.Protocol(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := proto.Treasury.Balance("usd"); got != 10 {
		t.Errorf("protocol treasury = %d, want 10", got)
	}
	got, err := e.Platform(ctx, plat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bal := got.Treasury.Balance("usd"); bal != 990 {
		t.Errorf("platform treasury = %d, want 990", bal)
	}

	if acct.RenewalCount != 1 {
		t.Errorf("renewal count = %d, want 1", acct.RenewalCount)
	}
	valid, err := e.IsValid(ctx, plat.ID, "user-1", epoch)
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Error("subscription not active immediately after subscribe")
	}
}

func TestSubscribeRejectsUnderpayment(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(500, "usd"), epoch)
	if !errors.Is(err, tollgate.ErrInsufficientFunds) {
		t.Fatalf("Subscribe() error = %v, want ErrInsufficientFunds", err)
	}

	// Nothing moved.
	proto, err := e.Protocol(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !proto.Treasury.IsEmpty() {
		t.Error("protocol treasury mutated by rejected payment")
	}
	if valid, _ := e.IsValid(ctx, plat.ID, "user-1", epoch); valid {
		t.Error("account created by rejected payment")
	}
}

func TestSubscribeRejectsWrongAsset(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(5000, "eur"), epoch)
	if !errors.Is(err, tollgate.ErrAssetNotAccepted) {
		t.Errorf("Subscribe() error = %v, want ErrAssetNotAccepted", err)
	}

	// Asset keys are case-insensitive; an uppercase literal is the same asset.
	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", types.Funds{Amount: 1000, Asset: "USD"}, epoch); err != nil {
		t.Errorf("Subscribe() with uppercase asset error = %v", err)
	}
}

func TestSubscribeTwiceFails(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Fatal(err)
	}
	_, _, err = e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch)
	if !errors.Is(err, tollgate.ErrSubscriptionExists) {
		t.Errorf("second Subscribe() error = %v, want ErrSubscriptionExists", err)
	}
}

func TestConcurrentSubscribeSingleWinner(t *testing.T) {
	e := newEngine(t, tollgate.WithFeeRate(5))
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	// Race many Subscribe calls for the same (platform, owner); the store
	// must serialize them so exactly one wins.
	const workers = 16
	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, tollgate.ErrSubscriptionExists):
			losses++
		default:
			t.Errorf("Subscribe() error = %v, want nil or ErrSubscriptionExists", err)
		}
	}
	if wins != 1 {
		t.Errorf("winning Subscribe() calls = %d, want 1", wins)
	}
	if losses != workers-1 {
		t.Errorf("losing Subscribe() calls = %d, want %d", losses, workers-1)
	}

	// Exactly one payment was deposited.
	proto, err := e.Protocol(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := proto.Treasury.Balance("usd"); got != 50 {
		t.Errorf("protocol treasury = %d, want 50", got)
	}
	got, err := e.Platform(ctx, plat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bal := got.Treasury.Balance("usd"); bal != 950 {
		t.Errorf("platform treasury = %d, want 950", bal)
	}
}

func TestRenewKeepsPaidTime(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	acct, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch)
	if err != nil {
		t.Fatal(err)
	}
	firstValidUntil := acct.ValidUntil

	// Renewing while still active extends from the current expiry, not from
	// the renewal time.
	renewedAt := epoch.Add(month / 2)
	renewed, _, err := e.Renew(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), renewedAt)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if !renewed.ValidUntil.Equal(firstValidUntil.Add(month)) {
		t.Errorf("ValidUntil = %v, want %v", renewed.ValidUntil, firstValidUntil.Add(month))
	}
	if renewed.RenewalCount != 2 {
		t.Errorf("renewal count = %d, want 2", renewed.RenewalCount)
	}
	if !renewed.LastRenewedAt.Equal(renewedAt) {
		t.Errorf("LastRenewedAt = %v, want %v", renewed.LastRenewedAt, renewedAt)
	}
}

func TestRenewAfterExpiryAnchorsAtRenewalTime(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Fatal(err)
	}

	// The subscription lapsed ten days ago; the gap is not billed
	// retroactively and the new period starts at the renewal time.
	renewedAt := epoch.Add(month + 10*24*time.Hour)
	renewed, _, err := e.Renew(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), renewedAt)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if !renewed.ValidUntil.Equal(renewedAt.Add(month)) {
		t.Errorf("ValidUntil = %v, want %v", renewed.ValidUntil, renewedAt.Add(month))
	}

	if valid, _ := e.IsValid(ctx, plat.ID, "user-1", renewedAt); !valid {
		t.Error("subscription not active immediately after late renewal")
	}
}

func TestRenewWithoutSubscription(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = e.Renew(ctx, plat.ID, "nobody", tollgate.Of(1000, "usd"), epoch)
	if !errors.Is(err, tollgate.ErrNoSubscription) {
		t.Errorf("Renew() error = %v, want ErrNoSubscription", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Fatal(err)
	}
	if err := e.CreditEscrow(ctx, plat.ID, "user-1", tollgate.Of(250, "usd")); err != nil {
		t.Fatal(err)
	}

	refund, err := e.Unsubscribe(ctx, plat.ID, "user-1")
	if err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if len(refund) != 1 || !refund[0].Equal(tollgate.Of(250, "usd")) {
		t.Errorf("refunded escrow = %v, want [250 usd]", refund)
	}

	if valid, _ := e.IsValid(ctx, plat.ID, "user-1", epoch); valid {
		t.Error("subscription still valid after unsubscribe")
	}
	if _, err := e.Unsubscribe(ctx, plat.ID, "user-1"); !errors.Is(err, tollgate.ErrNoSubscription) {
		t.Errorf("second Unsubscribe() error = %v, want ErrNoSubscription", err)
	}
	// Re-subscribing after removal is allowed.
	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Errorf("Subscribe() after Unsubscribe() error = %v", err)
	}
}

func TestIsValidAbsentAccount(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	valid, err := e.IsValid(ctx, plat.ID, "nobody", epoch)
	if err != nil {
		t.Fatalf("IsValid() error = %v", err)
	}
	if valid {
		t.Error("absent account reported valid")
	}
}

func TestWithdrawalsRequireMatchingCapability(t *testing.T) {
	e := newEngine(t, tollgate.WithFeeRate(5))
	ctx := context.Background()

	_, adminCap, err := e.InitProtocol(ctx)
	if err != nil {
		t.Fatal(err)
	}
	platA, capA, err := e.CreatePlatform(ctx, "alpha", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}
	platB, capB, err := e.CreatePlatform(ctx, "beta", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Subscribe(ctx, platA.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Fatal(err)
	}

	// Capability for platform B cannot drain platform A.
	if _, err := e.WithdrawPlatform(ctx, capB, platA.ID, "usd"); !errors.Is(err, tollgate.ErrInvalidCapability) {
		t.Errorf("cross-platform withdrawal error = %v, want ErrInvalidCapability", err)
	}
	// Nil capability authorizes nothing.
	if _, err := e.WithdrawPlatform(ctx, nil, platA.ID, "usd"); !errors.Is(err, tollgate.ErrInvalidCapability) {
		t.Errorf("nil capability withdrawal error = %v, want ErrInvalidCapability", err)
	}

	funds, err := e.WithdrawPlatform(ctx, capA, platA.ID, "usd")
	if err != nil {
		t.Fatalf("WithdrawPlatform() error = %v", err)
	}
	if funds.Amount != 950 {
		t.Errorf("withdrawn = %d, want 950", funds.Amount)
	}
	// Withdrawal removes the entire entry; a second withdrawal finds nothing.
	if _, err := e.WithdrawPlatform(ctx, capA, platA.ID, "usd"); !errors.Is(err, tollgate.ErrNotFound) {
		t.Errorf("second WithdrawPlatform() error = %v, want ErrNotFound", err)
	}

	protoFunds, err := e.WithdrawProtocol(ctx, adminCap, "usd")
	if err != nil {
		t.Fatalf("WithdrawProtocol() error = %v", err)
	}
	if protoFunds.Amount != 50 {
		t.Errorf("protocol withdrawal = %d, want 50", protoFunds.Amount)
	}

	// Platform B never saw a payment.
	if _, err := e.WithdrawPlatform(ctx, capB, platB.ID, "usd"); !errors.Is(err, tollgate.ErrNotFound) {
		t.Errorf("empty treasury withdrawal error = %v, want ErrNotFound", err)
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	e := newEngine(t, tollgate.WithFeeRate(7))
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(333, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}

	var paid int64
	owners := []string{"a", "b", "c", "d", "e"}
	for _, owner := range owners {
		if _, _, err := e.Subscribe(ctx, plat.ID, owner, tollgate.Of(333, "usd"), epoch); err != nil {
			t.Fatal(err)
		}
		paid += 333
	}
	for _, owner := range owners[:2] {
		if _, _, err := e.Renew(ctx, plat.ID, owner, tollgate.Of(400, "usd"), epoch.Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		paid += 400
	}

	proto, err := e.Protocol(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.Platform(ctx, plat.ID)
	if err != nil {
		t.Fatal(err)
	}
	total := proto.Treasury.Balance("usd") + got.Treasury.Balance("usd")
	if total != paid {
		t.Errorf("treasuries hold %d, want %d (sum of payments)", total, paid)
	}
}

func TestPlatformsListFilterByAsset(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.CreatePlatform(ctx, "usd-one", tollgate.Of(100, "usd"), month); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.CreatePlatform(ctx, "usd-two", tollgate.Of(200, "usd"), month); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.CreatePlatform(ctx, "eur-one", tollgate.Of(300, "eur"), month); err != nil {
		t.Fatal(err)
	}

	usd, err := e.Platforms(ctx, platform.ListOpts{Asset: "usd"})
	if err != nil {
		t.Fatal(err)
	}
	if len(usd) != 2 {
		t.Errorf("usd platforms = %d, want 2", len(usd))
	}
	all, err := e.Platforms(ctx, platform.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all platforms = %d, want 3", len(all))
	}
}

func TestCreatePlatformValidation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		pname string
		price types.Funds
	}{
		{"empty name", "", tollgate.Of(100, "usd")},
		{"empty asset", "news", types.Funds{Amount: 100}},
		{"zero price", "news", tollgate.Of(0, "usd")},
		{"negative price", "news", types.Funds{Amount: -5, Asset: "usd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.CreatePlatform(ctx, tt.pname, tt.price, month)
			var verr tollgate.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("CreatePlatform() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestHistoryRecordsLifecycle(t *testing.T) {
	e := newEngine(t, tollgate.WithHistoryConfig(1, 10*time.Millisecond))
	ctx := context.Background()

	if _, _, err := e.InitProtocol(ctx); err != nil {
		t.Fatal(err)
	}
	plat, _, err := e.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), month)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Renew(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), epoch.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Unsubscribe(ctx, plat.ID, "user-1"); err != nil {
		t.Fatal(err)
	}

	// Entries are flushed asynchronously.
	want := []history.Kind{history.KindSubscribe, history.KindRenew, history.KindUnsubscribe}
	deadline := time.Now().Add(2 * time.Second)
	var entries []*history.Entry
	for time.Now().Before(deadline) {
		entries, err = e.History(ctx, plat.ID, "user-1", history.QueryOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) >= len(want) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if len(entries) != len(want) {
		t.Fatalf("history entries = %d, want %d", len(entries), len(want))
	}
	for i, kind := range want {
		if entries[i].Kind != kind {
			t.Errorf("entry[%d].Kind = %q, want %q", i, entries[i].Kind, kind)
		}
	}

	// Kind filter narrows the trail.
	renews, err := e.History(ctx, plat.ID, "user-1", history.QueryOpts{Kind: history.KindRenew})
	if err != nil {
		t.Fatal(err)
	}
	if len(renews) != 1 || renews[0].Amount != 1000 {
		t.Errorf("renew entries = %+v, want one entry of 1000", renews)
	}
}
