package tollgate_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/store/memory"
	"github.com/xraph/tollgate/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use SQLite or PostgreSQL in production)
		store := memory.New()

		// Initialize the engine
		engine := tollgate.New(store,
			tollgate.WithLogger(slog.Default()),
			tollgate.WithFeeRate(5),
			tollgate.WithHistoryConfig(100, 5*time.Second),
		)

		// Start the engine
		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// Initialize the protocol; the returned capability is the only way
		// to withdraw the protocol's accumulated fees.
		_, adminCap, err := engine.InitProtocol(ctx)
		if err != nil {
			t.Fatal(err)
		}

		// Create a platform charging 1000 usd-units per 30 days
		plat, platCap, err := engine.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), 30*24*time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		// Subscribe a user; the caller supplies the clock reading.
		acct, receipt, err := engine.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), time.Now())
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("subscribed until %s, protocol took %s\n", acct.ValidUntil, receipt.ProtocolShare.String())

		// Check validity
		ok, err := engine.IsValid(ctx, plat.ID, "user-1", time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected active subscription")
		}

		// Withdraw the platform's share
		funds, err := engine.WithdrawPlatform(ctx, platCap, plat.ID, "usd")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("platform withdrew %s\n", funds.String())

		// Withdraw the protocol's fee
		fees, err := engine.WithdrawProtocol(ctx, adminCap, "usd")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("protocol withdrew %s\n", fees.String())
	})

	// Test Funds type examples
	t.Run("FundsExamples", func(t *testing.T) {
		// Constructors
		_ = tollgate.Of(4900, "usd")
		_ = tollgate.Zero("eur")

		// Arithmetic
		f1 := types.Of(100, "usd")
		f2 := types.Of(200, "usd")
		_ = f1.Add(f2)
		_ = f1.Multiply(3)
		_ = f1.Divide(2)

		// Comparison
		if f1.LessThan(f2) {
			// f1 is less than f2
		}

		// Formatting
		_ = f1.String() // "100 usd"
	})
}
