// Package tollgate provides a composable subscription billing engine for Go applications.
//
// Tollgate is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - A single protocol treasury that skims a configurable fee from every payment
//   - Independently operated platforms, each with its own price and treasury
//   - One subscription account per (platform, owner) pair with time-based validity
//   - Capability tokens as the only authorization for treasury withdrawals
//   - Exact integer fee splits that conserve every unit of the payment
//   - A batched, append-only transaction history per account
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/tollgate"
//	    "github.com/xraph/tollgate/store/sqlite"
//	)
//
//	// Initialize store
//	store, err := sqlite.Open("tollgate.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create engine
//	engine := tollgate.New(store, tollgate.WithFeeRate(5))
//
//	// Start the engine (runs migrations, begins background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// The protocol is initialized once; the caller receives the only admin
// capability:
//
//	proto, adminCap, err := engine.InitProtocol(ctx)
//
// Platforms are subscription services with a fixed price per period:
//
//	plat, platCap, err := engine.CreatePlatform(ctx, "news", tollgate.Of(1000, "usd"), 30*24*time.Hour)
//
// Users subscribe by paying at least the platform's price in its accepted
// asset; the payment is split between the protocol and platform treasuries.
// Time-dependent operations take the clock reading as an argument:
//
//	acct, receipt, err := engine.Subscribe(ctx, plat.ID, "user-1", tollgate.Of(1000, "usd"), time.Now())
//
//	ok, err := engine.IsValid(ctx, plat.ID, "user-1", time.Now())
//
// Treasury withdrawals require the matching capability:
//
//	funds, err := engine.WithdrawPlatform(ctx, platCap, plat.ID, "usd")
//
// # Arithmetic
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Funds type represents amounts in the smallest unit of
// an arbitrary asset type, and every fee split satisfies
// protocolShare + platformShare == payment exactly.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	plat_01h2xcejqtf2nbrexx3vqjhp41  // Platform ID
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment receipt ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package tollgate
