package payment

import (
	"testing"
	"time"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name          string
		amount        int64
		feeRate       int64
		protocolShare int64
		platformShare int64
	}{
		{"one percent of 1000", 1000, 1, 10, 990},
		{"five percent of 1000", 1000, 5, 50, 950},
		{"rounds down", 999, 1, 9, 990},
		{"zero rate", 1000, 0, 0, 1000},
		{"full rate", 1000, 100, 1000, 0},
		{"zero amount", 0, 5, 0, 0},
		{"indivisible", 33, 10, 3, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			protocolShare, platformShare := Split(tt.amount, tt.feeRate)
			if protocolShare != tt.protocolShare {
				t.Errorf("protocol share: got %d, want %d", protocolShare, tt.protocolShare)
			}
			if platformShare != tt.platformShare {
				t.Errorf("platform share: got %d, want %d", platformShare, tt.platformShare)
			}
		})
	}
}

func TestSplitConservation(t *testing.T) {
	// No value is created or destroyed for any (amount, rate) pair.
	amounts := []int64{0, 1, 7, 99, 100, 999, 1000, 123456789}
	rates := []int64{0, 1, 3, 5, 33, 50, 99, 100}

	for _, amount := range amounts {
		for _, rate := range rates {
			protocolShare, platformShare := Split(amount, rate)
			if protocolShare+platformShare != amount {
				t.Errorf("Split(%d, %d): shares %d+%d != %d", amount, rate, protocolShare, platformShare, amount)
			}
			if protocolShare < 0 || platformShare < 0 {
				t.Errorf("Split(%d, %d): negative share", amount, rate)
			}
		}
	}
}

func TestSplitInvalidRatePanics(t *testing.T) {
	for _, rate := range []int64{-1, 101} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("expected panic for rate %d", rate)
				}
			}()
			Split(1000, rate)
		}()
	}
}

func TestNewReceipt(t *testing.T) {
	platformID := id.NewPlatformID()
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	r := NewReceipt(platformID, "alice", types.Of(1000, "usd"), 1, at)

	if !r.ProtocolShare.Equal(types.Of(10, "usd")) {
		t.Errorf("protocol share: got %v, want 10 usd", r.ProtocolShare)
	}
	if !r.PlatformShare.Equal(types.Of(990, "usd")) {
		t.Errorf("platform share: got %v, want 990 usd", r.PlatformShare)
	}
	if !r.Conserves() {
		t.Error("receipt must conserve value")
	}
	if r.ID.Prefix() != id.PrefixPayment {
		t.Errorf("receipt id prefix: got %q, want %q", r.ID.Prefix(), id.PrefixPayment)
	}
	if r.Owner != "alice" || !r.At.Equal(at) {
		t.Errorf("receipt fields: %+v", r)
	}
}
