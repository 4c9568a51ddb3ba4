package account

import (
	"testing"
	"time"

	"github.com/xraph/tollgate/id"
)

var (
	epoch  = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	period = 30 * 24 * time.Hour
)

func TestNewActivatesImmediately(t *testing.T) {
	a := New(id.NewPlatformID(), "alice", epoch, period)

	if a.StartedAt != epoch {
		t.Errorf("StartedAt: got %v, want %v", a.StartedAt, epoch)
	}
	if !a.LastRenewedAt.IsZero() {
		t.Errorf("LastRenewedAt should be zero until first renewal, got %v", a.LastRenewedAt)
	}
	if want := epoch.Add(period); !a.ValidUntil.Equal(want) {
		t.Errorf("ValidUntil: got %v, want %v", a.ValidUntil, want)
	}
	if a.RenewalCount != 1 {
		t.Errorf("RenewalCount: got %d, want 1", a.RenewalCount)
	}
	if !a.ValidAt(epoch) {
		t.Error("account should be active immediately after creation")
	}
}

func TestRenewEarlyKeepsPaidTime(t *testing.T) {
	a := New(id.NewPlatformID(), "alice", epoch, period)
	firstEnd := a.ValidUntil

	// Renew halfway through the paid period.
	now := epoch.Add(period / 2)
	a.Renew(now, period)

	if want := firstEnd.Add(period); !a.ValidUntil.Equal(want) {
		t.Errorf("early renewal must extend from prior ValidUntil: got %v, want %v", a.ValidUntil, want)
	}
	if !a.LastRenewedAt.Equal(now) {
		t.Errorf("LastRenewedAt: got %v, want %v", a.LastRenewedAt, now)
	}
	if a.RenewalCount != 2 {
		t.Errorf("RenewalCount: got %d, want 2", a.RenewalCount)
	}
}

func TestRenewAfterExpiryAnchorsAtNow(t *testing.T) {
	a := New(id.NewPlatformID(), "alice", epoch, period)

	// Renew well after expiry; the lapsed gap is not billed retroactively.
	now := a.ValidUntil.Add(10 * 24 * time.Hour)
	a.Renew(now, period)

	if want := now.Add(period); !a.ValidUntil.Equal(want) {
		t.Errorf("late renewal must extend from now: got %v, want %v", a.ValidUntil, want)
	}
}

func TestValidAtBoundary(t *testing.T) {
	a := New(id.NewPlatformID(), "alice", epoch, period)
	end := a.ValidUntil

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just before expiry", end.Add(-time.Nanosecond), true},
		{"exactly at expiry", end, false},
		{"just after expiry", end.Add(time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.ValidAt(tt.now); got != tt.want {
				t.Errorf("ValidAt(%v): got %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestStatusAt(t *testing.T) {
	a := New(id.NewPlatformID(), "alice", epoch, period)

	if got := a.StatusAt(epoch); got != StatusActive {
		t.Errorf("StatusAt(created): got %v, want %v", got, StatusActive)
	}
	if got := a.StatusAt(a.ValidUntil.Add(time.Hour)); got != StatusExpired {
		t.Errorf("StatusAt(after expiry): got %v, want %v", got, StatusExpired)
	}

	var absent *Account
	if got := absent.StatusAt(epoch); got != StatusAbsent {
		t.Errorf("StatusAt(nil): got %v, want %v", got, StatusAbsent)
	}
	if absent.ValidAt(epoch) {
		t.Error("nil account must never be valid")
	}
}
