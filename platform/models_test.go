package platform

import (
	"testing"
	"time"

	"github.com/xraph/tollgate/types"
)

func TestNewDefaults(t *testing.T) {
	p := New("news", types.Of(1000, "usd"), 0)

	if p.ID.IsNil() {
		t.Error("platform ID is nil")
	}
	if p.Period != DefaultPeriod {
		t.Errorf("Period: got %v, want %v", p.Period, DefaultPeriod)
	}
	if !p.Treasury.IsEmpty() {
		t.Error("new platform treasury not empty")
	}

	week := 7 * 24 * time.Hour
	if p := New("news", types.Of(1000, "usd"), week); p.Period != week {
		t.Errorf("Period: got %v, want %v", p.Period, week)
	}
}

func TestAcceptsIgnoresCase(t *testing.T) {
	p := New("news", types.Of(1000, "usd"), DefaultPeriod)

	tests := []struct {
		name     string
		assetKey string
		want     bool
	}{
		{"exact match", "usd", true},
		{"uppercase", "USD", true},
		{"mixed case", "Usd", true},
		{"different asset", "eur", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Accepts(tt.assetKey); got != tt.want {
				t.Errorf("Accepts(%q): got %v, want %v", tt.assetKey, got, tt.want)
			}
		})
	}

	// Platforms built from literal Funds values are normalized the same way.
	upper := New("raw", types.Funds{Amount: 1000, Asset: "USD"}, DefaultPeriod)
	if !upper.Accepts("usd") {
		t.Error("Accepts(usd): got false for platform priced in USD")
	}
}
