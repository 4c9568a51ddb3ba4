package types

import (
	"encoding/json"
	"testing"
)

func TestFundsConstructors(t *testing.T) {
	tests := []struct {
		name    string
		funds   Funds
		amount  int64
		asset   string
		display string
	}{
		{"USD cents", Of(4900, "usd"), 4900, "usd", "4900 usd"},
		{"Credits", Of(250, "credits"), 250, "credits", "250 credits"},
		{"Uppercase normalized", Of(100, "GWEI"), 100, "gwei", "100 gwei"},
		{"Zero", Zero("usd"), 0, "usd", "0 usd"},
		{"Zero uppercase", Zero("EUR"), 0, "eur", "0 eur"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.funds.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.funds.Amount, tt.amount)
			}
			if tt.funds.Asset != tt.asset {
				t.Errorf("Asset: got %s, want %s", tt.funds.Asset, tt.asset)
			}
			if tt.funds.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.funds.String(), tt.display)
			}
		})
	}
}

func TestFundsArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Funds
		expected Funds
	}{
		{"Add", func() Funds { return Of(100, "usd").Add(Of(200, "usd")) }, Of(300, "usd")},
		{"Subtract", func() Funds { return Of(500, "usd").Subtract(Of(200, "usd")) }, Of(300, "usd")},
		{"Multiply", func() Funds { return Of(100, "usd").Multiply(3) }, Of(300, "usd")},
		{"Divide", func() Funds { return Of(900, "usd").Divide(3) }, Of(300, "usd")},
		{"Negate", func() Funds { return Of(100, "usd").Negate() }, Of(-100, "usd")},
		{"Abs positive", func() Funds { return Of(100, "usd").Abs() }, Of(100, "usd")},
		{"Abs negative", func() Funds { return Of(-100, "usd").Abs() }, Of(100, "usd")},
		{"Complex", func() Funds {
			return Of(1000, "usd").Add(Of(500, "usd")).Multiply(2).Subtract(Of(1000, "usd"))
		}, Of(2000, "usd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFundsAssetMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for asset mismatch")
		}
	}()

	// This should panic
	_ = Of(100, "usd").Add(Of(100, "eur"))
}

func TestFundsDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	// This should panic
	_ = Of(100, "usd").Divide(0)
}

func TestFundsComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Funds
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", Of(100, "usd"), Of(100, "usd"), false, false, true},
		{"Less", Of(50, "usd"), Of(100, "usd"), true, false, false},
		{"Greater", Of(200, "usd"), Of(100, "usd"), false, true, false},
		{"Zero equal", Of(0, "usd"), Zero("usd"), false, false, true},
		{"Negative less", Of(-100, "usd"), Of(100, "usd"), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestFundsMinMax(t *testing.T) {
	a, b := Of(50, "usd"), Of(100, "usd")
	if got := a.Min(b); !got.Equal(a) {
		t.Errorf("Min: got %v, want %v", got, a)
	}
	if got := a.Max(b); !got.Equal(b) {
		t.Errorf("Max: got %v, want %v", got, b)
	}
}

func TestFundsPredicates(t *testing.T) {
	if !Of(0, "usd").IsZero() {
		t.Error("IsZero: expected true for zero amount")
	}
	if !Of(1, "usd").IsPositive() {
		t.Error("IsPositive: expected true")
	}
	if !Of(-1, "usd").IsNegative() {
		t.Error("IsNegative: expected true")
	}
}

func TestFundsJSONRoundTrip(t *testing.T) {
	original := Of(4900, "usd")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Funds
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !decoded.Equal(original) {
		t.Errorf("round-trip mismatch: %v != %v", decoded, original)
	}
}

func TestSum(t *testing.T) {
	got := Sum(Of(100, "usd"), Of(200, "usd"), Of(300, "usd"))
	if !got.Equal(Of(600, "usd")) {
		t.Errorf("Sum: got %v, want %v", got, Of(600, "usd"))
	}

	if !Sum().IsZero() {
		t.Error("Sum of nothing should be zero")
	}
}
