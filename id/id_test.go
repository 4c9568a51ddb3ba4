package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tollgate/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ProtocolID", id.NewProtocolID, "proto_"},
		{"PlatformID", id.NewPlatformID, "plat_"},
		{"AccountID", id.NewAccountID, "acct_"},
		{"AdminCapID", id.NewAdminCapID, "admcap_"},
		{"PlatformCapID", id.NewPlatformCapID, "platcap_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
		{"HistoryEntryID", id.NewHistoryEntryID, "hist_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixPlatform)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixPlatform {
		t.Errorf("expected prefix %q, got %q", id.PrefixPlatform, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ProtocolID", id.NewProtocolID, id.ParseProtocolID},
		{"PlatformID", id.NewPlatformID, id.ParsePlatformID},
		{"AccountID", id.NewAccountID, id.ParseAccountID},
		{"AdminCapID", id.NewAdminCapID, id.ParseAdminCapID},
		{"PlatformCapID", id.NewPlatformCapID, id.ParsePlatformCapID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
		{"HistoryEntryID", id.NewHistoryEntryID, id.ParseHistoryEntryID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseProtocolID rejects plat_", id.NewPlatformID().String(), id.ParseProtocolID},
		{"ParsePlatformID rejects acct_", id.NewAccountID().String(), id.ParsePlatformID},
		{"ParseAccountID rejects admcap_", id.NewAdminCapID().String(), id.ParseAccountID},
		{"ParseAdminCapID rejects platcap_", id.NewPlatformCapID().String(), id.ParseAdminCapID},
		{"ParsePlatformCapID rejects pay_", id.NewPaymentID().String(), id.ParsePlatformCapID},
		{"ParsePaymentID rejects hist_", id.NewHistoryEntryID().String(), id.ParsePaymentID},
		{"ParseHistoryEntryID rejects proto_", id.NewProtocolID().String(), id.ParseHistoryEntryID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseAny(t *testing.T) {
	ids := []id.ID{
		id.NewProtocolID(),
		id.NewPlatformID(),
		id.NewAccountID(),
		id.NewAdminCapID(),
		id.NewPlatformCapID(),
		id.NewPaymentID(),
		id.NewHistoryEntryID(),
	}

	for _, i := range ids {
		t.Run(i.String(), func(t *testing.T) {
			parsed, err := id.ParseAny(i.String())
			if err != nil {
				t.Fatalf("ParseAny(%q) failed: %v", i.String(), err)
			}
			if parsed.String() != i.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), i.String())
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewPlatformID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixPlatform)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixAccount)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewAccountID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewAccountID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil driver value, got %v", val)
	}
	var scannedNil id.ID
	if err := scannedNil.Scan(val); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scannedNil.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}
