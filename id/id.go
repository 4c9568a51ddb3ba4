// Package id defines TypeID-based identity types for all Tollgate entities.
//
// Every entity in Tollgate uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Tollgate entity types.
const (
	PrefixProtocol     Prefix = "proto"   // Singleton protocol
	PrefixPlatform     Prefix = "plat"    // Subscription platform
	PrefixAccount      Prefix = "acct"    // Subscription account
	PrefixAdminCap     Prefix = "admcap"  // Protocol admin capability
	PrefixPlatformCap  Prefix = "platcap" // Platform capability
	PrefixPayment      Prefix = "pay"     // Payment receipt
	PrefixHistoryEntry Prefix = "hist"    // Account history entry
)

// ID is the primary identifier type for all Tollgate entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "plat_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// ProtocolID is a type-safe identifier for the protocol (prefix: "proto").
type ProtocolID = ID

// PlatformID is a type-safe identifier for platforms (prefix: "plat").
type PlatformID = ID

// AccountID is a type-safe identifier for accounts (prefix: "acct").
type AccountID = ID

// AdminCapID is a type-safe identifier for admin capabilities (prefix: "admcap").
type AdminCapID = ID

// PlatformCapID is a type-safe identifier for platform capabilities (prefix: "platcap").
type PlatformCapID = ID

// PaymentID is a type-safe identifier for payment receipts (prefix: "pay").
type PaymentID = ID

// HistoryEntryID is a type-safe identifier for history entries (prefix: "hist").
type HistoryEntryID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewProtocolID generates a new unique protocol ID.
func NewProtocolID() ID { return New(PrefixProtocol) }

// NewPlatformID generates a new unique platform ID.
func NewPlatformID() ID { return New(PrefixPlatform) }

// NewAccountID generates a new unique account ID.
func NewAccountID() ID { return New(PrefixAccount) }

// NewAdminCapID generates a new unique admin capability ID.
func NewAdminCapID() ID { return New(PrefixAdminCap) }

// NewPlatformCapID generates a new unique platform capability ID.
func NewPlatformCapID() ID { return New(PrefixPlatformCap) }

// NewPaymentID generates a new unique payment receipt ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// NewHistoryEntryID generates a new unique history entry ID.
func NewHistoryEntryID() ID { return New(PrefixHistoryEntry) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseProtocolID parses a string and validates the "proto" prefix.
func ParseProtocolID(s string) (ID, error) { return ParseWithPrefix(s, PrefixProtocol) }

// ParsePlatformID parses a string and validates the "plat" prefix.
func ParsePlatformID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPlatform) }

// ParseAccountID parses a string and validates the "acct" prefix.
func ParseAccountID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccount) }

// ParseAdminCapID parses a string and validates the "admcap" prefix.
func ParseAdminCapID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAdminCap) }

// ParsePlatformCapID parses a string and validates the "platcap" prefix.
func ParsePlatformCapID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPlatformCap) }

// ParsePaymentID parses a string and validates the "pay" prefix.
func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// ParseHistoryEntryID parses a string and validates the "hist" prefix.
func ParseHistoryEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixHistoryEntry) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
