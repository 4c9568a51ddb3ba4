// Package history provides the append-only per-account transaction trail.
package history

import (
	"time"

	"github.com/xraph/tollgate/id"
)

// Kind classifies a history entry.
type Kind string

const (
	KindSubscribe    Kind = "subscribe"
	KindRenew        Kind = "renew"
	KindUnsubscribe  Kind = "unsubscribe"
	KindEscrowCredit Kind = "escrow_credit"
	KindEscrowRefund Kind = "escrow_refund"
	KindWithdrawal   Kind = "withdrawal"
)

// Entry is one immutable record in an account's transaction history.
// Entries are buffered in-process and flushed to the store in batches.
type Entry struct {
	ID         id.HistoryEntryID `json:"id"`
	PlatformID id.PlatformID     `json:"platform_id"`
	Owner      string            `json:"owner"`
	Kind       Kind              `json:"kind"`
	Asset      string            `json:"asset"`
	Amount     int64             `json:"amount"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QueryOpts filters history queries.
type QueryOpts struct {
	Kind   Kind
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
