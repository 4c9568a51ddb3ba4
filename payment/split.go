// Package payment computes the fee split applied to every subscription
// payment and records the result as a Receipt.
package payment

import (
	"fmt"
	"time"

	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// DefaultFeeRate is the protocol's cut in whole percent.
const DefaultFeeRate int64 = 5

// Split divides amount between the protocol and the platform. The protocol
// share is floor(amount * feeRate / 100); the platform keeps the remainder,
// so protocolShare + platformShare == amount always holds. Panics on a rate
// outside [0, 100] or a negative amount; both are validated upstream, so a
// panic here is a programming error.
func Split(amount, feeRate int64) (protocolShare, platformShare int64) {
	if feeRate < 0 || feeRate > 100 {
		panic(fmt.Sprintf("payment: fee rate %d out of range [0, 100]", feeRate))
	}
	if amount < 0 {
		panic(fmt.Sprintf("payment: negative amount %d", amount))
	}

	protocolShare = amount * feeRate / 100
	platformShare = amount - protocolShare
	return protocolShare, platformShare
}

// Receipt records one processed payment: the full amount tendered and the
// two shares it was split into.
type Receipt struct {
	ID            id.PaymentID  `json:"id"`
	PlatformID    id.PlatformID `json:"platform_id"`
	Owner         string        `json:"owner"`
	Payment       types.Funds   `json:"payment"`
	ProtocolShare types.Funds   `json:"protocol_share"`
	PlatformShare types.Funds   `json:"platform_share"`
	FeeRate       int64         `json:"fee_rate"`
	At            time.Time     `json:"at"`
}

// NewReceipt splits pay at feeRate and returns the receipt for it.
func NewReceipt(platformID id.PlatformID, owner string, pay types.Funds, feeRate int64, at time.Time) *Receipt {
	protocolShare, platformShare := Split(pay.Amount, feeRate)
	return &Receipt{
		ID:            id.NewPaymentID(),
		PlatformID:    platformID,
		Owner:         owner,
		Payment:       pay,
		ProtocolShare: types.Funds{Amount: protocolShare, Asset: pay.Asset},
		PlatformShare: types.Funds{Amount: platformShare, Asset: pay.Asset},
		FeeRate:       feeRate,
		At:            at,
	}
}

// Conserves reports whether the two shares sum back to the payment.
// It holds for every receipt produced by NewReceipt; stores may assert it
// before committing.
func (r *Receipt) Conserves() bool {
	return r.ProtocolShare.Amount+r.PlatformShare.Amount == r.Payment.Amount &&
		r.ProtocolShare.Asset == r.Payment.Asset &&
		r.PlatformShare.Asset == r.Payment.Asset
}
