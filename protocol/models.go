// Package protocol defines the singleton protocol entity that collects a fee
// skimmed from every platform's payments.
package protocol

import (
	"github.com/xraph/tollgate/asset"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// Protocol is the single system-wide fee collector. Exactly one instance
// exists per deployment, created through Engine.InitProtocol; every operation
// that touches it takes an explicit handle rather than an ambient lookup.
type Protocol struct {
	types.Entity
	ID       id.ProtocolID `json:"id"`
	Treasury *asset.Pool   `json:"treasury"`
}

// New creates a Protocol with a fresh id and an empty treasury.
func New() *Protocol {
	return &Protocol{
		Entity:   types.NewEntity(),
		ID:       id.NewProtocolID(),
		Treasury: asset.NewPool(),
	}
}
