// Package platform defines independently operated subscription services.
// Each platform has its own price, accepted asset, and treasury.
package platform

import (
	"strings"
	"time"

	"github.com/xraph/tollgate/asset"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/types"
)

// DefaultPeriod is the subscription length used when none is given.
const DefaultPeriod = 30 * 24 * time.Hour

// Platform is one subscription service. Payments are accepted only in the
// price's asset; the treasury accumulates the platform's share of every
// payment until the holder of the matching capability withdraws it.
type Platform struct {
	types.Entity
	ID       id.PlatformID     `json:"id"`
	Name     string            `json:"name"`
	Price    types.Funds       `json:"price"`
	Period   time.Duration     `json:"period"`
	Treasury *asset.Pool       `json:"treasury"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New creates a Platform with a fresh id, an empty treasury, and the given
// price per period. A non-positive period falls back to DefaultPeriod.
func New(name string, price types.Funds, period time.Duration) *Platform {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Platform{
		Entity:   types.NewEntity(),
		ID:       id.NewPlatformID(),
		Name:     name,
		Price:    price,
		Period:   period,
		Treasury: asset.NewPool(),
	}
}

// AcceptedAsset returns the single asset type this platform accepts.
func (p *Platform) AcceptedAsset() string { return p.Price.Asset }

// Accepts reports whether the platform accepts payment in the given asset.
// Asset keys are case-insensitive, matching the normalization done by
// types.Of and asset.Pool.
func (p *Platform) Accepts(assetKey string) bool {
	return strings.EqualFold(p.Price.Asset, assetKey)
}
