package platform

import (
	"context"

	"github.com/xraph/tollgate/id"
)

type Store interface {
	Create(ctx context.Context, p *Platform) error
	Get(ctx context.Context, platformID id.PlatformID) (*Platform, error)
	List(ctx context.Context, opts ListOpts) ([]*Platform, error)
	Withdraw(ctx context.Context, platformID id.PlatformID, assetKey string) (int64, error)
}

type ListOpts struct {
	Asset  string
	Limit  int
	Offset int
}
