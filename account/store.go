package account

import (
	"context"

	"github.com/xraph/tollgate/id"
)

type Store interface {
	Get(ctx context.Context, platformID id.PlatformID, owner string) (*Account, error)
	List(ctx context.Context, platformID id.PlatformID, opts ListOpts) ([]*Account, error)
	Remove(ctx context.Context, platformID id.PlatformID, owner string) (*Account, error)
	CreditEscrow(ctx context.Context, platformID id.PlatformID, owner string, assetKey string, amount int64) error
}

type ListOpts struct {
	Limit  int
	Offset int
}
