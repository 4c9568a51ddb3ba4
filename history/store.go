package history

import (
	"context"
	"time"

	"github.com/xraph/tollgate/id"
)

type Store interface {
	Append(ctx context.Context, entries []*Entry) error
	Query(ctx context.Context, platformID id.PlatformID, owner string, opts QueryOpts) ([]*Entry, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}
