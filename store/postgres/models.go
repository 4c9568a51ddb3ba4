package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/asset"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/types"
)

func marshalPool(p *asset.Pool) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("tollgate/postgres: marshal pool: %w", err)
	}
	return b, nil
}

func unmarshalPool(data []byte) (*asset.Pool, error) {
	p := asset.NewPool()
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("tollgate/postgres: unmarshal pool: %w", err)
	}
	return p, nil
}

func marshalMeta(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("tollgate/postgres: marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMeta(data []byte) (map[string]string, error) {
	if len(data) == 0 || string(data) == "{}" {
		return nil, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tollgate/postgres: unmarshal metadata: %w", err)
	}
	return m, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

type platformRow struct {
	ID          string
	Name        string
	PriceAmount int64
	PriceAsset  string
	PeriodNS    int64
	Treasury    []byte
	Metadata    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func fromPlatformRow(r *platformRow) (*platform.Platform, error) {
	platformID, err := id.ParsePlatformID(r.ID)
	if err != nil {
		return nil, err
	}
	treasury, err := unmarshalPool(r.Treasury)
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalMeta(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &platform.Platform{
		Entity:   types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:       platformID,
		Name:     r.Name,
		Price:    types.Funds{Amount: r.PriceAmount, Asset: r.PriceAsset},
		Period:   time.Duration(r.PeriodNS),
		Treasury: treasury,
		Metadata: meta,
	}, nil
}

type accountRow struct {
	ID            string
	PlatformID    string
	Owner         string
	StartedAt     time.Time
	LastRenewedAt *time.Time
	ValidUntil    time.Time
	RenewalCount  int
	Escrow        []byte
	Metadata      []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func fromAccountRow(r *accountRow) (*account.Account, error) {
	acctID, err := id.ParseAccountID(r.ID)
	if err != nil {
		return nil, err
	}
	platformID, err := id.ParsePlatformID(r.PlatformID)
	if err != nil {
		return nil, err
	}
	escrow, err := unmarshalPool(r.Escrow)
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalMeta(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:        types.Entity{CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		ID:            acctID,
		PlatformID:    platformID,
		Owner:         r.Owner,
		StartedAt:     r.StartedAt,
		LastRenewedAt: derefTime(r.LastRenewedAt),
		ValidUntil:    r.ValidUntil,
		RenewalCount:  r.RenewalCount,
		Escrow:        escrow,
		Metadata:      meta,
	}, nil
}

type historyRow struct {
	ID         string
	PlatformID string
	Owner      string
	Kind       string
	Asset      string
	Amount     int64
	Timestamp  time.Time
	Metadata   []byte
}

func fromHistoryRow(r *historyRow) (*history.Entry, error) {
	entryID, err := id.ParseHistoryEntryID(r.ID)
	if err != nil {
		return nil, err
	}
	platformID, err := id.ParsePlatformID(r.PlatformID)
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalMeta(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &history.Entry{
		ID:         entryID,
		PlatformID: platformID,
		Owner:      r.Owner,
		Kind:       history.Kind(r.Kind),
		Asset:      r.Asset,
		Amount:     r.Amount,
		Timestamp:  r.Timestamp,
		Metadata:   meta,
	}, nil
}
