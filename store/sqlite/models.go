package sqlite

import (
	"database/sql"
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

// SQLite has no native time type; timestamps are stored as RFC 3339 text.
const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func fmtNullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(t), Valid: true}
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

func marshalPool(p *asset.Pool) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("tollgate/sqlite: marshal pool: %w", err)
	}
	return string(b), nil
}

func unmarshalPool(data string) (*asset.Pool, error) {
	p := asset.NewPool()
	if data == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, fmt.Errorf("tollgate/sqlite: unmarshal pool: %w", err)
	}
	return p, nil
}

func marshalMeta(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("tollgate/sqlite: marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMeta(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("tollgate/sqlite: unmarshal metadata: %w", err)
	}
	return m, nil
}

type platformRow struct {
	ID          string
	Name        string
	PriceAmount int64
	PriceAsset  string
	PeriodNS    int64
	Treasury    string
	Metadata    string
	CreatedAt   string
	UpdatedAt   string
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
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &platform.Platform{
		Entity:   types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
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
	StartedAt     string
	LastRenewedAt sql.NullString
	ValidUntil    string
	RenewalCount  int
	Escrow        string
	Metadata      string
	CreatedAt     string
	UpdatedAt     string
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
	startedAt, err := parseTime(r.StartedAt)
	if err != nil {
		return nil, err
	}
	lastRenewedAt, err := parseNullTime(r.LastRenewedAt)
	if err != nil {
		return nil, err
	}
	validUntil, err := parseTime(r.ValidUntil)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:        types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:            acctID,
		PlatformID:    platformID,
		Owner:         r.Owner,
		StartedAt:     startedAt,
		LastRenewedAt: lastRenewedAt,
		ValidUntil:    validUntil,
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
	Timestamp  string
	Metadata   string
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
	ts, err := parseTime(r.Timestamp)
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
		Timestamp:  ts,
		Metadata:   meta,
	}, nil
}
