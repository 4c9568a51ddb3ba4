package mongo

import (
	"time"

	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/asset"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/protocol"
	"github.com/xraph/tollgate/types"
)

// Pools are stored as flat asset→balance documents.
func poolToDoc(p *asset.Pool) map[string]int64 {
	doc := make(map[string]int64)
	if p == nil {
		return doc
	}
	for _, f := range p.Balances() {
		doc[f.Asset] = f.Amount
	}
	return doc
}

func poolFromDoc(doc map[string]int64) *asset.Pool {
	p := asset.NewPool()
	for assetKey, amount := range doc {
		p.Deposit(assetKey, amount)
	}
	return p
}

// ==================== Protocol model ====================

type protocolModel struct {
	ID        string           `bson:"_id"`
	Treasury  map[string]int64 `bson:"treasury"`
	CreatedAt time.Time        `bson:"created_at"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

func toProtocolModel(proto *protocol.Protocol) *protocolModel {
	return &protocolModel{
		ID:        proto.ID.String(),
		Treasury:  poolToDoc(proto.Treasury),
		CreatedAt: proto.CreatedAt,
		UpdatedAt: proto.UpdatedAt,
	}
}

func fromProtocolModel(m *protocolModel) (*protocol.Protocol, error) {
	protoID, err := id.ParseProtocolID(m.ID)
	if err != nil {
		return nil, err
	}
	return &protocol.Protocol{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       protoID,
		Treasury: poolFromDoc(m.Treasury),
	}, nil
}

// ==================== Platform model ====================

type platformModel struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	PriceAmount int64             `bson:"price_amount"`
	PriceAsset  string            `bson:"price_asset"`
	PeriodNS    int64             `bson:"period_ns"`
	Treasury    map[string]int64  `bson:"treasury"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toPlatformModel(p *platform.Platform) *platformModel {
	return &platformModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		PriceAmount: p.Price.Amount,
		PriceAsset:  p.Price.Asset,
		PeriodNS:    int64(p.Period),
		Treasury:    poolToDoc(p.Treasury),
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlatformModel(m *platformModel) (*platform.Platform, error) {
	platformID, err := id.ParsePlatformID(m.ID)
	if err != nil {
		return nil, err
	}
	return &platform.Platform{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       platformID,
		Name:     m.Name,
		Price:    types.Funds{Amount: m.PriceAmount, Asset: m.PriceAsset},
		Period:   time.Duration(m.PeriodNS),
		Treasury: poolFromDoc(m.Treasury),
		Metadata: m.Metadata,
	}, nil
}

// ==================== Account model ====================

type accountModel struct {
	ID            string            `bson:"_id"`
	PlatformID    string            `bson:"platform_id"`
	Owner         string            `bson:"owner"`
	StartedAt     time.Time         `bson:"started_at"`
	LastRenewedAt *time.Time        `bson:"last_renewed_at,omitempty"`
	ValidUntil    time.Time         `bson:"valid_until"`
	RenewalCount  int               `bson:"renewal_count"`
	Escrow        map[string]int64  `bson:"escrow"`
	Metadata      map[string]string `bson:"metadata,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	var lastRenewed *time.Time
	if !a.LastRenewedAt.IsZero() {
		t := a.LastRenewedAt
		lastRenewed = &t
	}
	return &accountModel{
		ID:            a.ID.String(),
		PlatformID:    a.PlatformID.String(),
		Owner:         a.Owner,
		StartedAt:     a.StartedAt,
		LastRenewedAt: lastRenewed,
		ValidUntil:    a.ValidUntil,
		RenewalCount:  a.RenewalCount,
		Escrow:        poolToDoc(a.Escrow),
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	acctID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	platformID, err := id.ParsePlatformID(m.PlatformID)
	if err != nil {
		return nil, err
	}
	var lastRenewed time.Time
	if m.LastRenewedAt != nil {
		lastRenewed = *m.LastRenewedAt
	}
	return &account.Account{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            acctID,
		PlatformID:    platformID,
		Owner:         m.Owner,
		StartedAt:     m.StartedAt,
		LastRenewedAt: lastRenewed,
		ValidUntil:    m.ValidUntil,
		RenewalCount:  m.RenewalCount,
		Escrow:        poolFromDoc(m.Escrow),
		Metadata:      m.Metadata,
	}, nil
}

// ==================== History model ====================

type historyModel struct {
	ID         string            `bson:"_id"`
	PlatformID string            `bson:"platform_id"`
	Owner      string            `bson:"owner"`
	Kind       string            `bson:"kind"`
	Asset      string            `bson:"asset"`
	Amount     int64             `bson:"amount"`
	Timestamp  time.Time         `bson:"timestamp"`
	Metadata   map[string]string `bson:"metadata,omitempty"`
}

func toHistoryModel(e *history.Entry) *historyModel {
	return &historyModel{
		ID:         e.ID.String(),
		PlatformID: e.PlatformID.String(),
		Owner:      e.Owner,
		Kind:       string(e.Kind),
		Asset:      e.Asset,
		Amount:     e.Amount,
		Timestamp:  e.Timestamp,
		Metadata:   e.Metadata,
	}
}

func fromHistoryModel(m *historyModel) (*history.Entry, error) {
	entryID, err := id.ParseHistoryEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	platformID, err := id.ParsePlatformID(m.PlatformID)
	if err != nil {
		return nil, err
	}
	return &history.Entry{
		ID:         entryID,
		PlatformID: platformID,
		Owner:      m.Owner,
		Kind:       history.Kind(m.Kind),
		Asset:      m.Asset,
		Amount:     m.Amount,
		Timestamp:  m.Timestamp,
		Metadata:   m.Metadata,
	}, nil
}
