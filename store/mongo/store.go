// Package mongo provides a Store implementation backed by MongoDB. Compound
// commits use multi-document transactions, so the deployment must be a
// replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/payment"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/protocol"
	tollgatestore "github.com/xraph/tollgate/store"
)

// Collection name constants.
const (
	colProtocol  = "tollgate_protocol"
	colPlatforms = "tollgate_platforms"
	colAccounts  = "tollgate_accounts"
	colHistory   = "tollgate_history"
)

// compile-time interface check
var _ tollgatestore.Store = (*Store)(nil)

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an already connected database handle.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

// Open connects to the MongoDB deployment at uri and uses database dbName.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tollgate/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("tollgate/mongo: ping: %w", err)
	}
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all tollgate collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colPlatforms: {
			{Keys: bson.D{{Key: "price_asset", Value: 1}}},
		},
		colAccounts: {
			{
				Keys:    bson.D{{Key: "platform_id", Value: 1}, {Key: "owner", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "platform_id", Value: 1}, {Key: "valid_until", Value: 1}}},
		},
		colHistory: {
			{Keys: bson.D{{Key: "platform_id", Value: 1}, {Key: "owner", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tollgate/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from the database.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Protocol Store ====================

func (s *Store) InitProtocol(ctx context.Context, proto *protocol.Protocol) error {
	count, err := s.db.Collection(colProtocol).CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("tollgate/mongo: init protocol: %w", err)
	}
	if count > 0 {
		return tollgate.ErrProtocolInitialized
	}
	_, err = s.db.Collection(colProtocol).InsertOne(ctx, toProtocolModel(proto))
	if err != nil {
		return fmt.Errorf("tollgate/mongo: init protocol: %w", err)
	}
	return nil
}

func (s *Store) GetProtocol(ctx context.Context) (*protocol.Protocol, error) {
	var m protocolModel
	err := s.db.Collection(colProtocol).FindOne(ctx, bson.M{}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tollgate.ErrProtocolNotInitialized
		}
		return nil, fmt.Errorf("tollgate/mongo: get protocol: %w", err)
	}
	return fromProtocolModel(&m)
}

func (s *Store) WithdrawProtocol(ctx context.Context, assetKey string) (int64, error) {
	var amount int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		proto, err := s.GetProtocol(ctx)
		if err != nil {
			return err
		}
		withdrawn, ok := proto.Treasury.Withdraw(assetKey)
		if !ok {
			return tollgate.ErrNotFound
		}
		amount = withdrawn
		return s.updateProtocolTreasury(ctx, proto)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// ==================== Platform Store ====================

func (s *Store) CreatePlatform(ctx context.Context, p *platform.Platform) error {
	_, err := s.db.Collection(colPlatforms).InsertOne(ctx, toPlatformModel(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tollgate.ErrPlatformExists
		}
		return fmt.Errorf("tollgate/mongo: create platform: %w", err)
	}
	return nil
}

func (s *Store) GetPlatform(ctx context.Context, platformID id.PlatformID) (*platform.Platform, error) {
	var m platformModel
	err := s.db.Collection(colPlatforms).
		FindOne(ctx, bson.M{"_id": platformID.String()}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tollgate.ErrPlatformNotFound
		}
		return nil, fmt.Errorf("tollgate/mongo: get platform: %w", err)
	}
	return fromPlatformModel(&m)
}

func (s *Store) ListPlatforms(ctx context.Context, opts platform.ListOpts) ([]*platform.Platform, error) {
	filter := bson.M{}
	if opts.Asset != "" {
		filter["price_asset"] = opts.Asset
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPlatforms).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tollgate/mongo: list platforms: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*platform.Platform, 0)
	for cursor.Next(ctx) {
		var m platformModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		p, err := fromPlatformModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, cursor.Err()
}

func (s *Store) WithdrawPlatform(ctx context.Context, platformID id.PlatformID, assetKey string) (int64, error) {
	var amount int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		p, err := s.GetPlatform(ctx, platformID)
		if err != nil {
			return err
		}
		withdrawn, ok := p.Treasury.Withdraw(assetKey)
		if !ok {
			return tollgate.ErrNotFound
		}
		amount = withdrawn
		return s.updatePlatformTreasury(ctx, p)
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOne(ctx, bson.M{"platform_id": platformID.String(), "owner": owner}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tollgate.ErrNoSubscription
		}
		return nil, fmt.Errorf("tollgate/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colAccounts).
		Find(ctx, bson.M{"platform_id": platformID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tollgate/mongo: list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*account.Account, 0)
	for cursor.Next(ctx) {
		var m accountModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		a, err := fromAccountModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, cursor.Err()
}

func (s *Store) CommitSubscription(ctx context.Context, rcpt *payment.Receipt, acct *account.Account) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		proto, err := s.GetProtocol(ctx)
		if err != nil {
			return err
		}
		p, err := s.GetPlatform(ctx, rcpt.PlatformID)
		if err != nil {
			return err
		}

		count, err := s.db.Collection(colAccounts).CountDocuments(ctx,
			bson.M{"platform_id": rcpt.PlatformID.String(), "owner": rcpt.Owner})
		if err != nil {
			return err
		}
		if count > 0 {
			return tollgate.ErrSubscriptionExists
		}
		if !rcpt.Conserves() {
			return tollgate.ErrValueNotConserved
		}

		proto.Treasury.DepositFunds(rcpt.ProtocolShare)
		p.Treasury.DepositFunds(rcpt.PlatformShare)
		if err := s.updateProtocolTreasury(ctx, proto); err != nil {
			return err
		}
		if err := s.updatePlatformTreasury(ctx, p); err != nil {
			return err
		}
		_, err = s.db.Collection(colAccounts).InsertOne(ctx, toAccountModel(acct))
		if mongo.IsDuplicateKeyError(err) {
			return tollgate.ErrSubscriptionExists
		}
		return err
	})
}

func (s *Store) CommitRenewal(ctx context.Context, rcpt *payment.Receipt, now time.Time, period time.Duration) (*account.Account, error) {
	var acct *account.Account
	err := s.inTx(ctx, func(ctx context.Context) error {
		proto, err := s.GetProtocol(ctx)
		if err != nil {
			return err
		}
		p, err := s.GetPlatform(ctx, rcpt.PlatformID)
		if err != nil {
			return err
		}
		acct, err = s.GetAccount(ctx, rcpt.PlatformID, rcpt.Owner)
		if err != nil {
			return err
		}
		if !rcpt.Conserves() {
			return tollgate.ErrValueNotConserved
		}

		proto.Treasury.DepositFunds(rcpt.ProtocolShare)
		p.Treasury.DepositFunds(rcpt.PlatformShare)
		acct.Renew(now, period)

		if err := s.updateProtocolTreasury(ctx, proto); err != nil {
			return err
		}
		if err := s.updatePlatformTreasury(ctx, p); err != nil {
			return err
		}
		return s.replaceAccount(ctx, acct)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *Store) RemoveAccount(ctx context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOneAndDelete(ctx, bson.M{"platform_id": platformID.String(), "owner": owner}).
		Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tollgate.ErrNoSubscription
		}
		return nil, fmt.Errorf("tollgate/mongo: remove account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) CreditEscrow(ctx context.Context, platformID id.PlatformID, owner, assetKey string, amount int64) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		acct, err := s.GetAccount(ctx, platformID, owner)
		if err != nil {
			return err
		}
		acct.Escrow.Deposit(assetKey, amount)
		acct.Touch()
		return s.replaceAccount(ctx, acct)
	})
}

// ==================== History Store ====================

func (s *Store) AppendHistory(ctx context.Context, entries []*history.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = toHistoryModel(e)
	}
	_, err := s.db.Collection(colHistory).InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("tollgate/mongo: append history: %w", err)
	}
	return nil
}

func (s *Store) QueryHistory(ctx context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error) {
	filter := bson.M{"platform_id": platformID.String(), "owner": owner}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	ts := bson.M{}
	if !opts.Start.IsZero() {
		ts["$gt"] = opts.Start
	}
	if !opts.End.IsZero() {
		ts["$lt"] = opts.End
	}
	if len(ts) > 0 {
		filter["timestamp"] = ts
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colHistory).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("tollgate/mongo: query history: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*history.Entry, 0)
	for cursor.Next(ctx) {
		var m historyModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		e, err := fromHistoryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, cursor.Err()
}

func (s *Store) PurgeHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colHistory).
		DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("tollgate/mongo: purge history: %w", err)
	}
	return res.DeletedCount, nil
}

// ==================== Helpers ====================

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("tollgate/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (s *Store) updateProtocolTreasury(ctx context.Context, proto *protocol.Protocol) error {
	_, err := s.db.Collection(colProtocol).UpdateOne(ctx,
		bson.M{"_id": proto.ID.String()},
		bson.M{"$set": bson.M{"treasury": poolToDoc(proto.Treasury), "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("tollgate/mongo: update protocol treasury: %w", err)
	}
	return nil
}

func (s *Store) updatePlatformTreasury(ctx context.Context, p *platform.Platform) error {
	_, err := s.db.Collection(colPlatforms).UpdateOne(ctx,
		bson.M{"_id": p.ID.String()},
		bson.M{"$set": bson.M{"treasury": poolToDoc(p.Treasury), "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("tollgate/mongo: update platform treasury: %w", err)
	}
	return nil
}

func (s *Store) replaceAccount(ctx context.Context, acct *account.Account) error {
	res, err := s.db.Collection(colAccounts).ReplaceOne(ctx,
		bson.M{"_id": acct.ID.String()}, toAccountModel(acct))
	if err != nil {
		return fmt.Errorf("tollgate/mongo: replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return tollgate.ErrNoSubscription
	}
	return nil
}
