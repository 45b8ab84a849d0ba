// Package mongo implements store.Store on MongoDB through the grove ORM.
// Stream writes filter on both _id and version, giving the same optimistic
// guard as the SQL backends.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	streampaystore "github.com/xraph/streampay/store"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// Collection name constants.
const (
	colStreams  = "streampay_streams"
	colRegistry = "streampay_registry"
	colAssets   = "streampay_assets"
)

// compile-time interface checks
var (
	_ streampaystore.Store         = (*Store)(nil)
	_ streampaystore.AmountLimiter = (*Store)(nil)
)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// MaxAmount reports the largest amount an int64 document field holds.
func (s *Store) MaxAmount() uint64 { return math.MaxInt64 }

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all streampay collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("streampay/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Stream Store ====================

func (s *Store) InsertStream(ctx context.Context, st *stream.Stream) error {
	m, err := toStreamModel(st)
	if err != nil {
		return err
	}
	m.Version = 1

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stream.ErrAlreadyExists
		}
		return fmt.Errorf("streampay/mongo: insert stream: %w", err)
	}
	st.Version = 1
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	var m streamModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": streamID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stream.ErrNotFound
		}
		return nil, fmt.Errorf("streampay/mongo: get stream: %w", err)
	}
	return fromStreamModel(&m)
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel

	filter := bson.M{}
	if opts.Payer != "" {
		filter["payer"] = opts.Payer
	}
	if opts.Recipient != "" {
		filter["recipient"] = opts.Recipient
	}
	if opts.Asset != "" {
		filter["asset"] = string(opts.Asset)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streampay/mongo: list streams: %w", err)
	}

	result := make([]*stream.Stream, len(models))
	for i := range models {
		st, err := fromStreamModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = st
	}
	return result, nil
}

func (s *Store) UpdateStream(ctx context.Context, st *stream.Stream) error {
	m, err := toStreamModel(st)
	if err != nil {
		return err
	}

	res, err := s.mdb.NewUpdate((*streamModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": m.Version}).
		Set("status", m.Status).
		Set("accumulated_pause_ns", m.AccumulatedPauseNs).
		Set("pause_start", m.PauseStart).
		Set("balance", m.Balance).
		Set("payee_withdrawn", m.PayeeWithdrawn).
		Set("metadata", m.Metadata).
		Set("version", m.Version+1).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streampay/mongo: update stream: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.versionConflict(ctx, st.ID)
	}
	st.Version++
	return nil
}

func (s *Store) versionConflict(ctx context.Context, streamID id.StreamID) error {
	n, err := s.mdb.Collection(colStreams).CountDocuments(ctx, bson.M{"_id": streamID.String()})
	if err != nil {
		return fmt.Errorf("streampay/mongo: count stream: %w", err)
	}
	if n == 0 {
		return stream.ErrNotFound
	}
	return stream.ErrConcurrentUpdate
}

// ==================== Registry Store ====================

func (s *Store) InitRegistry(ctx context.Context, cfg *registry.Config, assets []types.AssetType) error {
	for _, a := range assets {
		if _, err := s.AddAsset(ctx, a); err != nil {
			return err
		}
	}

	if _, err := s.mdb.NewInsert(toRegistryModel(cfg)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return registry.ErrAlreadyInitialized
		}
		return fmt.Errorf("streampay/mongo: init registry: %w", err)
	}
	return nil
}

func (s *Store) GetRegistry(ctx context.Context) (*registry.Config, error) {
	var m registryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": registryKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, registry.ErrNotInitialized
		}
		return nil, fmt.Errorf("streampay/mongo: get registry: %w", err)
	}
	return fromRegistryModel(&m)
}

func (s *Store) SetFeeRate(ctx context.Context, rateBps uint64) error {
	res, err := s.mdb.NewUpdate((*registryModel)(nil)).
		Filter(bson.M{"_id": registryKey}).
		Set("fee_rate_bps", int64(rateBps)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streampay/mongo: set fee rate: %w", err)
	}
	if res.MatchedCount() == 0 {
		return registry.ErrNotInitialized
	}
	return nil
}

func (s *Store) AddAsset(ctx context.Context, asset types.AssetType) (bool, error) {
	t := now()
	m := &assetModel{Asset: string(asset), CreatedAt: t, UpdatedAt: t}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("streampay/mongo: add asset: %w", err)
	}
	return true, nil
}

func (s *Store) GetAsset(ctx context.Context, asset types.AssetType) (*registry.Asset, error) {
	var m assetModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(asset)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
		}
		return nil, fmt.Errorf("streampay/mongo: get asset: %w", err)
	}
	return fromAssetModel(&m), nil
}

func (s *Store) ListAssets(ctx context.Context) ([]*registry.Asset, error) {
	var models []assetModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("streampay/mongo: list assets: %w", err)
	}

	result := make([]*registry.Asset, len(models))
	for i := range models {
		result[i] = fromAssetModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreditFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: %d exceeds int64", types.ErrAmountOverflow, amount)
	}

	res, err := s.mdb.NewUpdate((*assetModel)(nil)).
		Filter(bson.M{"_id": string(asset)}).
		SetUpdate(bson.M{
			"$inc": bson.M{"fee_reserve": int64(amount)},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streampay/mongo: credit fee reserve: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
	}
	return nil
}

func (s *Store) DebitFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error {
	if amount > math.MaxInt64 {
		return fmt.Errorf("%w: %d exceeds int64", types.ErrAmountOverflow, amount)
	}

	res, err := s.mdb.NewUpdate((*assetModel)(nil)).
		Filter(bson.M{"_id": string(asset), "fee_reserve": bson.M{"$gte": int64(amount)}}).
		SetUpdate(bson.M{
			"$inc": bson.M{"fee_reserve": -int64(amount)},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streampay/mongo: debit fee reserve: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetAsset(ctx, asset); err != nil {
			return err
		}
		return fmt.Errorf("%w: debit %d from %s reserve", types.ErrInsufficientFunds, amount, asset)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all streampay collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colStreams: {
			{Keys: bson.D{{Key: "payer", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{
				Keys:    bson.D{{Key: "payer_token_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "payee_token_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRegistry: {},
		colAssets:   {},
	}
}
