// Package postgres implements store.Store on PostgreSQL through the grove
// ORM. Every stream transition is a single-row statement guarded by the
// row's version, so no explicit transactions are needed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	streampaystore "github.com/xraph/streampay/store"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// compile-time interface checks
var (
	_ streampaystore.Store         = (*Store)(nil)
	_ streampaystore.AmountLimiter = (*Store)(nil)
)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// MaxAmount reports the largest amount a BIGINT column holds.
func (s *Store) MaxAmount() uint64 { return math.MaxInt64 }

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("streampay/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("streampay/postgres: migration failed: %w", err)
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

	res, err := s.pg.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return stream.ErrAlreadyExists
	}
	st.Version = 1
	return nil
}

func (s *Store) GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	m := new(streamModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", streamID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stream.ErrNotFound
		}
		return nil, err
	}
	return fromStreamModel(m)
}

func (s *Store) ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	var models []streamModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Payer != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer)
	}
	if opts.Recipient != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("recipient = $%d", argIdx), opts.Recipient)
	}
	if opts.Asset != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("asset = $%d", argIdx), string(opts.Asset))
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

	res, err := s.pg.NewUpdate((*streamModel)(nil)).
		Set("status = $1", m.Status).
		Set("accumulated_pause_ns = $2", m.AccumulatedPauseNs).
		Set("pause_start = $3", m.PauseStart).
		Set("balance = $4", m.Balance).
		Set("payee_withdrawn = $5", m.PayeeWithdrawn).
		Set("metadata = $6", m.Metadata).
		Set("version = $7", m.Version+1).
		Set("updated_at = $8", now()).
		Where("id = $9", m.ID).
		Where("version = $10", m.Version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.versionConflict(ctx, st.ID)
	}
	st.Version++
	return nil
}

// versionConflict distinguishes a missing row from a stale version after a
// guarded write matched nothing.
func (s *Store) versionConflict(ctx context.Context, streamID id.StreamID) error {
	var count int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM streampay_streams WHERE id = $1`, streamID.String()).
		Scan(ctx, &count)
	if err != nil {
		return err
	}
	if count == 0 {
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

	res, err := s.pg.NewInsert(toRegistryModel(cfg)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return registry.ErrAlreadyInitialized
	}
	return nil
}

func (s *Store) GetRegistry(ctx context.Context) (*registry.Config, error) {
	m := new(registryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", registryKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, registry.ErrNotInitialized
		}
		return nil, err
	}
	return fromRegistryModel(m)
}

func (s *Store) SetFeeRate(ctx context.Context, rateBps uint64) error {
	res, err := s.pg.NewUpdate((*registryModel)(nil)).
		Set("fee_rate_bps = $1", int64(rateBps)).
		Set("updated_at = $2", now()).
		Where("id = $3", registryKey).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return registry.ErrNotInitialized
	}
	return nil
}

func (s *Store) AddAsset(ctx context.Context, asset types.AssetType) (bool, error) {
	t := now()
	m := &assetModel{Asset: string(asset), CreatedAt: t, UpdatedAt: t}
	res, err := s.pg.NewInsert(m).
		OnConflict("(asset) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) GetAsset(ctx context.Context, asset types.AssetType) (*registry.Asset, error) {
	m := new(assetModel)
	err := s.pg.NewSelect(m).
		Where("asset = $1", string(asset)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
		}
		return nil, err
	}
	return fromAssetModel(m), nil
}

func (s *Store) ListAssets(ctx context.Context) ([]*registry.Asset, error) {
	var models []assetModel
	if err := s.pg.NewSelect(&models).OrderExpr("asset ASC").Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*registry.Asset, len(models))
	for i := range models {
		result[i] = fromAssetModel(&models[i])
	}
	return result, nil
}

func (s *Store) CreditFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error {
	delta, err := toBigint(amount)
	if err != nil {
		return err
	}

	res, err := s.pg.NewUpdate((*assetModel)(nil)).
		Set("fee_reserve = fee_reserve + $1", delta).
		Set("updated_at = $2", now()).
		Where("asset = $3", string(asset)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", registry.ErrAssetNotWhitelisted, asset)
	}
	return nil
}

func (s *Store) DebitFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error {
	delta, err := toBigint(amount)
	if err != nil {
		return err
	}

	res, err := s.pg.NewUpdate((*assetModel)(nil)).
		Set("fee_reserve = fee_reserve - $1", delta).
		Set("updated_at = $2", now()).
		Where("asset = $3", string(asset)).
		Where("fee_reserve >= $4", delta).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
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

func toBigint(amount uint64) (int64, error) {
	if amount > 1<<63-1 {
		return 0, fmt.Errorf("%w: %d exceeds BIGINT", types.ErrAmountOverflow, amount)
	}
	return int64(amount), nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
