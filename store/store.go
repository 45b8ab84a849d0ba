// Package store defines the unified persistence contract for streampay.
// Backends live in the memory, postgres, sqlite and mongo subpackages.
package store

import (
	"context"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// Store is the unified storage interface for all streampay entities.
// Methods are declared explicitly rather than embedding the sub-interfaces
// so that each backend is checked against one flat method set.
type Store interface {
	// Stream methods
	InsertStream(ctx context.Context, s *stream.Stream) error
	GetStream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error)
	ListStreams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error)
	UpdateStream(ctx context.Context, s *stream.Stream) error

	// Registry methods
	InitRegistry(ctx context.Context, cfg *registry.Config, assets []types.AssetType) error
	GetRegistry(ctx context.Context) (*registry.Config, error)
	SetFeeRate(ctx context.Context, rateBps uint64) error
	AddAsset(ctx context.Context, asset types.AssetType) (bool, error)
	GetAsset(ctx context.Context, asset types.AssetType) (*registry.Asset, error)
	ListAssets(ctx context.Context) ([]*registry.Asset, error)
	CreditFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error
	DebitFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ stream.Store   = Store(nil)
	_ registry.Store = Store(nil)
)

// AmountLimiter is implemented by stores that cannot hold the full uint64
// amount range. MaxAmount is the largest amount such a store persists.
type AmountLimiter interface {
	MaxAmount() uint64
}
