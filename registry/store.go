package registry

import (
	"context"

	"github.com/xraph/streampay/types"
)

// Store persists the registry singleton and the asset whitelist.
type Store interface {
	// InitRegistry creates the singleton and whitelists the given assets.
	// It returns ErrAlreadyInitialized if a registry already exists.
	InitRegistry(ctx context.Context, cfg *Config, assets []types.AssetType) error

	// GetRegistry returns the singleton or ErrNotInitialized.
	GetRegistry(ctx context.Context) (*Config, error)

	// SetFeeRate overwrites the active fee rate.
	SetFeeRate(ctx context.Context, rateBps uint64) error

	// AddAsset whitelists an asset with an empty reserve. It reports false
	// when the asset was already present.
	AddAsset(ctx context.Context, asset types.AssetType) (bool, error)

	// GetAsset returns a whitelisted asset or ErrAssetNotWhitelisted.
	GetAsset(ctx context.Context, asset types.AssetType) (*Asset, error)

	// ListAssets returns all whitelisted assets ordered by name.
	ListAssets(ctx context.Context) ([]*Asset, error)

	// CreditFeeReserve adds amount to the asset's reserve.
	CreditFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error

	// DebitFeeReserve subtracts amount from the asset's reserve, failing with
	// types.ErrInsufficientFunds if the reserve holds less.
	DebitFeeReserve(ctx context.Context, asset types.AssetType, amount uint64) error
}
