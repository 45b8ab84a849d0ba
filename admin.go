package streampay

import (
	"context"
	"errors"

	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// ──────────────────────────────────────────────────
// Registry administration
// ──────────────────────────────────────────────────

// SetFeeRate changes the fee rate applied to future deposits. Existing
// streams are unaffected.
func (s *Service) SetFeeRate(ctx context.Context, admin *token.AdminToken, rateBps uint64) error {
	if err := registry.ValidateFeeRate(rateBps); err != nil {
		return err
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	cfg, err := s.adminConfig(ctx, admin)
	if err != nil {
		return err
	}
	if err := s.store.SetFeeRate(ctx, rateBps); err != nil {
		return err
	}

	s.plugins.EmitFeeRateChanged(ctx, cfg.FeeRateBps, rateBps)
	s.logger.Info("fee rate changed",
		"old_rate_bps", cfg.FeeRateBps,
		"new_rate_bps", rateBps,
	)
	return nil
}

// AddAsset whitelists an asset. Adding an already whitelisted asset is a
// no-op.
func (s *Service) AddAsset(ctx context.Context, admin *token.AdminToken, asset types.AssetType) error {
	asset = types.Asset(string(asset))
	if !asset.IsValid() {
		return ValidationError{Field: "asset", Message: "must not be empty"}
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	if _, err := s.adminConfig(ctx, admin); err != nil {
		return err
	}
	added, err := s.store.AddAsset(ctx, asset)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	s.plugins.EmitAssetWhitelisted(ctx, asset)
	s.logger.Info("asset whitelisted", "asset", asset)
	return nil
}

// CollectFees drains the asset's fee reserve and returns it to the admin.
func (s *Service) CollectFees(ctx context.Context, admin *token.AdminToken, asset types.AssetType) (types.Coin, error) {
	asset = types.Asset(string(asset))

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	if _, err := s.adminConfig(ctx, admin); err != nil {
		return types.Coin{}, err
	}
	a, err := s.store.GetAsset(ctx, asset)
	if err != nil {
		return types.Coin{}, err
	}
	if a.FeeReserve == 0 {
		return types.Zero(asset), nil
	}
	if err := s.store.DebitFeeReserve(ctx, asset, a.FeeReserve); err != nil {
		return types.Coin{}, err
	}

	fees := a.Reserve()
	s.plugins.EmitFeesCollected(ctx, fees)
	s.logger.Info("fees collected", "asset", asset, "amount", fees.Amount)
	return fees, nil
}

// ──────────────────────────────────────────────────
// Registry queries
// ──────────────────────────────────────────────────

// FeeRate returns the active fee rate in basis points.
func (s *Service) FeeRate(ctx context.Context) (uint64, error) {
	cfg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.FeeRateBps, nil
}

// IsWhitelisted reports whether deposits of asset are accepted.
func (s *Service) IsWhitelisted(ctx context.Context, asset types.AssetType) (bool, error) {
	_, err := s.store.GetAsset(ctx, types.Asset(string(asset)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, registry.ErrAssetNotWhitelisted):
		return false, nil
	default:
		return false, err
	}
}

// FeeReserve returns the fees accumulated for asset and not yet collected.
func (s *Service) FeeReserve(ctx context.Context, asset types.AssetType) (types.Coin, error) {
	a, err := s.store.GetAsset(ctx, types.Asset(string(asset)))
	if err != nil {
		return types.Coin{}, err
	}
	return a.Reserve(), nil
}

// ListAssets returns the whitelist with each asset's fee reserve.
func (s *Service) ListAssets(ctx context.Context) ([]*registry.Asset, error) {
	return s.store.ListAssets(ctx)
}

func (s *Service) adminConfig(ctx context.Context, admin *token.AdminToken) (*registry.Config, error) {
	cfg, err := s.store.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if err := admin.Authorize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
