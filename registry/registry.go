// Package registry holds the process-wide payment configuration: the active
// fee rate, the asset whitelist, and the per-asset fee reserves that
// accumulate ingress fees until an administrator collects them.
package registry

import (
	"errors"
	"fmt"

	"github.com/xraph/streampay/accrual"
	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/types"
)

// DefaultFeeRateBps is the fee rate the registry is initialized with.
const DefaultFeeRateBps uint64 = 30

// Registry errors.
var (
	ErrNotInitialized      = errors.New("streampay: registry not initialized")
	ErrAlreadyInitialized  = errors.New("streampay: registry already initialized")
	ErrAssetNotWhitelisted = errors.New("streampay: asset not whitelisted")
)

// Config is the singleton registry record.
type Config struct {
	types.Entity
	FeeRateBps   uint64          `json:"fee_rate_bps"`
	AdminTokenID id.AdminTokenID `json:"admin_token_id"`
}

// Asset is a whitelisted asset and its accumulated fee reserve.
type Asset struct {
	types.Entity
	Asset      types.AssetType `json:"asset"`
	FeeReserve uint64          `json:"fee_reserve"`
}

// Reserve returns the fee reserve as a coin.
func (a *Asset) Reserve() types.Coin {
	return types.NewCoin(a.Asset, a.FeeReserve)
}

// ValidateFeeRate rejects rates outside [1, FeeBase]. Zero is invalid: a
// zero-fee registry is expressed by not charging, not by a zero rate.
func ValidateFeeRate(rateBps uint64) error {
	if rateBps == 0 || rateBps > accrual.FeeBase {
		return fmt.Errorf("%w: %d bps (allowed 1..%d)", accrual.ErrFeeRateInvalid, rateBps, accrual.FeeBase)
	}
	return nil
}
