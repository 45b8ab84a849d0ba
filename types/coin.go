// Package types provides the custody primitive and common types used across
// streampay.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Custody errors.
var (
	ErrAssetMismatch     = errors.New("streampay: asset mismatch")
	ErrInsufficientFunds = errors.New("streampay: insufficient funds")
	ErrAmountOverflow    = errors.New("streampay: amount overflow")
)

// AssetType names a fungible asset. Asset types are compared after
// normalization (lowercase, trimmed).
type AssetType string

// NativeAsset is the asset whitelisted when a registry is first created.
const NativeAsset AssetType = "native"

// Asset normalizes s into an AssetType.
func Asset(s string) AssetType {
	return AssetType(strings.ToLower(strings.TrimSpace(s)))
}

// IsValid reports whether the asset type is non-empty.
func (a AssetType) IsValid() bool { return a != "" }

// String implements fmt.Stringer.
func (a AssetType) String() string { return string(a) }

// Coin is an amount of a single asset in its smallest indivisible unit.
// All arithmetic is unsigned integer-only and overflow-checked.
type Coin struct {
	Amount uint64    `json:"amount"`
	Asset  AssetType `json:"asset"`
}

// NewCoin creates a Coin of the given asset.
func NewCoin(asset AssetType, amount uint64) Coin {
	return Coin{Amount: amount, Asset: Asset(string(asset))}
}

// Native creates a Coin of the native asset.
func Native(amount uint64) Coin { return Coin{Amount: amount, Asset: NativeAsset} }

// Zero returns an empty Coin of the given asset.
func Zero(asset AssetType) Coin { return Coin{Asset: Asset(string(asset))} }

// IsZero returns true if the amount is zero.
func (c Coin) IsZero() bool { return c.Amount == 0 }

// Split takes amount out of c. kept holds the remainder.
// It fails with ErrInsufficientFunds if c holds less than amount.
func (c Coin) Split(amount uint64) (kept, taken Coin, err error) {
	if amount > c.Amount {
		return c, Zero(c.Asset), fmt.Errorf("%w: split %d from %d", ErrInsufficientFunds, amount, c.Amount)
	}
	return Coin{Amount: c.Amount - amount, Asset: c.Asset}, Coin{Amount: amount, Asset: c.Asset}, nil
}

// Join merges other into c. Both coins must carry the same asset.
func (c Coin) Join(other Coin) (Coin, error) {
	if c.Asset != other.Asset {
		return c, fmt.Errorf("%w: %s != %s", ErrAssetMismatch, c.Asset, other.Asset)
	}
	if other.Amount > math.MaxUint64-c.Amount {
		return c, ErrAmountOverflow
	}
	return Coin{Amount: c.Amount + other.Amount, Asset: c.Asset}, nil
}

// Equal returns true if both coins hold the same amount of the same asset.
func (c Coin) Equal(other Coin) bool {
	return c.Amount == other.Amount && c.Asset == other.Asset
}

// String returns "<amount> <asset>", e.g. "997 native".
func (c Coin) String() string {
	return fmt.Sprintf("%d %s", c.Amount, c.Asset)
}

// MarshalJSON implements json.Marshaler.
func (c Coin) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  uint64    `json:"amount"`
		Asset   AssetType `json:"asset"`
		Display string    `json:"display"`
	}{
		Amount:  c.Amount,
		Asset:   c.Asset,
		Display: c.String(),
	})
}

// Sum joins all coins. All must share one asset; an empty input yields a
// zero native coin.
func Sum(coins ...Coin) (Coin, error) {
	if len(coins) == 0 {
		return Zero(NativeAsset), nil
	}

	total := coins[0]
	for _, c := range coins[1:] {
		var err error
		if total, err = total.Join(c); err != nil {
			return Coin{}, err
		}
	}
	return total, nil
}
