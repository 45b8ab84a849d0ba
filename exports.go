package streampay

import (
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages.

// Coin is re-exported from types package.
type Coin = types.Coin

// AssetType is re-exported from types package.
type AssetType = types.AssetType

// Entity is re-exported from types package.
type Entity = types.Entity

// Stream is re-exported from stream package.
type Stream = stream.Stream

// Status is re-exported from stream package.
type Status = stream.Status

// ListOpts is re-exported from stream package.
type ListOpts = stream.ListOpts

// Token types are re-exported from token package.
type (
	PayerToken = token.PayerToken
	PayeeToken = token.PayeeToken
	AdminToken = token.AdminToken
)

// Re-export asset and coin constructors
const NativeAsset = types.NativeAsset

var (
	Asset   = types.Asset
	NewCoin = types.NewCoin
	Native  = types.Native
	Zero    = types.Zero
	Sum     = types.Sum
)

// Re-export status values
const (
	StatusCreated   = stream.StatusCreated
	StatusActive    = stream.StatusActive
	StatusPaused    = stream.StatusPaused
	StatusCancelled = stream.StatusCancelled
)
