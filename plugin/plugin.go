// Package plugin provides an extensible plugin system for streampay.
// Plugins hook into stream and registry lifecycle events; a plugin
// implements only the hook interfaces it cares about.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the service starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, svc any) error
}

// OnShutdown is called when the service stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a deposit is accepted and a stream is
// minted, before it is attached.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, s *stream.Stream) error
}

// OnStreamActivated is called when a stream is attached and starts accruing.
type OnStreamActivated interface {
	Plugin
	OnStreamActivated(ctx context.Context, s *stream.Stream) error
}

// OnStreamPaused is called when the payer pauses a stream.
type OnStreamPaused interface {
	Plugin
	OnStreamPaused(ctx context.Context, streamID id.StreamID, at time.Time) error
}

// OnStreamResumed is called when the payer resumes a stream.
type OnStreamResumed interface {
	Plugin
	OnStreamResumed(ctx context.Context, streamID id.StreamID, at time.Time) error
}

// OnStreamCancelled is called after a stream is settled. owed stays in the
// stream for the payee to withdraw.
type OnStreamCancelled interface {
	Plugin
	OnStreamCancelled(ctx context.Context, streamID id.StreamID, refund, owed types.Coin) error
}

// OnWithdrawn is called after a non-zero payee withdrawal.
type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, streamID id.StreamID, amount types.Coin) error
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnFeeRateChanged is called when the administrator changes the fee rate.
type OnFeeRateChanged interface {
	Plugin
	OnFeeRateChanged(ctx context.Context, oldRate, newRate uint64) error
}

// OnAssetWhitelisted is called when a new asset is whitelisted.
type OnAssetWhitelisted interface {
	Plugin
	OnAssetWhitelisted(ctx context.Context, asset types.AssetType) error
}

// OnFeesCollected is called when the administrator drains a fee reserve.
type OnFeesCollected interface {
	Plugin
	OnFeesCollected(ctx context.Context, fees types.Coin) error
}
