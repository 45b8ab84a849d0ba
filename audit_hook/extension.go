// Package audithook bridges streampay lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/plugin"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnStreamCreated    = (*Extension)(nil)
	_ plugin.OnStreamActivated  = (*Extension)(nil)
	_ plugin.OnStreamPaused     = (*Extension)(nil)
	_ plugin.OnStreamResumed    = (*Extension)(nil)
	_ plugin.OnStreamCancelled  = (*Extension)(nil)
	_ plugin.OnWithdrawn        = (*Extension)(nil)
	_ plugin.OnFeeRateChanged   = (*Extension)(nil)
	_ plugin.OnAssetWhitelisted = (*Extension)(nil)
	_ plugin.OnFeesCollected    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter but is defined locally; callers inject the
// concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges streampay lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryStream,
		"payer", s.Payer,
		"asset", s.Asset.String(),
		"principal", s.InitialAmount,
		"fee", s.FeePaid,
		"duration_ms", s.Duration.Milliseconds(),
	)
}

// OnStreamActivated implements plugin.OnStreamActivated.
func (e *Extension) OnStreamActivated(ctx context.Context, s *stream.Stream) error {
	return e.record(ctx, ActionStreamActivated, SeverityInfo, OutcomeSuccess,
		ResourceStream, s.ID.String(), CategoryStream,
		"payer", s.Payer,
		"recipient", s.Recipient,
	)
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (e *Extension) OnStreamPaused(ctx context.Context, streamID id.StreamID, at time.Time) error {
	return e.record(ctx, ActionStreamPaused, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID.String(), CategoryStream,
		"at", at,
	)
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (e *Extension) OnStreamResumed(ctx context.Context, streamID id.StreamID, at time.Time) error {
	return e.record(ctx, ActionStreamResumed, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID.String(), CategoryStream,
		"at", at,
	)
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (e *Extension) OnStreamCancelled(ctx context.Context, streamID id.StreamID, refund, owed types.Coin) error {
	return e.record(ctx, ActionStreamCancelled, SeverityWarning, OutcomeSuccess,
		ResourceStream, streamID.String(), CategoryPayment,
		"asset", refund.Asset.String(),
		"refund", refund.Amount,
		"payee_owed", owed.Amount,
	)
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, streamID id.StreamID, amount types.Coin) error {
	return e.record(ctx, ActionWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceStream, streamID.String(), CategoryPayment,
		"asset", amount.Asset.String(),
		"amount", amount.Amount,
	)
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnFeeRateChanged implements plugin.OnFeeRateChanged.
func (e *Extension) OnFeeRateChanged(ctx context.Context, oldRate, newRate uint64) error {
	return e.record(ctx, ActionFeeRateChanged, SeverityWarning, OutcomeSuccess,
		ResourceRegistry, "", CategoryGovernance,
		"old_rate_bps", oldRate,
		"new_rate_bps", newRate,
	)
}

// OnAssetWhitelisted implements plugin.OnAssetWhitelisted.
func (e *Extension) OnAssetWhitelisted(ctx context.Context, asset types.AssetType) error {
	return e.record(ctx, ActionAssetWhitelisted, SeverityInfo, OutcomeSuccess,
		ResourceAsset, asset.String(), CategoryGovernance,
	)
}

// OnFeesCollected implements plugin.OnFeesCollected.
func (e *Extension) OnFeesCollected(ctx context.Context, fees types.Coin) error {
	return e.record(ctx, ActionFeesCollected, SeverityInfo, OutcomeSuccess,
		ResourceAsset, fees.Asset.String(), CategoryGovernance,
		"amount", fees.Amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
