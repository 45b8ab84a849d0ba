// Package observability provides a metrics extension for streampay that
// records lifecycle event counts and settled amounts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/plugin"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated    = (*MetricsExtension)(nil)
	_ plugin.OnStreamActivated  = (*MetricsExtension)(nil)
	_ plugin.OnStreamPaused     = (*MetricsExtension)(nil)
	_ plugin.OnStreamResumed    = (*MetricsExtension)(nil)
	_ plugin.OnStreamCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnFeeRateChanged   = (*MetricsExtension)(nil)
	_ plugin.OnAssetWhitelisted = (*MetricsExtension)(nil)
	_ plugin.OnFeesCollected    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a streampay plugin to automatically track stream metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Stream metrics
	StreamCreated   Counter
	StreamActivated Counter
	StreamPaused    Counter
	StreamResumed   Counter
	StreamCancelled Counter
	StreamDuration  Histogram
	DepositAmount   Histogram

	// Settlement metrics
	Withdrawals      Counter
	WithdrawnAmount  Counter
	RefundedAmount   Counter
	PayeeOwedAmount  Counter
	WithdrawalAmount Histogram

	// Registry metrics
	FeesSkimmed      Counter
	FeesCollected    Counter
	FeeRateChanges   Counter
	AssetWhitelisted Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Stream metrics
		StreamCreated:   factory.Counter("streampay.stream.created"),
		StreamActivated: factory.Counter("streampay.stream.activated"),
		StreamPaused:    factory.Counter("streampay.stream.paused"),
		StreamResumed:   factory.Counter("streampay.stream.resumed"),
		StreamCancelled: factory.Counter("streampay.stream.cancelled"),
		StreamDuration:  factory.Histogram("streampay.stream.duration_ms"),
		DepositAmount:   factory.Histogram("streampay.stream.deposit_amount"),

		// Settlement metrics
		Withdrawals:      factory.Counter("streampay.withdrawals"),
		WithdrawnAmount:  factory.Counter("streampay.withdrawn.amount"),
		RefundedAmount:   factory.Counter("streampay.refunded.amount"),
		PayeeOwedAmount:  factory.Counter("streampay.payee_owed.amount"),
		WithdrawalAmount: factory.Histogram("streampay.withdrawal.amount"),

		// Registry metrics
		FeesSkimmed:      factory.Counter("streampay.fees.skimmed"),
		FeesCollected:    factory.Counter("streampay.fees.collected"),
		FeeRateChanges:   factory.Counter("streampay.fee_rate.changes"),
		AssetWhitelisted: factory.Counter("streampay.asset.whitelisted"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, s *stream.Stream) error {
	m.StreamCreated.Inc()
	m.DepositAmount.Observe(float64(s.InitialAmount + s.FeePaid))
	m.StreamDuration.Observe(float64(s.Duration.Milliseconds()))
	if s.FeePaid > 0 {
		m.FeesSkimmed.Add(float64(s.FeePaid))
	}
	return nil
}

// OnStreamActivated implements plugin.OnStreamActivated.
func (m *MetricsExtension) OnStreamActivated(_ context.Context, _ *stream.Stream) error {
	m.StreamActivated.Inc()
	return nil
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (m *MetricsExtension) OnStreamPaused(_ context.Context, _ id.StreamID, _ time.Time) error {
	m.StreamPaused.Inc()
	return nil
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (m *MetricsExtension) OnStreamResumed(_ context.Context, _ id.StreamID, _ time.Time) error {
	m.StreamResumed.Inc()
	return nil
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (m *MetricsExtension) OnStreamCancelled(_ context.Context, _ id.StreamID, refund, owed types.Coin) error {
	m.StreamCancelled.Inc()
	m.RefundedAmount.Add(float64(refund.Amount))
	m.PayeeOwedAmount.Add(float64(owed.Amount))
	return nil
}

// OnWithdrawn implements plugin.OnWithdrawn.
func (m *MetricsExtension) OnWithdrawn(_ context.Context, _ id.StreamID, amount types.Coin) error {
	m.Withdrawals.Inc()
	m.WithdrawnAmount.Add(float64(amount.Amount))
	m.WithdrawalAmount.Observe(float64(amount.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Registry hooks
// ──────────────────────────────────────────────────

// OnFeeRateChanged implements plugin.OnFeeRateChanged.
func (m *MetricsExtension) OnFeeRateChanged(_ context.Context, _, _ uint64) error {
	m.FeeRateChanges.Inc()
	return nil
}

// OnAssetWhitelisted implements plugin.OnAssetWhitelisted.
func (m *MetricsExtension) OnAssetWhitelisted(_ context.Context, _ types.AssetType) error {
	m.AssetWhitelisted.Inc()
	return nil
}

// OnFeesCollected implements plugin.OnFeesCollected.
func (m *MetricsExtension) OnFeesCollected(_ context.Context, fees types.Coin) error {
	m.FeesCollected.Add(float64(fees.Amount))
	return nil
}
