package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/streampay/id"
	"github.com/xraph/streampay/stream"
	"github.com/xraph/streampay/types"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration and cached per
// interface.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onStreamCreated    []OnStreamCreated
	onStreamActivated  []OnStreamActivated
	onStreamPaused     []OnStreamPaused
	onStreamResumed    []OnStreamResumed
	onStreamCancelled  []OnStreamCancelled
	onWithdrawn        []OnWithdrawn
	onFeeRateChanged   []OnFeeRateChanged
	onAssetWhitelisted []OnAssetWhitelisted
	onFeesCollected    []OnFeesCollected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
		hooks = append(hooks, "OnStreamCreated")
	}
	if v, ok := p.(OnStreamActivated); ok {
		r.onStreamActivated = append(r.onStreamActivated, v)
		hooks = append(hooks, "OnStreamActivated")
	}
	if v, ok := p.(OnStreamPaused); ok {
		r.onStreamPaused = append(r.onStreamPaused, v)
		hooks = append(hooks, "OnStreamPaused")
	}
	if v, ok := p.(OnStreamResumed); ok {
		r.onStreamResumed = append(r.onStreamResumed, v)
		hooks = append(hooks, "OnStreamResumed")
	}
	if v, ok := p.(OnStreamCancelled); ok {
		r.onStreamCancelled = append(r.onStreamCancelled, v)
		hooks = append(hooks, "OnStreamCancelled")
	}
	if v, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, v)
		hooks = append(hooks, "OnWithdrawn")
	}
	if v, ok := p.(OnFeeRateChanged); ok {
		r.onFeeRateChanged = append(r.onFeeRateChanged, v)
		hooks = append(hooks, "OnFeeRateChanged")
	}
	if v, ok := p.(OnAssetWhitelisted); ok {
		r.onAssetWhitelisted = append(r.onAssetWhitelisted, v)
		hooks = append(hooks, "OnAssetWhitelisted")
	}
	if v, ok := p.(OnFeesCollected); ok {
		r.onFeesCollected = append(r.onFeesCollected, v)
		hooks = append(hooks, "OnFeesCollected")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, svc any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p, func() error { return p.OnInit(ctx, svc) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p, func() error { return p.OnShutdown(ctx) })
	}
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		snapshot := s.Clone()
		r.dispatch(ctx, "OnStreamCreated", p, func() error { return p.OnStreamCreated(ctx, snapshot) })
	}
}

// EmitStreamActivated emits a stream activated event.
func (r *Registry) EmitStreamActivated(ctx context.Context, s *stream.Stream) {
	r.mu.RLock()
	plugins := r.onStreamActivated
	r.mu.RUnlock()

	for _, p := range plugins {
		snapshot := s.Clone()
		r.dispatch(ctx, "OnStreamActivated", p, func() error { return p.OnStreamActivated(ctx, snapshot) })
	}
}

// EmitStreamPaused emits a stream paused event.
func (r *Registry) EmitStreamPaused(ctx context.Context, streamID id.StreamID, at time.Time) {
	r.mu.RLock()
	plugins := r.onStreamPaused
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnStreamPaused", p, func() error { return p.OnStreamPaused(ctx, streamID, at) })
	}
}

// EmitStreamResumed emits a stream resumed event.
func (r *Registry) EmitStreamResumed(ctx context.Context, streamID id.StreamID, at time.Time) {
	r.mu.RLock()
	plugins := r.onStreamResumed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnStreamResumed", p, func() error { return p.OnStreamResumed(ctx, streamID, at) })
	}
}

// EmitStreamCancelled emits a stream cancelled event.
func (r *Registry) EmitStreamCancelled(ctx context.Context, streamID id.StreamID, refund, owed types.Coin) {
	r.mu.RLock()
	plugins := r.onStreamCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnStreamCancelled", p, func() error { return p.OnStreamCancelled(ctx, streamID, refund, owed) })
	}
}

// EmitWithdrawn emits a payee withdrawal event.
func (r *Registry) EmitWithdrawn(ctx context.Context, streamID id.StreamID, amount types.Coin) {
	r.mu.RLock()
	plugins := r.onWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnWithdrawn", p, func() error { return p.OnWithdrawn(ctx, streamID, amount) })
	}
}

// EmitFeeRateChanged emits a fee rate change event.
func (r *Registry) EmitFeeRateChanged(ctx context.Context, oldRate, newRate uint64) {
	r.mu.RLock()
	plugins := r.onFeeRateChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnFeeRateChanged", p, func() error { return p.OnFeeRateChanged(ctx, oldRate, newRate) })
	}
}

// EmitAssetWhitelisted emits an asset whitelisted event.
func (r *Registry) EmitAssetWhitelisted(ctx context.Context, asset types.AssetType) {
	r.mu.RLock()
	plugins := r.onAssetWhitelisted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnAssetWhitelisted", p, func() error { return p.OnAssetWhitelisted(ctx, asset) })
	}
}

// EmitFeesCollected emits a fees collected event.
func (r *Registry) EmitFeesCollected(ctx context.Context, fees types.Coin) {
	r.mu.RLock()
	plugins := r.onFeesCollected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnFeesCollected", p, func() error { return p.OnFeesCollected(ctx, fees) })
	}
}

func (r *Registry) dispatch(ctx context.Context, hook string, p Plugin, fn func() error) {
	if err := r.callWithTimeout(ctx, p.Name(), fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", p.Name(),
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins never block a settlement: the operation has already committed.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
