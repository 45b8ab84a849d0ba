package streampay

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/xraph/streampay/plugin"
	"github.com/xraph/streampay/registry"
	"github.com/xraph/streampay/store"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// Service is the streaming payment engine. It owns no balances itself: every
// stream and the registry live in the store, and the service serializes
// writes per stream and per registry.
type Service struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock

	streamLocks *keyedMutex
	registryMu  sync.Mutex
	delivery    TokenDelivery

	// Registry bootstrap configuration
	defaultFeeRate uint64
	initialAssets  []types.AssetType
}

// New creates a new Service instance.
func New(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		clock:          SystemClock(),
		streamLocks:    newKeyedMutex(),
		defaultFeeRate: registry.DefaultFeeRateBps,
		initialAssets:  []types.AssetType{types.NativeAsset},
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Service) {
		_ = s.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.plugins.WithTimeout(d)
	}
}

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTokenDelivery sends each new payee token to its recipient after
// StartPayment commits.
func WithTokenDelivery(d TokenDelivery) Option {
	return func(s *Service) {
		s.delivery = d
	}
}

// WithDefaultFeeRate sets the fee rate a new registry is initialized with.
func WithDefaultFeeRate(bps uint64) Option {
	return func(s *Service) {
		s.defaultFeeRate = bps
	}
}

// WithInitialAssets whitelists additional assets when the registry is
// initialized. The native asset is always whitelisted.
func WithInitialAssets(assets ...types.AssetType) Option {
	return func(s *Service) {
		for _, a := range assets {
			a = types.Asset(string(a))
			if a.IsValid() && !slices.Contains(s.initialAssets, a) {
				s.initialAssets = append(s.initialAssets, a)
			}
		}
	}
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// Plugins returns the plugin registry.
func (s *Service) Plugins() *plugin.Registry { return s.plugins }

// Start migrates the store and initializes plugins.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	s.plugins.EmitInit(ctx, s)

	s.logger.Info("streampay started",
		"default_fee_rate_bps", s.defaultFeeRate,
		"initial_assets", s.initialAssets,
		"plugins", s.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (s *Service) Stop() error {
	ctx := context.Background()
	s.plugins.EmitShutdown(ctx)

	return s.store.Close()
}

// InitRegistry creates the registry with the default fee rate and the
// initial asset whitelist, and mints the single admin token. It fails with
// ErrRegistryAlreadyInitialized when a registry exists.
func (s *Service) InitRegistry(ctx context.Context) (*token.AdminToken, error) {
	if err := registry.ValidateFeeRate(s.defaultFeeRate); err != nil {
		return nil, err
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	admin := token.MintAdmin()
	cfg := &registry.Config{
		Entity:       types.NewEntity(s.clock.Now()),
		FeeRateBps:   s.defaultFeeRate,
		AdminTokenID: admin.ID,
	}

	if err := s.store.InitRegistry(ctx, cfg, s.initialAssets); err != nil {
		return nil, err
	}

	s.logger.Info("registry initialized",
		"fee_rate_bps", cfg.FeeRateBps,
		"assets", s.initialAssets,
	)

	return admin, nil
}
