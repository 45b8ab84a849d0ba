// Package extension provides the Forge extension adapter for streampay.
//
// It implements the forge.Extension interface to integrate the streaming
// payment service into a Forge application with DI registration and
// lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.streampay" or
// "streampay" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/streampay"
	"github.com/xraph/streampay/store"
	"github.com/xraph/streampay/store/memory"
	"github.com/xraph/streampay/store/mongo"
	"github.com/xraph/streampay/store/postgres"
	"github.com/xraph/streampay/store/sqlite"
	"github.com/xraph/streampay/token"
	"github.com/xraph/streampay/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "streampay"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Time-metered streaming payments"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Store drivers accepted in Config.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts streampay as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	service     *streampay.Service
	store       store.Store
	groveDB     *grove.DB
	admin       *token.AdminToken
	serviceOpts []streampay.Option
}

// New creates a new streampay Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Service returns the underlying streampay service.
// This is nil until Register is called.
func (e *Extension) Service() *streampay.Service { return e.service }

// AdminToken returns the admin token minted by AutoInitRegistry. It is nil
// when the registry already existed or auto-initialization is off.
func (e *Extension) AdminToken() *token.AdminToken { return e.admin }

// Register implements [forge.Extension]. It loads configuration,
// initializes the service, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.resolveStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	e.service = streampay.New(e.store, e.buildServiceOpts()...)

	return vessel.Provide(fapp.Container(), func() (*streampay.Service, error) {
		return e.service, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.service == nil {
		return errors.New("streampay: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.service.Start(ctx); err != nil {
			return err
		}
	}

	if e.config.AutoInitRegistry {
		admin, err := e.service.InitRegistry(ctx)
		switch {
		case err == nil:
			e.admin = admin
			e.Logger().Info("streampay: registry initialized",
				forge.F("fee_rate_bps", e.config.DefaultFeeRateBps),
			)
		case errors.Is(err, streampay.ErrRegistryAlreadyInitialized):
			e.Logger().Debug("streampay: registry already initialized")
		default:
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.service != nil {
		if err := e.service.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("streampay: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveStore builds the store from the grove.DB, falling back to memory.
func (e *Extension) resolveStore() (store.Store, error) {
	if e.groveDB == nil {
		return memory.New(), nil
	}
	return newStore(e.config.Driver, e.groveDB)
}

func newStore(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case DriverPostgres:
		return postgres.New(db), nil
	case DriverSQLite:
		return sqlite.New(db), nil
	case DriverMongo:
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("streampay: unknown store driver %q", driver)
	}
}

// buildServiceOpts constructs streampay.Option values from the resolved config.
func (e *Extension) buildServiceOpts() []streampay.Option {
	opts := make([]streampay.Option, 0, len(e.serviceOpts)+3)

	if e.config.DefaultFeeRateBps > 0 {
		opts = append(opts, streampay.WithDefaultFeeRate(e.config.DefaultFeeRateBps))
	}
	if len(e.config.InitialAssets) > 0 {
		assets := make([]types.AssetType, 0, len(e.config.InitialAssets))
		for _, a := range e.config.InitialAssets {
			assets = append(assets, types.Asset(a))
		}
		opts = append(opts, streampay.WithInitialAssets(assets...))
	}
	if e.config.PluginTimeout > 0 {
		opts = append(opts, streampay.WithPluginTimeout(e.config.PluginTimeout))
	}

	// Append any pass-through service options.
	opts = append(opts, e.serviceOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("streampay: configuration is required but not found in config files; " +
				"ensure 'extensions.streampay' or 'streampay' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("streampay: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("auto_init_registry", e.config.AutoInitRegistry),
		forge.F("default_fee_rate_bps", e.config.DefaultFeeRateBps),
		forge.F("initial_assets", e.config.InitialAssets),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("driver", e.config.Driver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.streampay", "streampay"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("streampay: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("streampay: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.DefaultFeeRateBps == 0 {
		cfg.DefaultFeeRateBps = defaults.DefaultFeeRateBps
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.AutoInitRegistry {
		yamlConfig.AutoInitRegistry = true
	}

	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.DefaultFeeRateBps == 0 {
		yamlConfig.DefaultFeeRateBps = programmaticConfig.DefaultFeeRateBps
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if len(yamlConfig.InitialAssets) == 0 {
		yamlConfig.InitialAssets = programmaticConfig.InitialAssets
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
