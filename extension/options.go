package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/streampay"
	"github.com/xraph/streampay/plugin"
	"github.com/xraph/streampay/store"
)

// Option configures the streampay Forge extension.
type Option func(*Extension)

// WithStore sets the store for the streampay service.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from db. The backend is chosen by the
// configured Driver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithServiceOption passes a streampay.Option through to the underlying service.
func WithServiceOption(opt streampay.Option) Option {
	return func(e *Extension) {
		e.serviceOpts = append(e.serviceOpts, opt)
	}
}

// WithPlugin registers a streampay plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.serviceOpts = append(e.serviceOpts, streampay.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithAutoInitRegistry creates the registry on start when none exists.
func WithAutoInitRegistry() Option {
	return func(e *Extension) { e.config.AutoInitRegistry = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDefaultFeeRate sets the fee rate a new registry starts with.
func WithDefaultFeeRate(bps uint64) Option {
	return func(e *Extension) { e.config.DefaultFeeRateBps = bps }
}

// WithInitialAssets whitelists assets when the registry is created.
func WithInitialAssets(assets ...string) Option {
	return func(e *Extension) { e.config.InitialAssets = append(e.config.InitialAssets, assets...) }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithDriver selects the store backend used with WithGroveDB.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Driver = driver }
}
