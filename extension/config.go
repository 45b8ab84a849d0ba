package extension

import "time"

// Config holds the streampay extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.streampay" or "streampay" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// AutoInitRegistry creates the registry on start when none exists.
	// The minted admin token is available from Extension.AdminToken.
	AutoInitRegistry bool `json:"auto_init_registry" mapstructure:"auto_init_registry" yaml:"auto_init_registry"`

	// DefaultFeeRateBps is the fee rate a new registry starts with
	// (default: 30).
	DefaultFeeRateBps uint64 `json:"default_fee_rate_bps" mapstructure:"default_fee_rate_bps" yaml:"default_fee_rate_bps"`

	// InitialAssets are whitelisted alongside the native asset when the
	// registry is created.
	InitialAssets []string `json:"initial_assets" mapstructure:"initial_assets" yaml:"initial_assets"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// Driver selects the store backend for the grove.DB passed with
	// WithGroveDB: "postgres", "sqlite" or "mongo". Without a grove.DB the
	// in-memory store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultFeeRateBps: 30,
		PluginTimeout:     5 * time.Second,
		Driver:            DriverPostgres,
	}
}
