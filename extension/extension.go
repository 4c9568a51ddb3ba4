// Package extension provides the Forge extension adapter for Tollgate.
//
// It implements the forge.Extension interface to integrate Tollgate
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tollgate" or "tollgate" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/store"
	"github.com/xraph/tollgate/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tollgate"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription billing engine with fee splitting"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tollgate as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tollgate.Engine
	store      store.Store
	engineOpts []tollgate.Option
}

// New creates a new Tollgate Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Tollgate engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tollgate.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the tollgate engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := tollgate.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tollgate.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tollgate: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
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
		return errors.New("tollgate: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs tollgate.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tollgate.Option {
	opts := make([]tollgate.Option, 0, len(e.engineOpts)+2)

	// Apply config-derived options.
	if e.config.FeeRate > 0 {
		opts = append(opts, tollgate.WithFeeRate(e.config.FeeRate))
	}

	if e.config.HistoryBatchSize > 0 || e.config.HistoryFlushInterval > 0 {
		batchSize := e.config.HistoryBatchSize
		flushInterval := e.config.HistoryFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.HistoryBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.HistoryFlushInterval
		}
		opts = append(opts, tollgate.WithHistoryConfig(batchSize, flushInterval))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tollgate: configuration is required but not found in config files; " +
				"ensure 'extensions.tollgate' or 'tollgate' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tollgate: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("fee_rate", e.config.FeeRate),
		forge.F("history_batch_size", e.config.HistoryBatchSize),
		forge.F("history_flush_interval", e.config.HistoryFlushInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tollgate" first (namespaced pattern).
	if cm.IsSet("extensions.tollgate") {
		if err := cm.Bind("extensions.tollgate", &cfg); err == nil {
			e.Logger().Debug("tollgate: loaded config from file",
				forge.F("key", "extensions.tollgate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tollgate: failed to bind extensions.tollgate config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tollgate" key.
	if cm.IsSet("tollgate") {
		if err := cm.Bind("tollgate", &cfg); err == nil {
			e.Logger().Debug("tollgate: loaded config from file",
				forge.F("key", "tollgate"),
			)
			return cfg, true
		}
		e.Logger().Warn("tollgate: failed to bind tollgate config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.FeeRate == 0 {
		cfg.FeeRate = defaults.FeeRate
	}
	if cfg.HistoryBatchSize == 0 {
		cfg.HistoryBatchSize = defaults.HistoryBatchSize
	}
	if cfg.HistoryFlushInterval == 0 {
		cfg.HistoryFlushInterval = defaults.HistoryFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.FeeRate == 0 && programmaticConfig.FeeRate != 0 {
		yamlConfig.FeeRate = programmaticConfig.FeeRate
	}
	if yamlConfig.HistoryBatchSize == 0 && programmaticConfig.HistoryBatchSize != 0 {
		yamlConfig.HistoryBatchSize = programmaticConfig.HistoryBatchSize
	}
	if yamlConfig.HistoryFlushInterval == 0 && programmaticConfig.HistoryFlushInterval != 0 {
		yamlConfig.HistoryFlushInterval = programmaticConfig.HistoryFlushInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
