package extension

import (
	"time"

	tollgate "github.com/xraph/tollgate"
	"github.com/xraph/tollgate/plugin"
	"github.com/xraph/tollgate/store"
)

// Option configures the Tollgate Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tollgate engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a tollgate.Option through to the underlying engine.
func WithEngineOption(opt tollgate.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tollgate plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tollgate.WithPlugin(p))
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

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithFeeRate sets the protocol fee percentage (0 to 100).
func WithFeeRate(rate int64) Option {
	return func(e *Extension) { e.config.FeeRate = rate }
}

// WithHistoryBatchSize sets the number of history entries to buffer before flushing.
func WithHistoryBatchSize(size int) Option {
	return func(e *Extension) { e.config.HistoryBatchSize = size }
}

// WithHistoryFlushInterval sets how frequently the history buffer is flushed.
func WithHistoryFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.HistoryFlushInterval = d }
}
