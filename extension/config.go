package extension

import "time"

// Config holds the Tollgate extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tollgate" or "tollgate" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// FeeRate is the protocol fee percentage taken from every payment,
	// 0 to 100 (default: 5). A zero value falls back to the default.
	FeeRate int64 `json:"fee_rate" mapstructure:"fee_rate" yaml:"fee_rate"`

	// HistoryBatchSize is the number of history entries to buffer before
	// flushing to the store (default: 100).
	HistoryBatchSize int `json:"history_batch_size" mapstructure:"history_batch_size" yaml:"history_batch_size"`

	// HistoryFlushInterval is how frequently the history buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	HistoryFlushInterval time.Duration `json:"history_flush_interval" mapstructure:"history_flush_interval" yaml:"history_flush_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FeeRate:              5,
		HistoryBatchSize:     100,
		HistoryFlushInterval: 5 * time.Second,
	}
}
