package dashboard

import (
	"github.com/rs/zerolog"

	"github.com/timzifer/microdash/telemetry"
)

// Option configures the dashboard during construction.
type Option func(*settings) error

type settings struct {
	logger            zerolog.Logger
	customLogger      bool
	telemetry         telemetry.Collector
	telemetryProvided bool
	diagnostic        func(error)
}

// WithLogger provides a custom logger instance for the dashboard.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		cfg.customLogger = true
		return nil
	}
}

// WithDiagnostics installs a callback invoked for every runtime rejection:
// rejected commands, malformed frames and refused producer writes. The
// callback may run on transport goroutines and must be cheap.
func WithDiagnostics(fn func(error)) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.diagnostic = fn
		return nil
	}
}

// WithTelemetry injects a collector instance overriding the default
// configuration-based behaviour.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
		cfg.telemetryProvided = true
		return nil
	}
}
