// Package providers contains dependency injection providers for the Rewire server.
package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(_ do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Rewire server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"remote_backend", cfg.Remote.Backend,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

// ProvideClock provides the wall clock.
func ProvideClock(_ do.Injector) (clock.Clock, error) {
	return clock.System{}, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
