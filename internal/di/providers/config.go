// Package providers contains dependency injection providers for the restalign API server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
)

// ConfigProvider returns a provider that loads the configuration from args.
func ConfigProvider(name string, args []string) func(do.Injector) (*config.Config, error) {
	return func(do.Injector) (*config.Config, error) {
		cfg, _, err := config.LoadConfig(name, args)
		return cfg, err
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting restalign API",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"store_path", cfg.Store.Path,
	)

	return log, nil
}
