// Package di provides dependency injection configuration for the restalign API server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/di/providers"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/pipeline"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments without the program name.
func NewContainer(name string, args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ConfigProvider(name, args))
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideEventManager)

	// Services
	do.Provide(injector, providers.ProvideRunner)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Configuration and store failures are
// returned rather than panicking.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.EventManagerHandle](injector)
	_ = do.MustInvoke[*pipeline.Runner](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
