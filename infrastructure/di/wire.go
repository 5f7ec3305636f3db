//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"graphengine/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideRegistry,
	ProvideLibrary,
	ProvideMainThread,
	ProvideCompiler,
	ProvidePipeline,
	ProvideHookManager,
	ProvideJournalDB,
	ProvideJournalStore,
	ProvideEventBridgeClient,
	ProvideEventPublisher,
	ProvidePluginManager,
	ProvideCommandRouter,
	ProvideQueryBus,
	ProvideRateLimiter,
	ProvideHTTPRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases everything in reverse order of construction.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
