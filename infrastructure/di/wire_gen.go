//go:build !wireinject
// +build !wireinject

// InitializeContainer is written out by hand in the shape wire produces for
// the SuperSet in wire.go. Keep the two in step when a provider changes.

package di

import (
	"context"

	"graphengine/infrastructure/config"
)

// Injectors from wire.go:

// InitializeContainer creates a fully wired container. The returned cleanup
// releases everything in reverse order of construction.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	metrics := ProvideMetrics(cfg)
	tracer, cleanup, err := ProvideTracer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := ProvideRegistry(logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	library, err := ProvideLibrary(cfg, registry, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	mainThread, cleanup2 := ProvideMainThread(cfg, logger)
	compiler := ProvideCompiler(logger)
	pipeline := ProvidePipeline(registry, compiler, tracer, metrics, logger)
	hookManager := ProvideHookManager()
	db, cleanup3, err := ProvideJournalDB(ctx, cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	journalStore := ProvideJournalStore(db, logger)
	client, err := ProvideEventBridgeClient(ctx, cfg)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	publisher := ProvideEventPublisher(client, cfg, logger)
	pluginManager, cleanup4, err := ProvidePluginManager(ctx, cfg, hookManager, journalStore, publisher, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	router, err := ProvideCommandRouter(library, registry, mainThread, hookManager, pipeline, compiler, tracer, metrics, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	queryBus, err := ProvideQueryBus(library, registry, mainThread, journalStore, logger)
	if err != nil {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	ipRateLimiter := ProvideRateLimiter(cfg)
	restRouter := ProvideHTTPRouter(cfg, router, queryBus, metrics, tracer, ipRateLimiter, db, logger)
	container := &Container{
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		Library:    library,
		MainThread: mainThread,
		Router:     router,
		QueryBus:   queryBus,
		Plugins:    pluginManager,
		Journal:    journalStore,
		JournalDB:  db,
		Metrics:    metrics,
		Tracer:     tracer,
		HTTP:       restRouter,
	}
	return container, func() {
		cleanup4()
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
