package di

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"graphengine/application/batch"
	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/application/queries"
	querybus "graphengine/application/queries/bus"
	"graphengine/application/router"
	"graphengine/infrastructure/config"
	"graphengine/infrastructure/host"
	"graphengine/infrastructure/messaging/eventbridge"
	"graphengine/infrastructure/persistence/sqlite"
	"graphengine/interfaces/http/rest"
	"graphengine/pkg/extensions"
	"graphengine/pkg/observability"
	"graphengine/pkg/ratelimit"
)

// ProvideConfig loads the configuration from the file overlay and environment
func ProvideConfig() (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

// ProvideMetrics creates the metric set, or nil when metrics are off
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(strings.ReplaceAll(cfg.ServiceName, "-", "_"))
}

// ProvideTracer installs the OTLP exporter when tracing is on. The cleanup
// flushes pending spans.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.Tracer, func(), error) {
	tracer, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRate:  1,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tracer, cleanup, nil
}

// ProvideRegistry creates the node factory registry
func ProvideRegistry(logger *zap.Logger) (*factories.Registry, error) {
	return factories.NewDefaultRegistry(logger)
}

// ProvideLibrary creates the host asset library, seeded when configured
func ProvideLibrary(cfg *config.Config, registry *factories.Registry, logger *zap.Logger) (*host.Library, error) {
	lib := host.NewLibrary(cfg.Domain, logger)
	if cfg.SeedDemoAssets {
		if err := lib.Seed(registry); err != nil {
			return nil, err
		}
		logger.Info("Seeded demo assets", zap.Int("assets", len(lib.Assets())))
	}
	return lib, nil
}

// ProvideMainThread starts the host's main thread
func ProvideMainThread(cfg *config.Config, logger *zap.Logger) (*host.MainThread, func()) {
	thread := host.NewMainThread(cfg.MainThreadQueue, logger)
	return thread, thread.Close
}

// ProvideCompiler creates the reference compiler
func ProvideCompiler(logger *zap.Logger) *host.Compiler {
	return host.NewCompiler(logger)
}

// ProvidePipeline creates the batch pipeline
func ProvidePipeline(
	registry *factories.Registry,
	compiler *host.Compiler,
	tracer *observability.Tracer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *batch.Pipeline {
	return batch.NewPipeline(registry, logger,
		batch.WithCompiler(compiler),
		batch.WithTracer(tracer),
		batch.WithMetrics(metrics),
	)
}

// ProvideHookManager creates the hook manager plugins attach to
func ProvideHookManager() *extensions.HookManager {
	return extensions.NewHookManager()
}

// ProvideJournalDB opens the journal database, or returns nil when the
// journal is off
func ProvideJournalDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, func(), error) {
	if cfg.JournalPath == "" {
		return nil, func() {}, nil
	}
	db, err := sqlite.Open(ctx, cfg.JournalPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Opened batch journal", zap.String("path", cfg.JournalPath))
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close batch journal", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideJournalStore wraps the journal database, or returns nil
func ProvideJournalStore(db *sql.DB, logger *zap.Logger) *sqlite.JournalStore {
	if db == nil {
		return nil
	}
	return sqlite.NewJournalStore(db, logger)
}

// ProvideEventBridgeClient creates an EventBridge client, or returns nil
// when publishing is off
func ProvideEventBridgeClient(ctx context.Context, cfg *config.Config) (*awseventbridge.Client, error) {
	if !cfg.EnablePublishing {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return awseventbridge.NewFromConfig(awsCfg, func(o *awseventbridge.Options) {
		if cfg.EventBridgeEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.EventBridgeEndpoint)
		}
	}), nil
}

// ProvideEventPublisher creates the EventBridge publisher, or returns nil
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) *eventbridge.Publisher {
	if client == nil {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvidePluginManager registers the after-batch plugins. With a journal,
// events reach EventBridge through its outbox; without one they are
// published straight from the hook.
func ProvidePluginManager(
	ctx context.Context,
	cfg *config.Config,
	hooks *extensions.HookManager,
	store *sqlite.JournalStore,
	publisher *eventbridge.Publisher,
	logger *zap.Logger,
) (*extensions.PluginManager, func(), error) {
	plugins := extensions.NewPluginManager(hooks)

	var plugin extensions.Plugin
	switch {
	case store != nil:
		var outbox *sqlite.OutboxProcessor
		if publisher != nil {
			outbox = sqlite.NewOutboxProcessor(store, publisher, logger,
				sqlite.WithOutboxInterval(cfg.OutboxInterval),
				sqlite.WithOutboxBatchSize(cfg.OutboxBatchSize),
				sqlite.WithOutboxMaxRetries(cfg.OutboxMaxRetries),
			)
		}
		plugin = sqlite.NewJournalPlugin(store, outbox, logger)
	case publisher != nil:
		plugin = eventbridge.NewPlugin(publisher)
	}

	if plugin != nil {
		if err := plugins.Register(ctx, plugin); err != nil {
			return nil, nil, err
		}
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := plugins.Shutdown(ctx); err != nil {
			logger.Warn("Plugin shutdown failed", zap.Error(err))
		}
	}
	return plugins, cleanup, nil
}

// ProvideCommandRouter creates the operation router with every handler wired
func ProvideCommandRouter(
	lib *host.Library,
	registry *factories.Registry,
	thread *host.MainThread,
	hooks *extensions.HookManager,
	pipeline *batch.Pipeline,
	compiler *host.Compiler,
	tracer *observability.Tracer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*router.Router, error) {
	r := router.NewRouter(lib, registry, logger,
		router.WithMainThread(thread),
		router.WithHooks(hooks),
		router.WithMiddleware(
			router.LoggingMiddleware(logger),
			router.TracingMiddleware(tracer),
			router.MetricsMiddleware(metrics),
			router.ValidationMiddleware(),
		),
	)
	if err := router.NewHandlers(pipeline, compiler).Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ProvideQueryBus creates the query bus with every handler wired
func ProvideQueryBus(
	lib *host.Library,
	registry *factories.Registry,
	thread *host.MainThread,
	store *sqlite.JournalStore,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	var journal ports.JournalStore
	if store != nil {
		journal = store
	}

	qb := querybus.NewQueryBus()
	if err := queries.NewHandlers(lib, lib, registry, thread, journal, logger).Register(qb); err != nil {
		return nil, err
	}
	return qb, nil
}

// ProvideRateLimiter creates the per-IP limiter, or returns nil when the
// rate limit is zero
func ProvideRateLimiter(cfg *config.Config) *ratelimit.IPRateLimiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return ratelimit.NewIPRateLimiter(ratelimit.NewTokenBucketLimiter(cfg.RateLimit, cfg.RateBurst))
}

// ProvideHTTPRouter creates the REST adapter
func ProvideHTTPRouter(
	cfg *config.Config,
	commands *router.Router,
	qb *querybus.QueryBus,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	limiter *ratelimit.IPRateLimiter,
	db *sql.DB,
	logger *zap.Logger,
) *rest.Router {
	rt := rest.NewRouter(commands, qb, metrics, tracer, limiter, rest.Options{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          cfg.IsDevelopment(),
	}, logger)
	if db != nil {
		rt.AddReadinessCheck("journal", db.PingContext)
	}
	return rt
}
