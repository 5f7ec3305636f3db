// Package rest is the HTTP adapter of the engine. Commands go to the
// operation router; reads go through the query bus.
package rest

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	commandrouter "graphengine/application/router"
	querybus "graphengine/application/queries/bus"
	"graphengine/interfaces/http/rest/handlers"
	"graphengine/interfaces/http/rest/middleware"
	"graphengine/pkg/common"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/observability"
	"graphengine/pkg/ratelimit"
)

// APIVersion is reported in the X-API-Version header
const APIVersion = "v1"

// Options configures the HTTP adapter
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Debug          bool
}

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	commands *commandrouter.Router
	queries  *querybus.QueryBus
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	limiter  *ratelimit.IPRateLimiter
	checks   map[string]ReadinessCheck
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new router instance. metrics, tracer and limiter may
// be nil.
func NewRouter(
	commands *commandrouter.Router,
	queries *querybus.QueryBus,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	limiter *ratelimit.IPRateLimiter,
	opts Options,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		commands: commands,
		queries:  queries,
		metrics:  metrics,
		tracer:   tracer,
		limiter:  limiter,
		checks:   make(map[string]ReadinessCheck),
		opts:     opts,
		logger:   logger,
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (rt *Router) AddReadinessCheck(name string, check ReadinessCheck) {
	rt.checks[name] = check
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.RequestContext)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(versionMiddleware)

	if rt.opts.EnableCORS {
		origins := rt.opts.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", middleware.DomainHeader},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Tracing(rt.tracer))
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, rt.logger))
		}
		if rt.opts.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.opts.RequestTimeout))
		}

		commandHandler := handlers.NewCommandHandler(rt.commands, errs, rt.opts.MaxBodyBytes, rt.logger)
		queryHandler := handlers.NewQueryHandler(rt.queries, errs, rt.logger)

		r.Get("/operations", commandHandler.ListOperations)
		r.Post("/graphs/commands/{operation}", commandHandler.Execute)

		r.Get("/assets", queryHandler.ListAssets)
		r.Get("/graphs", queryHandler.GetGraph)
		r.Get("/graphs/batches", queryHandler.ListBatches)
		r.Get("/domains/{domain}/node-types", queryHandler.ListNodeTypes)
		r.Get("/domains/{domain}/node-types/{type}", queryHandler.GetNodeType)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck runs every registered check
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	names := make([]string, 0, len(rt.checks))
	for name := range rt.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := rt.checks[name](req.Context()); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	common.WriteJSON(w, status, body)
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", APIVersion)
		next.ServeHTTP(w, r)
	})
}
