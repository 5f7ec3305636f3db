// Package di wires the engine's components together.
package di

import (
	"database/sql"

	"go.uber.org/zap"

	"graphengine/application/factories"
	querybus "graphengine/application/queries/bus"
	"graphengine/application/router"
	"graphengine/infrastructure/config"
	"graphengine/infrastructure/host"
	"graphengine/infrastructure/persistence/sqlite"
	"graphengine/interfaces/http/rest"
	"graphengine/pkg/extensions"
	"graphengine/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *factories.Registry
	Library    *host.Library
	MainThread *host.MainThread
	Router     *router.Router
	QueryBus   *querybus.QueryBus
	Plugins    *extensions.PluginManager
	Journal    *sqlite.JournalStore
	JournalDB  *sql.DB
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
	HTTP       *rest.Router
}
