package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphengine/application/batch"
	"graphengine/application/factories"
	"graphengine/application/queries"
	querybus "graphengine/application/queries/bus"
	"graphengine/application/router"
	"graphengine/infrastructure/host"
	"graphengine/interfaces/http/rest"
	"graphengine/pkg/observability"
	"graphengine/pkg/ratelimit"
)

type server struct {
	handler http.Handler
	rest    *rest.Router
}

func newServer(t *testing.T, limiter *ratelimit.IPRateLimiter, opts rest.Options) *server {
	t.Helper()
	logger := zap.NewNop()

	registry, err := factories.NewDefaultRegistry(logger)
	require.NoError(t, err)
	lib := host.NewLibrary(nil, logger)
	require.NoError(t, lib.Seed(registry))
	thread := host.NewMainThread(8, logger)
	t.Cleanup(thread.Close)
	compiler := host.NewCompiler(logger)

	commands := router.NewRouter(lib, registry, logger, router.WithMainThread(thread),
		router.WithMiddleware(router.ValidationMiddleware()))
	pipeline := batch.NewPipeline(registry, logger, batch.WithCompiler(compiler))
	require.NoError(t, router.NewHandlers(pipeline, compiler).Register(commands))

	qb := querybus.NewQueryBus()
	require.NoError(t, queries.NewHandlers(lib, lib, registry, thread, nil, logger).Register(qb))

	rt := rest.NewRouter(commands, qb, observability.NewMetrics("graphengine"), nil, limiter, opts, logger)
	return &server{handler: rt.Setup(), rest: rt}
}

func (s *server) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

const blueprintRef = `"graph_ref": {"asset_path": "` + host.DemoBlueprint + `"}`

func TestRouter_Health(t *testing.T) {
	s := newServer(t, nil, rest.Options{})

	w := s.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get("X-API-Version"))

	s.rest.AddReadinessCheck("journal", func(context.Context) error { return nil })
	w = s.do("GET", "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.rest.AddReadinessCheck("bus", func(context.Context) error { return errors.New("unreachable") })
	w = s.do("GET", "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "unreachable", body["checks"].(map[string]interface{})["bus"])
}

func TestRouter_Commands(t *testing.T) {
	s := newServer(t, nil, rest.Options{MaxBodyBytes: 1024})

	tests := []struct {
		name       string
		target     string
		body       string
		header     []string
		wantStatus int
		wantOK     bool
		wantKind   string
	}{
		{
			name:       "add node",
			target:     "/api/v1/graphs/commands/add_node",
			body:       `{` + blueprintRef + `, "type": "Branch"}`,
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "domain hint matches",
			target:     "/api/v1/graphs/commands/compile_graph?domain=visual_script",
			body:       `{` + blueprintRef + `}`,
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "domain hint header mismatch",
			target:     "/api/v1/graphs/commands/add_node",
			body:       `{` + blueprintRef + `, "type": "Branch"}`,
			header:     []string{"X-Graph-Domain", "material"},
			wantStatus: http.StatusBadRequest,
			wantKind:   "DomainMismatch",
		},
		{
			name:       "missing graph",
			target:     "/api/v1/graphs/commands/remove_node",
			body:       `{"graph_ref": {"asset_path": "/Game/Missing"}, "ref": "x"}`,
			wantStatus: http.StatusNotFound,
			wantKind:   "GraphNotFound",
		},
		{
			name:       "unknown operation",
			target:     "/api/v1/graphs/commands/explode",
			body:       `{` + blueprintRef + `}`,
			wantStatus: http.StatusNotImplemented,
			wantKind:   "UnroutedOperation",
		},
		{
			name:       "empty body",
			target:     "/api/v1/graphs/commands/add_node",
			wantStatus: http.StatusBadRequest,
			wantKind:   "InvalidRequest",
		},
		{
			name:       "batch with a failed operation still answers 200",
			target:     "/api/v1/graphs/commands/batch",
			body:       `{` + blueprintRef + `, "nodes": [{"ref": "a", "type": "Branch"}, {"ref": "b", "type": "Nope"}]}`,
			wantStatus: http.StatusOK,
			wantKind:   "FactoryUnsupportedType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("POST", tt.target, tt.body, tt.header...)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

			body := decode(t, w)
			assert.Equal(t, tt.wantOK, body["success"])
			if tt.wantKind != "" {
				require.NotNil(t, body["error"])
				assert.Equal(t, tt.wantKind, body["error"].(map[string]interface{})["kind"])
			} else {
				assert.Nil(t, body["error"])
				assert.Equal(t, "visual_script", body["domain"])
			}
		})
	}

	t.Run("payload too large", func(t *testing.T) {
		w := s.do("POST", "/api/v1/graphs/commands/batch", `{"x": "`+strings.Repeat("a", 2048)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "InvalidRequest", decode(t, w)["kind"])
	})
}

func TestRouter_Queries(t *testing.T) {
	s := newServer(t, nil, rest.Options{})

	w := s.do("GET", "/api/v1/assets?page_size=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], 3)
	pagination := body["meta"].(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, float64(4), pagination["total"])
	assert.Equal(t, true, pagination["has_next"])

	w = s.do("GET", "/api/v1/assets?domain=particle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = s.do("GET", "/api/v1/graphs?asset_path="+host.DemoStateMachine, "")
	require.Equal(t, http.StatusOK, w.Code)
	graph := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "anim_state", graph["domain"])
	assert.Len(t, graph["connections"], 1)

	w = s.do("GET", "/api/v1/graphs?asset_path=/Game/Missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "GraphNotFound", decode(t, w)["kind"])

	w = s.do("GET", "/api/v1/graphs/batches?asset_path="+host.DemoMaterial, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "journal is not wired")

	w = s.do("GET", "/api/v1/domains/material/node-types", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["data"])

	w = s.do("GET", "/api/v1/domains/anim_state/node-types/State", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "State", decode(t, w)["data"].(map[string]interface{})["name"])

	w = s.do("GET", "/api/v1/domains/audio/node-types", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do("GET", "/api/v1/operations", "")
	require.Equal(t, http.StatusOK, w.Code)
	ops := decode(t, w)["data"].([]interface{})
	assert.Len(t, ops, len(router.Operations()))
	assert.Equal(t, true, ops[0].(map[string]interface{})["handled"])

	w = s.do("GET", "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MetricsAndCORS(t *testing.T) {
	s := newServer(t, nil, rest.Options{EnableCORS: true, AllowedOrigins: []string{"https://editor.example.com"}})

	s.do("GET", "/api/v1/operations", "")
	w := s.do("GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `graphengine_http_requests_total{method="GET",route="/api/v1/operations",status="200"} 1`)

	w = s.do("OPTIONS", "/api/v1/graphs/commands/batch", "",
		"Origin", "https://editor.example.com",
		"Access-Control-Request-Method", "POST")
	assert.Equal(t, "https://editor.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := ratelimit.NewIPRateLimiter(ratelimit.NewTokenBucketLimiter(0, 2))
	s := newServer(t, limiter, rest.Options{})

	assert.Equal(t, http.StatusOK, s.do("GET", "/api/v1/operations", "").Code)
	assert.Equal(t, http.StatusOK, s.do("GET", "/api/v1/operations", "").Code)
	w := s.do("GET", "/api/v1/operations", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.do("GET", "/health", "").Code, "health is not limited")
}
