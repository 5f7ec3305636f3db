package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphengine/application/batch"
	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/application/router"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/fixtures"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/extensions"
	"graphengine/pkg/observability"
)

const asset = "/Game/Test/BP_Door"

type stubResolver struct {
	graphs map[string]*aggregates.Graph
}

func (s *stubResolver) Resolve(ctx context.Context, ref ports.GraphRef) (*aggregates.Graph, error) {
	if g, ok := s.graphs[ref.AssetPath]; ok {
		return g, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.KindGraphNotFound, "no asset %s", ref.AssetPath)
}

type stubCompiler struct {
	report ports.CompileReport
}

func (s *stubCompiler) Compile(ctx context.Context, g *aggregates.Graph) (ports.CompileReport, error) {
	return s.report, nil
}

type countingThread struct {
	mu    sync.Mutex
	calls int
}

func (c *countingThread) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return fn(ctx)
}

type fixture struct {
	router   *router.Router
	graph    *aggregates.Graph
	hooks    *extensions.HookManager
	thread   *countingThread
	compiler *stubCompiler
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, opts ...router.Option) *fixture {
	t.Helper()
	reg, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		graph:    fixtures.NewGraph(valueobjects.DomainVisualScript),
		hooks:    extensions.NewHookManager(),
		thread:   &countingThread{},
		compiler: &stubCompiler{},
		metrics:  observability.NewMetrics("test"),
	}
	resolver := &stubResolver{graphs: map[string]*aggregates.Graph{asset: f.graph}}

	opts = append([]router.Option{
		router.WithMainThread(f.thread),
		router.WithHooks(f.hooks),
		router.WithMiddleware(
			router.LoggingMiddleware(zap.NewNop()),
			router.TracingMiddleware(nil),
			router.MetricsMiddleware(f.metrics),
			router.ValidationMiddleware(),
		),
	}, opts...)
	f.router = router.NewRouter(resolver, reg, zap.NewNop(), opts...)

	pipeline := batch.NewPipeline(reg, zap.NewNop(), batch.WithCompiler(f.compiler))
	require.NoError(t, router.NewHandlers(pipeline, f.compiler).Register(f.router))
	return f
}

func (f *fixture) route(op, payload string) router.Response {
	return f.router.Route(context.Background(), "", op, json.RawMessage(payload))
}

func TestRouter_EveryTableEntryIsWired(t *testing.T) {
	f := newFixture(t)

	var names []string
	for _, d := range router.Operations() {
		names = append(names, d.Name)
	}
	assert.Equal(t, names, f.router.Handled())

	for _, d := range router.Operations() {
		t.Run(d.Name, func(t *testing.T) {
			resp := f.route(d.Name, `{"graph_ref": {"asset_path": "/Game/Missing"}}`)
			require.NotNil(t, resp.Error)
			assert.Equal(t, pkgerrors.KindGraphNotFound, resp.Error.Kind, "a wired operation reaches graph resolution")
			assert.Equal(t, d.Name, resp.Operation)
		})
	}
}

func TestRouter_UnroutedOperations(t *testing.T) {
	reg, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	g := fixtures.NewGraph(valueobjects.DomainVisualScript)
	r := router.NewRouter(&stubResolver{graphs: map[string]*aggregates.Graph{asset: g}}, reg, zap.NewNop(),
		router.WithMiddleware(router.ValidationMiddleware()))
	pipeline := batch.NewPipeline(reg, zap.NewNop())
	handlers := router.NewHandlers(pipeline, nil)
	require.NoError(t, r.Handle(router.OpAddNode, handlers.AddNode))

	tests := []struct {
		name   string
		op     string
		reason string
	}{
		{"in the table without a handler", router.OpSplitPin, router.ReasonNoHandler},
		{"absent from the table", "explode_graph", router.ReasonUnknownOperation},
		{"empty name", "", router.ReasonUnknownOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Route(context.Background(), "", tt.op, json.RawMessage(`{}`))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, pkgerrors.KindUnroutedOperation, resp.Error.Kind)
			assert.Equal(t, tt.reason, resp.Error.Details["reason"])
			assert.Equal(t, 501, resp.Error.Code)
		})
	}

	t.Run("distinct from an unsupported node type", func(t *testing.T) {
		resp := r.Route(context.Background(), "", router.OpAddNode,
			json.RawMessage(`{"graph_ref": {"asset_path": "`+asset+`"}, "ref": "x", "type": "Teleporter"}`))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, pkgerrors.KindFactoryUnsupportedType, resp.Error.Kind)
		assert.Zero(t, g.NodeCount())
	})
}

func TestRouter_Handle(t *testing.T) {
	r := router.NewRouter(&stubResolver{}, nil, nil)
	noop := func(ctx context.Context, call *router.Call) (any, error) { return nil, nil }

	assert.Error(t, r.Handle("explode_graph", noop))
	assert.Error(t, r.Handle(router.OpBatch, nil))
	require.NoError(t, r.Handle(router.OpBatch, noop))
	assert.Error(t, r.Handle(router.OpBatch, noop))
	assert.Equal(t, []string{router.OpBatch}, r.Handled())
}

func TestRouter_FailsBeforeMutation(t *testing.T) {
	tests := []struct {
		name    string
		hint    string
		payload string
		kind    pkgerrors.Kind
	}{
		{"domain mismatch", "material", `{"graph_ref": {"asset_path": "` + asset + `"}, "nodes": [{"ref": "a", "type": "Event"}]}`, pkgerrors.KindDomainMismatch},
		{"unknown hint", "spreadsheet", `{"graph_ref": {"asset_path": "` + asset + `"}, "nodes": [{"ref": "a", "type": "Event"}]}`, pkgerrors.KindDomainUnsupported},
		{"missing graph", "", `{"graph_ref": {"asset_path": "/Game/Nope"}, "nodes": [{"ref": "a", "type": "Event"}]}`, pkgerrors.KindGraphNotFound},
		{"missing graph_ref", "", `{"nodes": [{"ref": "a", "type": "Event"}]}`, pkgerrors.KindInvalidRequest},
		{"not json", "", `{"graph_ref": `, pkgerrors.KindInvalidRequest},
		{"empty payload", "", ``, pkgerrors.KindInvalidRequest},
		{"unknown batch field", "", `{"graph_ref": {"asset_path": "` + asset + `"}, "nodez": []}`, pkgerrors.KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.router.Route(context.Background(), tt.hint, router.OpBatch, json.RawMessage(tt.payload))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.Zero(t, f.graph.NodeCount())
		})
	}

	t.Run("no factory for the domain", func(t *testing.T) {
		empty, err := factories.NewRegistry()
		require.NoError(t, err)
		g := fixtures.NewGraph(valueobjects.DomainMaterial)
		r := router.NewRouter(&stubResolver{graphs: map[string]*aggregates.Graph{asset: g}}, empty, zap.NewNop())
		require.NoError(t, r.Handle(router.OpBatch, func(ctx context.Context, call *router.Call) (any, error) {
			t.Fatal("handler must not run")
			return nil, nil
		}))

		resp := r.Route(context.Background(), "", router.OpBatch, json.RawMessage(`{"graph_ref": {"asset_path": "`+asset+`"}}`))
		require.NotNil(t, resp.Error)
		assert.Equal(t, pkgerrors.KindDomainUnsupported, resp.Error.Kind)
		assert.Equal(t, "material", resp.Domain)
	})
}

func TestRouter_BatchAndHooks(t *testing.T) {
	f := newFixture(t)
	var records []ports.BatchRecord
	f.hooks.Register(extensions.HookAfterBatch, func(ctx context.Context, data interface{}) error {
		records = append(records, data.(ports.BatchRecord))
		return nil
	})
	f.hooks.Register(extensions.HookAfterBatch, func(ctx context.Context, data interface{}) error {
		return errors.New("event bus down")
	})

	resp := f.router.Route(context.Background(), "blueprint", router.OpBatch, json.RawMessage(`{
		"graph_ref": {"asset_path": "`+asset+`"},
		"nodes": [{"ref": "a", "type": "Event"}, {"ref": "b", "type": "PrintCall"}],
		"connections": [{"source_ref": "a", "source_pin": "then", "target_ref": "b", "target_pin": "execute"}]
	}`))

	require.True(t, resp.Success, "error: %+v", resp.Error)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "visual_script", resp.Domain)
	res, ok := resp.Result.(*batch.Result)
	require.True(t, ok)
	assert.Len(t, res.CreatedNodeIDs, 2)
	assert.Equal(t, 1, f.thread.calls)

	require.Len(t, records, 1, "a failing hook does not fail the call")
	rec := records[0]
	assert.Equal(t, router.OpBatch, rec.Operation)
	assert.Equal(t, f.graph.ID().String(), rec.GraphID)
	assert.Equal(t, f.graph.Fingerprint(), rec.Fingerprint)
	assert.Equal(t, res.CreatedNodeIDs, rec.CreatedNodes)
	require.NotEmpty(t, rec.Events)
	assert.Equal(t, "batch.applied", rec.Events[len(rec.Events)-1].GetEventType())
	assert.Empty(t, f.graph.GetUncommittedEvents(), "events are handed to the hooks")

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Routes.WithLabelValues(router.OpBatch, "ok")))

	t.Run("no hooks for dry runs and rollbacks", func(t *testing.T) {
		for _, payload := range []string{
			`{"graph_ref": {"asset_path": "` + asset + `"}, "dry_run": true, "nodes": [{"ref": "c", "type": "Branch"}]}`,
			`{"graph_ref": {"asset_path": "` + asset + `"}, "on_error": "rollback", "nodes": [{"ref": "c", "type": "Branch"}, {"ref": "d", "type": "Nope"}]}`,
		} {
			f.route(router.OpBatch, payload)
		}
		assert.Len(t, records, 1)
		assert.Equal(t, 2, f.graph.NodeCount())
	})
}

func TestRouter_SingleOperations(t *testing.T) {
	f := newFixture(t)
	ref := `"graph_ref": {"asset_path": "` + asset + `"}`

	add := func(typ string) string {
		resp := f.route(router.OpAddNode, `{`+ref+`, "type": "`+typ+`"}`)
		require.True(t, resp.Success, "add %s: %+v", typ, resp.Error)
		return resp.Result.(*batch.Result).CreatedNodeIDs["node"]
	}
	event := add("Event")
	printer := add("PrintCall")
	branch := add("Branch")
	require.Equal(t, 3, f.graph.NodeCount())

	steps := []struct {
		op      string
		payload string
	}{
		{router.OpConnectPins, `"source_ref": "` + event + `", "source_pin": "then", "target_ref": "` + printer + `", "target_pin": "execute"`},
		{router.OpSetPinDefault, `"ref": "` + printer + `", "pin": "In String", "value": "Opened"`},
		{router.OpToggleNode, `"ref": "` + printer + `", "state": "disabled"`},
		{router.OpDisconnectPins, `"ref": "` + event + `", "pin": "then"`},
		{router.OpRemoveNode, `"ref": "` + branch + `"`},
	}
	for _, s := range steps {
		resp := f.route(s.op, `{`+ref+`, `+s.payload+`}`)
		require.True(t, resp.Success, "%s: %+v", s.op, resp.Error)
	}
	assert.Equal(t, 2, f.graph.NodeCount())
	assert.Zero(t, f.graph.ConnectionCount())

	t.Run("failed single operation rolls back", func(t *testing.T) {
		before := f.graph.Fingerprint()
		resp := f.route(router.OpConnectPins, `{`+ref+`, "source_ref": "`+event+`", "source_pin": "DoesNotExist", "target_ref": "`+printer+`", "target_pin": "execute"}`)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, pkgerrors.KindPinNotFound, resp.Error.Kind)
		assert.Equal(t, "connections", string(resp.Error.Details["phase"].(batch.Phase)))
		assert.Equal(t, before, f.graph.Fingerprint())
	})

	t.Run("unknown payload field", func(t *testing.T) {
		resp := f.route(router.OpRemoveNode, `{`+ref+`, "ref": "x", "force": true}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, pkgerrors.KindInvalidRequest, resp.Error.Kind)
	})

	t.Run("set_pin_default needs a value", func(t *testing.T) {
		resp := f.route(router.OpSetPinDefault, `{`+ref+`, "ref": "`+printer+`", "pin": "InString"}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, pkgerrors.KindInvalidRequest, resp.Error.Kind)
	})
}

func TestRouter_CompileGraph(t *testing.T) {
	f := newFixture(t)
	payload := `{"graph_ref": {"asset_path": "` + asset + `"}}`

	resp := f.route(router.OpCompileGraph, payload)
	assert.True(t, resp.Success)
	assert.IsType(t, ports.CompileReport{}, resp.Result)

	f.compiler.report = ports.CompileReport{Messages: []ports.CompileMessage{
		{Severity: ports.SeverityError, Message: "graph has no entry event"},
	}}
	resp = f.route(router.OpCompileGraph, payload)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, pkgerrors.KindCompileFailed, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "graph has no entry event")
}

func TestRouter_RecoversPanics(t *testing.T) {
	reg, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	g := fixtures.NewGraph(valueobjects.DomainVisualScript)
	r := router.NewRouter(&stubResolver{graphs: map[string]*aggregates.Graph{asset: g}}, reg, zap.NewNop())
	require.NoError(t, r.Handle(router.OpCompileGraph, func(ctx context.Context, call *router.Call) (any, error) {
		panic("compiler exploded")
	}))

	resp := r.Route(context.Background(), "", router.OpCompileGraph, json.RawMessage(`{"graph_ref": {"asset_path": "`+asset+`"}}`))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, pkgerrors.KindInternal, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "compiler exploded")
}

func TestOperations(t *testing.T) {
	ops := router.Operations()
	require.Len(t, ops, 11)
	for _, d := range ops {
		got, ok := router.Lookup(d.Name)
		require.True(t, ok)
		assert.Equal(t, d, got)
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, d.Name != router.OpCompileGraph, d.Mutating)
	}
}
