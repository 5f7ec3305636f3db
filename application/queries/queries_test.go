package queries_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/application/queries"
	"graphengine/application/queries/bus"
	"graphengine/infrastructure/host"
	pkgerrors "graphengine/pkg/errors"
)

type stubJournal struct {
	graphID string
	records []ports.BatchRecord
}

func (s *stubJournal) Append(ctx context.Context, record ports.BatchRecord) error { return nil }

func (s *stubJournal) Recent(ctx context.Context, graphID string, limit int) ([]ports.BatchRecord, error) {
	s.graphID = graphID
	return s.records, nil
}

func newBus(t *testing.T, journal ports.JournalStore) *bus.QueryBus {
	t.Helper()
	registry, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	lib := host.NewLibrary(nil, nil)
	require.NoError(t, lib.Seed(registry))

	qb := bus.NewQueryBus()
	require.NoError(t, queries.NewHandlers(lib, lib, registry, nil, journal, nil).Register(qb))
	return qb
}

func TestListAssets(t *testing.T) {
	qb := newBus(t, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     queries.ListAssetsQuery
		wantPaths []string
		wantTotal int
	}{
		{
			name:      "first page",
			query:     queries.ListAssetsQuery{Page: 1, PageSize: 2},
			wantPaths: []string{host.DemoStateMachine, host.DemoBlueprint},
			wantTotal: 4,
		},
		{
			name:      "past the end",
			query:     queries.ListAssetsQuery{Page: 3, PageSize: 2},
			wantPaths: []string{},
			wantTotal: 4,
		},
		{
			name:      "by domain",
			query:     queries.ListAssetsQuery{Page: 1, PageSize: 10, Domain: "material"},
			wantPaths: []string{host.DemoMaterial},
			wantTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := qb.Ask(ctx, tt.query)
			require.NoError(t, err)
			page := result.(queries.AssetPage)
			assert.Equal(t, tt.wantTotal, page.Total)

			paths := make([]string, 0, len(page.Assets))
			for _, a := range page.Assets {
				paths = append(paths, a.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestQueries_Validation(t *testing.T) {
	qb := newBus(t, nil)
	ctx := context.Background()

	for name, q := range map[string]bus.Query{
		"page size zero":  queries.ListAssetsQuery{Page: 1},
		"page size large": queries.ListAssetsQuery{Page: 1, PageSize: 1000},
		"unknown domain":  queries.ListAssetsQuery{Page: 1, PageSize: 5, Domain: "audio"},
		"graph without asset": queries.GetGraphQuery{
			Ref: ports.GraphRef{GraphName: "EventGraph"},
		},
		"type without name": queries.GetNodeTypeQuery{Domain: "material"},
		"batches no limit":  queries.ListBatchesQuery{Ref: ports.GraphRef{AssetPath: host.DemoMaterial}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := qb.Ask(ctx, q)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindInvalidRequest), err.Error())
		})
	}
}

func TestGetGraph(t *testing.T) {
	qb := newBus(t, nil)

	result, err := qb.Ask(context.Background(), queries.GetGraphQuery{Ref: ports.GraphRef{AssetPath: host.DemoMaterial}})
	require.NoError(t, err)
	view := result.(queries.GraphView)

	assert.Equal(t, "material", view.Domain)
	assert.Equal(t, "MaterialGraph", view.Name)
	assert.Len(t, view.Nodes, 2)
	assert.NotEmpty(t, view.Fingerprint)
	require.Len(t, view.Connections, 1)
	assert.Equal(t, "Output", view.Connections[0].FromPin)
	assert.Equal(t, "BaseColor", view.Connections[0].ToPin)

	_, err = qb.Ask(context.Background(), queries.GetGraphQuery{Ref: ports.GraphRef{AssetPath: "/Game/Missing"}})
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindGraphNotFound))
}

func TestNodeTypes(t *testing.T) {
	qb := newBus(t, nil)
	ctx := context.Background()

	result, err := qb.Ask(ctx, queries.ListNodeTypesQuery{Domain: "material"})
	require.NoError(t, err)
	types := result.([]factories.TypeInfo)
	assert.NotEmpty(t, types)

	result, err = qb.Ask(ctx, queries.GetNodeTypeQuery{Domain: "anim_state", TypeName: "State"})
	require.NoError(t, err)
	assert.Contains(t, result.(factories.TypeInfo).Required, "name")

	_, err = qb.Ask(ctx, queries.GetNodeTypeQuery{Domain: "material", TypeName: "NoSuchExpression"})
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindFactoryUnsupportedType))

	_, err = qb.Ask(ctx, queries.ListNodeTypesQuery{Domain: "audio"})
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindDomainUnsupported))
}

func TestListBatches(t *testing.T) {
	ref := ports.GraphRef{AssetPath: host.DemoBlueprint}

	_, err := newBus(t, nil).Ask(context.Background(), queries.ListBatchesQuery{Ref: ref, Limit: 5})
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindInvalidRequest), "journal disabled")

	journal := &stubJournal{records: []ports.BatchRecord{{ID: "b1", Operation: "batch"}}}
	qb := newBus(t, journal)

	result, err := qb.Ask(context.Background(), queries.ListBatchesQuery{Ref: ref, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, journal.records, result)
	assert.NotEmpty(t, journal.graphID)

	view, err := qb.Ask(context.Background(), queries.GetGraphQuery{Ref: ref})
	require.NoError(t, err)
	assert.Equal(t, view.(queries.GraphView).ID, journal.graphID)
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "ListAssetsQuery", bus.QueryName(queries.ListAssetsQuery{}))
	assert.Equal(t, "GetGraphQuery", bus.QueryName(&queries.GetGraphQuery{}))
}
