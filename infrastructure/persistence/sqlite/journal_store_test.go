package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"graphengine/application/ports"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/events"
	"graphengine/infrastructure/persistence/sqlite"
	"graphengine/pkg/extensions"
)

func openStore(t *testing.T) *sqlite.JournalStore {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewJournalStore(db, nil)
}

func record(graphID string, at time.Time) ports.BatchRecord {
	return ports.BatchRecord{
		GraphID:      graphID,
		Graph:        ports.GraphRef{AssetPath: "/Game/BP_Door", GraphName: "EventGraph"},
		Domain:       "visual_script",
		Operation:    "batch",
		Success:      true,
		CreatedNodes: map[string]string{"a": "guid-a"},
		Fingerprint:  "abc123",
		Request:      json.RawMessage(`{"graph_ref":{"asset_path":"/Game/BP_Door"}}`),
		Events: []events.DomainEvent{
			events.NewNodeAdded(graphID, valueobjects.NewNodeID(), "PrintString_0", "PrintString", at),
			events.NewBatchApplied(graphID, "/Game/BP_Door", "EventGraph", 1, 0, []string{"guid-a"}, at),
		},
		AppliedAt: at,
	}
}

func TestOpen_Migrations(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	evolution, err := sqlite.Migrations(db)
	require.NoError(t, err)

	version, err := evolution.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	history, err := evolution.GetHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "batches and their events", history[0].Description)
	assert.NotEmpty(t, history[0].Checksum)

	require.NoError(t, evolution.Migrate(ctx, 2))
	version, err = evolution.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	assert.Error(t, evolution.Migrate(ctx, 1), "2->1 has no Down step")
	require.NoError(t, evolution.Migrate(ctx, 3))
}

func TestJournalStore_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := record("graph-1", base)
	first.ID = "batch-1"
	second := record("graph-1", base.Add(time.Second))
	second.ID = "batch-2"
	second.Success = false
	second.ErrorCount = 2
	second.CreatedNodes = nil
	other := record("graph-2", base)

	for _, r := range []ports.BatchRecord{first, second, other} {
		require.NoError(t, store.Append(ctx, r))
	}

	recent, err := store.Recent(ctx, "graph-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "batch-2", recent[0].ID)
	assert.False(t, recent[0].Success)
	assert.Equal(t, 2, recent[0].ErrorCount)
	assert.Nil(t, recent[0].CreatedNodes)
	assert.Equal(t, "batch-1", recent[1].ID)
	assert.Equal(t, map[string]string{"a": "guid-a"}, recent[1].CreatedNodes)
	assert.Equal(t, "/Game/BP_Door:EventGraph", recent[1].Graph.String())
	assert.True(t, recent[1].AppliedAt.Equal(base))
	assert.JSONEq(t, `{"graph_ref":{"asset_path":"/Game/BP_Door"}}`, string(recent[1].Request))

	limited, err := store.Recent(ctx, "graph-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	evts, err := store.Events(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "node.added", evts[0].GetEventType())
	assert.Equal(t, "batch.applied", evts[1].GetEventType())
	assert.Equal(t, sqlite.PublishStatusPending, evts[0].Status)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(evts[0].Payload, &payload))
	assert.Equal(t, "PrintString_0", payload["node_name"])

	encoded, err := json.Marshal(evts[1])
	require.NoError(t, err)
	assert.JSONEq(t, string(evts[1].Payload), string(encoded))
}

func TestJournalStore_DuplicateBatchIsRejected(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	r := record("graph-1", time.Now().UTC())
	r.ID = "dup"
	require.NoError(t, store.Append(ctx, r))
	assert.Error(t, store.Append(ctx, r))

	evts, err := store.Events(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, evts, 2, "the failed append leaves no events behind")
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return m.Called(ctx, evts).Error(0)
}

func ofType(eventType string) interface{} {
	return mock.MatchedBy(func(e events.DomainEvent) bool { return e.GetEventType() == eventType })
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Append(ctx, record("graph-1", time.Now().UTC())))

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, ofType("node.added")).Return(nil)
	publisher.On("Publish", mock.Anything, ofType("batch.applied")).Return(errors.New("throttled"))

	outbox := sqlite.NewOutboxProcessor(store, publisher, nil, sqlite.WithOutboxMaxRetries(2))

	published, failed, err := outbox.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, failed)

	pending, err := store.PendingEvents(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "batch.applied", pending[0].EventType)
	assert.Equal(t, sqlite.PublishStatusFailed, pending[0].Status)
	assert.Equal(t, 1, pending[0].PublishAttempts)
	assert.Equal(t, "throttled", pending[0].LastError)

	published, failed, err = outbox.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Equal(t, 1, failed)

	pending, err = store.PendingEvents(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, pending, "events stop retrying after max attempts")

	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestJournalPlugin(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	plugin := sqlite.NewJournalPlugin(store, nil, nil)

	hooks := extensions.NewHookManager()
	manager := extensions.NewPluginManager(hooks)
	require.NoError(t, manager.Register(ctx, plugin))
	assert.Equal(t, 1, hooks.Count(extensions.HookAfterBatch))

	r := record("graph-9", time.Now().UTC())
	require.NoError(t, hooks.Execute(ctx, extensions.HookAfterBatch, r))
	assert.Error(t, hooks.Execute(ctx, extensions.HookAfterBatch, "not a record"))

	recent, err := store.Recent(ctx, "graph-9", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.NotEmpty(t, recent[0].ID)

	require.NoError(t, manager.Shutdown(ctx))
}
