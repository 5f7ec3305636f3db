package extensions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookManager_ExecuteRunsEveryHook(t *testing.T) {
	m := NewHookManager()
	var calls []int
	m.Register(HookAfterBatch, func(ctx context.Context, data interface{}) error {
		calls = append(calls, 1)
		return errors.New("journal unavailable")
	})
	m.Register(HookAfterBatch, func(ctx context.Context, data interface{}) error {
		calls = append(calls, 2)
		assert.Equal(t, "payload", data)
		return nil
	})

	err := m.Execute(context.Background(), HookAfterBatch, "payload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal unavailable")
	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, 2, m.Count(HookAfterBatch))

	assert.NoError(t, m.Execute(context.Background(), HookRouteFailed, nil))

	m.Clear(HookAfterBatch)
	assert.Zero(t, m.Count(HookAfterBatch))

	var nilManager *HookManager
	assert.NoError(t, nilManager.Execute(context.Background(), HookAfterBatch, nil))
}

type stubPlugin struct {
	name    string
	initErr error
	started bool
	stopped bool
}

func (p *stubPlugin) Name() string { return p.name }

func (p *stubPlugin) Initialize(ctx context.Context) error {
	p.started = p.initErr == nil
	return p.initErr
}

func (p *stubPlugin) RegisterHooks(m *HookManager) error {
	m.Register(HookAfterBatch, func(ctx context.Context, data interface{}) error { return nil })
	return nil
}

func (p *stubPlugin) Shutdown(ctx context.Context) error {
	p.stopped = true
	return nil
}

func TestPluginManager(t *testing.T) {
	hooks := NewHookManager()
	m := NewPluginManager(hooks)
	ctx := context.Background()

	journal := &stubPlugin{name: "journal"}
	events := &stubPlugin{name: "events"}
	require.NoError(t, m.Register(ctx, journal))
	require.NoError(t, m.Register(ctx, events))
	assert.Error(t, m.Register(ctx, &stubPlugin{name: "journal"}))
	assert.Error(t, m.Register(ctx, &stubPlugin{name: "broken", initErr: errors.New("no db")}))

	assert.True(t, journal.started)
	assert.Equal(t, []string{"events", "journal"}, m.ListPlugins())
	assert.Equal(t, 2, hooks.Count(HookAfterBatch))

	p, ok := m.GetPlugin("journal")
	require.True(t, ok)
	assert.Equal(t, journal, p)

	require.NoError(t, m.Shutdown(ctx))
	assert.True(t, journal.stopped)
	assert.True(t, events.stopped)
	assert.Empty(t, m.ListPlugins())
}
