package host_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/domain/core/valueobjects"
	"graphengine/infrastructure/host"
	pkgerrors "graphengine/pkg/errors"
)

func seededLibrary(t *testing.T) *host.Library {
	t.Helper()
	registry, err := factories.NewDefaultRegistry(zap.NewNop())
	require.NoError(t, err)
	lib := host.NewLibrary(nil, zap.NewNop())
	require.NoError(t, lib.Seed(registry))
	return lib
}

func TestLibrary_Resolve(t *testing.T) {
	lib := seededLibrary(t)
	_, err := lib.CreateGraph(host.DemoBlueprint, "Construction", valueobjects.DomainVisualScript)
	require.NoError(t, err)

	tests := []struct {
		name  string
		ref   ports.GraphRef
		graph string
		kind  pkgerrors.Kind
	}{
		{name: "empty name picks first graph", ref: ports.GraphRef{AssetPath: host.DemoBlueprint}, graph: "EventGraph"},
		{name: "named graph", ref: ports.GraphRef{AssetPath: host.DemoBlueprint, GraphName: "construction"}, graph: "Construction"},
		{name: "asset path is case-insensitive", ref: ports.GraphRef{AssetPath: "/game/demo/bp_door"}, graph: "EventGraph"},
		{name: "missing asset", ref: ports.GraphRef{AssetPath: "/Game/Nope"}, kind: pkgerrors.KindGraphNotFound},
		{name: "missing graph", ref: ports.GraphRef{AssetPath: host.DemoBlueprint, GraphName: "Nope"}, kind: pkgerrors.KindGraphNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := lib.Resolve(context.Background(), tt.ref)
			if tt.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, pkgerrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.graph, g.Name())
		})
	}
}

func TestLibrary_CreateGraph(t *testing.T) {
	lib := host.NewLibrary(nil, nil)

	_, err := lib.CreateGraph("/Game/M_Test", "MaterialGraph", valueobjects.DomainMaterial)
	require.NoError(t, err)

	_, err = lib.CreateGraph("/Game/M_Test", "materialgraph", valueobjects.DomainMaterial)
	assert.Equal(t, pkgerrors.KindInvalidRequest, pkgerrors.KindOf(err))

	_, err = lib.CreateGraph("/Game/X", "Graph", valueobjects.Domain("sound"))
	assert.Equal(t, pkgerrors.KindDomainUnsupported, pkgerrors.KindOf(err))

	assets := lib.Assets()
	require.Len(t, assets, 1)
	assert.Equal(t, "/Game/M_Test", assets[0].Path)
	require.Len(t, assets[0].Graphs, 1)
	assert.Equal(t, "material", assets[0].Graphs[0].Domain)

	assert.True(t, lib.Remove("/game/m_test"))
	assert.False(t, lib.Remove("/game/m_test"))
}

func TestLibrary_SeedStartsClean(t *testing.T) {
	lib := seededLibrary(t)
	compiler := host.NewCompiler(zap.NewNop())

	assets := lib.Assets()
	require.Len(t, assets, 4)

	for _, a := range assets {
		t.Run(a.Path, func(t *testing.T) {
			g, err := lib.Resolve(context.Background(), ports.GraphRef{AssetPath: a.Path})
			require.NoError(t, err)
			assert.Empty(t, g.GetUncommittedEvents())
			assert.Equal(t, 1, g.ConnectionCount())

			report, err := compiler.Compile(context.Background(), g)
			require.NoError(t, err)
			assert.False(t, report.HasErrors(), "%+v", report.Messages)
		})
	}
}

func TestCompiler_ReportsErrors(t *testing.T) {
	lib := host.NewLibrary(nil, nil)
	g, err := lib.CreateGraph("/Game/NS_Empty", "ParticleSpawnScript", valueobjects.DomainParticle)
	require.NoError(t, err)

	report, err := host.NewCompiler(nil).Compile(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, report.HasErrors())
	require.Len(t, report.Errors(), 1)
	assert.Contains(t, report.Errors()[0].Message, "ParticleOutput")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = host.NewCompiler(nil).Compile(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMainThread_Serialises(t *testing.T) {
	thread := host.NewMainThread(4, zap.NewNop())
	defer thread.Close()

	var (
		running int32
		overlap int32
		count   int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := thread.Do(context.Background(), func(ctx context.Context) error {
				if atomic.AddInt32(&running, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&count, 1)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), atomic.LoadInt32(&count))
	assert.Zero(t, atomic.LoadInt32(&overlap))
}

func TestMainThread_Do(t *testing.T) {
	thread := host.NewMainThread(0, zap.NewNop())
	defer thread.Close()
	ctx := context.Background()

	t.Run("returns the task error", func(t *testing.T) {
		want := errors.New("boom")
		assert.Equal(t, want, thread.Do(ctx, func(context.Context) error { return want }))
	})

	t.Run("recovers panics", func(t *testing.T) {
		err := thread.Do(ctx, func(context.Context) error { panic("bad") })
		require.Error(t, err)
		assert.Equal(t, pkgerrors.KindInternal, pkgerrors.KindOf(err))

		assert.NoError(t, thread.Do(ctx, func(context.Context) error { return nil }))
	})

	t.Run("nested calls run inline", func(t *testing.T) {
		ran := false
		err := thread.Do(ctx, func(ctx context.Context) error {
			return thread.Do(ctx, func(context.Context) error {
				ran = true
				return nil
			})
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("cancelled context is never run", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		ran := false
		err := thread.Do(cancelled, func(context.Context) error {
			ran = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ran)
	})
}

func TestMainThread_Close(t *testing.T) {
	thread := host.NewMainThread(1, zap.NewNop())
	thread.Close()
	thread.Close()

	err := thread.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, host.ErrThreadClosed)
}
