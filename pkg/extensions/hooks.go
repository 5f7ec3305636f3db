// Package extensions lets outer layers attach behaviour to router events
// without the router knowing about them.
package extensions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// HookPoint represents a point in the application where hooks can be registered
type HookPoint string

const (
	// HookBeforeRoute runs before an operation is dispatched. Data is the
	// operation name. An error aborts the call.
	HookBeforeRoute HookPoint = "before_route"
	// HookAfterBatch runs after a committed, non-dry batch. Data is a
	// ports.BatchRecord.
	HookAfterBatch HookPoint = "after_batch"
	// HookRouteFailed runs when a call ends in an error. Data is the error.
	HookRouteFailed HookPoint = "route_failed"
)

// Hook represents a function that can be executed at a hook point
type Hook func(ctx context.Context, data interface{}) error

// HookManager manages hooks for extension points
type HookManager struct {
	hooks map[HookPoint][]Hook
	mu    sync.RWMutex
}

// NewHookManager creates a new hook manager
func NewHookManager() *HookManager {
	return &HookManager{
		hooks: make(map[HookPoint][]Hook),
	}
}

// Register registers a hook for a specific hook point
func (m *HookManager) Register(point HookPoint, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks[point] = append(m.hooks[point], hook)
}

// Execute runs every hook of a point in registration order. A failing hook
// does not stop the ones after it; all failures are joined.
func (m *HookManager) Execute(ctx context.Context, point HookPoint, data interface{}) error {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	hooks := m.hooks[point]
	m.mu.RUnlock()

	var errs []error
	for i, hook := range hooks {
		if err := hook(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("hook %d at %s failed: %w", i, point, err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of hooks registered at a point
func (m *HookManager) Count(point HookPoint) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks[point])
}

// Clear removes all hooks for a specific hook point
func (m *HookManager) Clear(point HookPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hooks, point)
}

// Plugin bundles hooks with a lifecycle, e.g. a journal store that must be
// opened before its hook can run.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context) error
	RegisterHooks(manager *HookManager) error
	Shutdown(ctx context.Context) error
}

// PluginManager manages plugins
type PluginManager struct {
	plugins     map[string]Plugin
	hookManager *HookManager
	mu          sync.RWMutex
}

// NewPluginManager creates a new plugin manager
func NewPluginManager(hookManager *HookManager) *PluginManager {
	return &PluginManager{
		plugins:     make(map[string]Plugin),
		hookManager: hookManager,
	}
}

// Register initializes a plugin and registers its hooks
func (m *PluginManager) Register(ctx context.Context, plugin Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := plugin.Name()
	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}

	if err := plugin.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize plugin %s: %w", name, err)
	}
	if err := plugin.RegisterHooks(m.hookManager); err != nil {
		return fmt.Errorf("failed to register hooks for plugin %s: %w", name, err)
	}

	m.plugins[name] = plugin
	return nil
}

// Shutdown stops every plugin. Hooks stay registered; callers shut plugins
// down only when the router is done.
func (m *PluginManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, name := range m.names() {
		if err := m.plugins[name].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown plugin %s: %w", name, err))
		}
		delete(m.plugins, name)
	}
	return errors.Join(errs...)
}

// GetPlugin retrieves a plugin by name
func (m *PluginManager) GetPlugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, exists := m.plugins[name]
	return plugin, exists
}

// ListPlugins returns the registered plugin names, sorted
func (m *PluginManager) ListPlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names()
}

func (m *PluginManager) names() []string {
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
