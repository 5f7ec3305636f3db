// Package host is an in-process stand-in for the editor the engine runs
// inside: an asset library that lends graphs, a single main thread and a
// reference compiler.
package host

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"graphengine/application/ports"
	"graphengine/domain/config"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/schemas"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// Library keeps graphs by asset path. Asset paths match case-insensitively;
// graphs keep the order they were added in.
type Library struct {
	mu     sync.RWMutex
	assets map[string]*asset
	cfg    *config.DomainConfig
	logger *zap.Logger
}

type asset struct {
	path   string
	graphs []*aggregates.Graph
}

// NewLibrary creates an empty library. Graphs it creates share cfg.
func NewLibrary(cfg *config.DomainConfig, logger *zap.Logger) *Library {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		assets: make(map[string]*asset),
		cfg:    cfg,
		logger: logger,
	}
}

func assetKey(path string) string {
	return strings.ToLower(strings.TrimSpace(path))
}

// CreateGraph adds an empty graph of the given domain to an asset, creating
// the asset on first use.
func (l *Library) CreateGraph(assetPath, name string, domain valueobjects.Domain) (*aggregates.Graph, error) {
	schema, err := schemas.ForDomain(domain, l.cfg)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindDomainUnsupported, "%v", err).WithDetail("domain", domain.String())
	}
	g, err := aggregates.NewGraph(assetPath, name, schema, l.cfg)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "%v", err)
	}
	if err := l.Add(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Add places an existing graph in its asset
func (l *Library) Add(g *aggregates.Graph) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetKey(g.AssetPath())
	a, ok := l.assets[key]
	if !ok {
		a = &asset{path: g.AssetPath()}
		l.assets[key] = a
	}
	for _, existing := range a.graphs {
		if strings.EqualFold(existing.Name(), g.Name()) {
			return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "asset %s already has a graph named %s", a.path, g.Name())
		}
	}
	a.graphs = append(a.graphs, g)

	l.logger.Debug("Graph added",
		zap.String("asset_path", a.path),
		zap.String("graph", g.Name()),
		zap.String("domain", g.Domain().String()),
	)
	return nil
}

// Resolve implements ports.GraphResolver
func (l *Library) Resolve(ctx context.Context, ref ports.GraphRef) (*aggregates.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.assets[assetKey(ref.AssetPath)]
	if !ok || len(a.graphs) == 0 {
		return nil, pkgerrors.Newf(pkgerrors.KindGraphNotFound, "asset %s not found", ref.AssetPath).
			WithDetail("asset_path", ref.AssetPath)
	}
	if ref.GraphName == "" {
		return a.graphs[0], nil
	}
	for _, g := range a.graphs {
		if strings.EqualFold(g.Name(), ref.GraphName) {
			return g, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.KindGraphNotFound, "asset %s has no graph named %s", a.path, ref.GraphName).
		WithDetail("asset_path", ref.AssetPath).
		WithDetail("graph_name", ref.GraphName)
}

// Assets lists every asset sorted by path
func (l *Library) Assets() []ports.AssetInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ports.AssetInfo, 0, len(l.assets))
	for _, a := range l.assets {
		info := ports.AssetInfo{Path: a.path, Graphs: make([]ports.GraphInfo, 0, len(a.graphs))}
		for _, g := range a.graphs {
			info.Graphs = append(info.Graphs, ports.GraphInfo{
				ID:          g.ID().String(),
				Name:        g.Name(),
				Domain:      g.Domain().String(),
				Nodes:       g.NodeCount(),
				Connections: g.ConnectionCount(),
				Fingerprint: g.Fingerprint(),
			})
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

var _ ports.AssetCatalog = (*Library)(nil)

// Remove drops an asset and every graph in it
func (l *Library) Remove(assetPath string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := assetKey(assetPath)
	if _, ok := l.assets[key]; !ok {
		return false
	}
	delete(l.assets, key)
	return true
}
