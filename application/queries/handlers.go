package queries

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/application/queries/bus"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// Handlers answers the queries. Anything that reads a live graph runs on the
// main thread so it never observes a batch half applied.
type Handlers struct {
	catalog  ports.AssetCatalog
	resolver ports.GraphResolver
	registry *factories.Registry
	thread   ports.MainThread
	journal  ports.JournalStore
	logger   *zap.Logger
}

// NewHandlers creates the query handlers. thread and journal may be nil; a
// nil journal makes ListBatchesQuery fail with InvalidRequest.
func NewHandlers(
	catalog ports.AssetCatalog,
	resolver ports.GraphResolver,
	registry *factories.Registry,
	thread ports.MainThread,
	journal ports.JournalStore,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		catalog:  catalog,
		resolver: resolver,
		registry: registry,
		thread:   thread,
		journal:  journal,
		logger:   logger,
	}
}

// Register wires every query type to its handler
func (h *Handlers) Register(b *bus.QueryBus) error {
	for q, fn := range map[bus.Query]bus.QueryHandlerFunc{
		ListAssetsQuery{}:    h.listAssets,
		GetGraphQuery{}:      h.getGraph,
		ListNodeTypesQuery{}: h.listNodeTypes,
		GetNodeTypeQuery{}:   h.getNodeType,
		ListBatchesQuery{}:   h.listBatches,
	} {
		if err := b.Register(q, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) onMainThread(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.thread == nil {
		return fn(ctx)
	}
	return h.thread.Do(ctx, fn)
}

func (h *Handlers) listAssets(ctx context.Context, query bus.Query) (interface{}, error) {
	q := query.(ListAssetsQuery)

	var assets []ports.AssetInfo
	if err := h.onMainThread(ctx, func(context.Context) error {
		assets = h.catalog.Assets()
		return nil
	}); err != nil {
		return nil, err
	}

	if q.Domain != "" {
		kept := assets[:0]
		for _, a := range assets {
			for _, g := range a.Graphs {
				if g.Domain == q.Domain {
					kept = append(kept, a)
					break
				}
			}
		}
		assets = kept
	}

	page := AssetPage{Assets: []ports.AssetInfo{}, Total: len(assets)}
	start := (q.Page - 1) * q.PageSize
	if start < len(assets) {
		end := min(start+q.PageSize, len(assets))
		page.Assets = assets[start:end]
	}
	return page, nil
}

func (h *Handlers) getGraph(ctx context.Context, query bus.Query) (interface{}, error) {
	q := query.(GetGraphQuery)

	var view GraphView
	err := h.onMainThread(ctx, func(ctx context.Context) error {
		g, err := h.resolver.Resolve(ctx, q.Ref)
		if err != nil {
			return err
		}
		view = NewGraphView(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (h *Handlers) listNodeTypes(ctx context.Context, query bus.Query) (interface{}, error) {
	q := query.(ListNodeTypesQuery)

	f, err := h.factory(q.Domain)
	if err != nil {
		return nil, err
	}
	types := f.SupportedTypes()
	out := make([]factories.TypeInfo, 0, len(types))
	for _, name := range types {
		if info, ok := f.Describe(name); ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (h *Handlers) getNodeType(ctx context.Context, query bus.Query) (interface{}, error) {
	q := query.(GetNodeTypeQuery)

	f, err := h.factory(q.Domain)
	if err != nil {
		return nil, err
	}
	info, ok := f.Describe(q.TypeName)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.KindFactoryUnsupportedType, "%s has no node type %q", q.Domain, q.TypeName).
			WithDetail("domain", q.Domain).
			WithDetail("type", q.TypeName)
	}
	return info, nil
}

func (h *Handlers) listBatches(ctx context.Context, query bus.Query) (interface{}, error) {
	q := query.(ListBatchesQuery)
	if h.journal == nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, "the batch journal is disabled")
	}

	var graphID string
	err := h.onMainThread(ctx, func(ctx context.Context) error {
		g, err := h.resolver.Resolve(ctx, q.Ref)
		if err != nil {
			return err
		}
		graphID = g.ID().String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	records, err := h.journal.Recent(ctx, graphID, q.Limit)
	if err != nil {
		h.logger.Error("Failed to read batch journal", zap.String("graph_id", graphID), zap.Error(err))
		return nil, pkgerrors.Wrap(err, pkgerrors.KindInternal, "reading the batch journal failed")
	}
	if records == nil {
		records = []ports.BatchRecord{}
	}
	return records, nil
}

func (h *Handlers) factory(domain string) (factories.NodeFactory, error) {
	d, err := valueobjects.ParseDomain(domain)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindDomainUnsupported, "%v", err).WithDetail("domain", domain)
	}
	return h.registry.FactoryFor(d)
}

// NewGraphView builds the read model of g. Call it on the main thread.
func NewGraphView(g *aggregates.Graph) GraphView {
	view := GraphView{
		ID:          g.ID().String(),
		AssetPath:   g.AssetPath(),
		Name:        g.Name(),
		Domain:      g.Domain().String(),
		Fingerprint: g.Fingerprint(),
		Nodes:       make([]NodeView, 0, g.NodeCount()),
		Connections: make([]ConnectionView, 0, g.ConnectionCount()),
	}
	for _, n := range g.Nodes() {
		pos := n.Position()
		nv := NodeView{
			ID:       n.ID().String(),
			Name:     n.Name(),
			Type:     n.TypeName(),
			Title:    n.Title(),
			State:    string(n.State()),
			Position: [2]float64{pos.X, pos.Y},
		}
		for _, p := range n.Pins() {
			nv.Pins = appendPinViews(nv.Pins, p)
		}
		view.Nodes = append(view.Nodes, nv)
	}
	for _, c := range g.Connections() {
		view.Connections = append(view.Connections, ConnectionView{
			FromNode: c.From.Node().Name(),
			FromPin:  c.From.Name(),
			ToNode:   c.To.Node().Name(),
			ToPin:    c.To.Name(),
		})
	}
	sort.SliceStable(view.Connections, func(i, j int) bool {
		a, b := view.Connections[i], view.Connections[j]
		if a.FromNode != b.FromNode {
			return a.FromNode < b.FromNode
		}
		return a.FromPin < b.FromPin
	})
	return view
}

func appendPinViews(out []PinView, p *entities.Pin) []PinView {
	pv := PinView{
		Name:      p.Name(),
		Direction: p.Direction().String(),
		Type:      p.Type().String(),
		Links:     p.LinkCount(),
		Split:     p.IsSplit(),
		Hidden:    p.IsHidden(),
	}
	if parent := p.Parent(); parent != nil {
		pv.Parent = parent.Name()
	}
	if p.Type().CarriesValue() {
		pv.Default = valueobjects.FormatValue(p.Default())
	}
	out = append(out, pv)
	for _, child := range p.Children() {
		out = appendPinViews(out, child)
	}
	return out
}
