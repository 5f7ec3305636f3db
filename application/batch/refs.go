package batch

import (
	"strings"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
	pkgerrors "graphengine/pkg/errors"
)

// refTable resolves symbolic node refs. Refs created earlier in the batch win,
// then node GUIDs, then object names (case-insensitive).
type refTable struct {
	graph   *aggregates.Graph
	created map[string]*entities.Node
	order   []string
}

func newRefTable(g *aggregates.Graph) *refTable {
	return &refTable{graph: g, created: make(map[string]*entities.Node)}
}

func (t *refTable) add(ref string, n *entities.Node) {
	key := strings.ToLower(ref)
	if _, ok := t.created[key]; !ok {
		t.order = append(t.order, ref)
	}
	t.created[key] = n
}

// createdIDs maps each batch ref to the GUID of the node it created
func (t *refTable) createdIDs() map[string]string {
	if len(t.order) == 0 {
		return nil
	}
	out := make(map[string]string, len(t.order))
	for _, ref := range t.order {
		out[ref] = t.created[strings.ToLower(ref)].ID().String()
	}
	return out
}

func (t *refTable) createdNodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(t.order))
	for _, ref := range t.order {
		if n := t.created[strings.ToLower(ref)]; t.graph.Owns(n) {
			out = append(out, n)
		}
	}
	return out
}

func (t *refTable) node(ref string) (*entities.Node, error) {
	ref = strings.TrimSpace(ref)
	if n, ok := t.created[strings.ToLower(ref)]; ok && t.graph.Owns(n) {
		return n, nil
	}
	if id, err := valueobjects.NewNodeIDFromString(ref); err == nil {
		if n, ok := t.graph.Node(id); ok {
			return n, nil
		}
	}
	if n, ok := t.graph.NodeByName(ref); ok {
		return n, nil
	}
	return nil, pkgerrors.Newf(pkgerrors.KindRefNotFound, "no node matches ref %q in graph %s", ref, t.graph.Name()).
		WithDetail("ref", ref)
}

// pinAliases are the names callers commonly use for pins the catalogs spell
// differently. They are tried only after the literal name misses.
var pinAliases = map[string][]string{
	"exec":        {"execute"},
	"in":          {"execute", "Input"},
	"input":       {"In"},
	"out":         {"then", "Output"},
	"output":      {"Out", "ReturnValue"},
	"result":      {"ReturnValue", "Output"},
	"returnvalue": {"Result"},
}

// pin resolves ref and then a pin on it. dir is the preferred direction; a
// miss falls back to any direction, then to the conventional aliases.
func (t *refTable) pin(ref, name string, dir valueobjects.PinDirection) (*entities.Pin, error) {
	n, err := t.node(ref)
	if err != nil {
		return nil, err
	}
	p := pins.Find(n, name, dir)
	if p == nil && dir != pins.AnyDirection {
		p = pins.Find(n, name, pins.AnyDirection)
	}
	if alts := pinAliases[strings.ToLower(strings.TrimSpace(name))]; p == nil && len(alts) > 0 {
		p = pins.FindByAlias(n, alts, dir)
		if p == nil && dir != pins.AnyDirection {
			p = pins.FindByAlias(n, alts, pins.AnyDirection)
		}
	}
	if p == nil {
		return nil, pkgerrors.Newf(pkgerrors.KindPinNotFound, "%s (ref %q) has no pin %q", n.Name(), ref, name).
			WithDetail("ref", ref).
			WithDetail("pin", name).
			WithDetail("available", pinNames(n))
	}
	return p, nil
}

func pinNames(n *entities.Node) []string {
	out := make([]string, 0, n.PinCount())
	for _, p := range n.Pins() {
		if !p.IsHidden() {
			out = append(out, p.DisplayName())
		}
	}
	return out
}
