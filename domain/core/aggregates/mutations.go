package aggregates

import (
	"github.com/zclconf/go-cty/cty"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/events"
	pkgerrors "graphengine/pkg/errors"
)

// AddNode places a freshly created node in the graph and gives it a unique name.
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.New(pkgerrors.KindInvalidRequest, "node cannot be nil")
	}
	if _, exists := g.byID[node.ID().String()]; exists {
		return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "node %s already exists in graph", node.ID())
	}
	if node.Domain() != g.domain {
		return pkgerrors.Newf(pkgerrors.KindDomainMismatch, "%s node cannot be added to a %s graph", node.Domain(), g.domain)
	}
	if len(g.nodes) >= g.cfg.MaxNodesPerGraph {
		return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "graph is full (%d nodes)", g.cfg.MaxNodesPerGraph)
	}

	counters := make(map[string]int, len(g.nameCounters))
	for k, v := range g.nameCounters {
		counters[k] = v
	}
	node.AssignName(g.nextName(node.TypeName()))
	node.AssignGraph(g.id.String())

	g.nodes = append(g.nodes, node)
	g.byID[node.ID().String()] = node
	g.record("add "+node.Name(), func() {
		g.detachNode(node)
		g.nameCounters = counters
	})
	g.addEvent(events.NewNodeAdded(g.id.String(), node.ID(), node.Name(), node.TypeName(), g.now()))
	return nil
}

// RemoveNode breaks every link on the node and deletes it.
func (g *Graph) RemoveNode(node *entities.Node) error {
	if !g.Owns(node) {
		return pkgerrors.Newf(pkgerrors.KindRefNotFound, "node is not part of graph %s", g.name)
	}
	for _, p := range node.Pins() {
		g.BreakPinLinks(p, true)
	}

	idx := g.indexOf(node)
	g.detachNode(node)
	g.record("remove "+node.Name(), func() {
		g.insertNodeAt(idx, node)
	})
	g.addEvent(events.NewNodeRemoved(g.id.String(), node.ID(), node.Name(), g.now()))
	return nil
}

func (g *Graph) detachNode(node *entities.Node) {
	idx := g.indexOf(node)
	if idx < 0 {
		return
	}
	g.nodes = append(g.nodes[:idx], g.nodes[idx+1:]...)
	delete(g.byID, node.ID().String())
}

func (g *Graph) insertNodeAt(idx int, node *entities.Node) {
	if idx < 0 || idx > len(g.nodes) {
		idx = len(g.nodes)
	}
	g.nodes = append(g.nodes, nil)
	copy(g.nodes[idx+1:], g.nodes[idx:])
	g.nodes[idx] = node
	g.byID[node.ID().String()] = node
}

// LinkPins records a link on both pins. It does not consult the schema;
// pins.Connect is the checked entry point.
func (g *Graph) LinkPins(a, b *entities.Pin) error {
	if a == nil || b == nil {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "both pins are required")
	}
	if !g.Owns(a.Node()) || !g.Owns(b.Node()) {
		return pkgerrors.New(pkgerrors.KindRefNotFound, "pins must belong to nodes in this graph")
	}
	if a.IsLinkedTo(b) {
		return nil
	}

	a.AttachLink(b)
	b.AttachLink(a)
	a.Node().NotifyPinLinksChanged(a)
	b.Node().NotifyPinLinksChanged(b)

	g.record("link "+a.Path()+" "+b.Path(), func() {
		a.DetachLink(b)
		b.DetachLink(a)
		a.Node().NotifyPinLinksChanged(a)
		b.Node().NotifyPinLinksChanged(b)
	})
	from, to := orient(a, b)
	g.addEvent(events.NewPinsLinked(g.id.String(), pinRef(from), pinRef(to), g.now()))
	return nil
}

// UnlinkPins removes the link between a and b. It reports whether a link existed.
func (g *Graph) UnlinkPins(a, b *entities.Pin) bool {
	return g.unlink(a, b, true)
}

func (g *Graph) unlink(a, b *entities.Pin, notify bool) bool {
	if a == nil || b == nil || !a.IsLinkedTo(b) {
		return false
	}
	ia := a.DetachLink(b)
	ib := b.DetachLink(a)
	if notify {
		a.Node().NotifyPinLinksChanged(a)
		b.Node().NotifyPinLinksChanged(b)
	}

	g.record("unlink "+a.Path()+" "+b.Path(), func() {
		b.InsertLinkAt(a, ib)
		a.InsertLinkAt(b, ia)
		a.Node().NotifyPinLinksChanged(a)
		b.Node().NotifyPinLinksChanged(b)
	})
	from, to := orient(a, b)
	g.addEvent(events.NewPinsUnlinked(g.id.String(), pinRef(from), pinRef(to), g.now()))
	return true
}

// BreakPinLinks removes every link on p and returns how many were removed.
// With notify unset the owning nodes are not told, which callers use when the
// node is about to be rebuilt anyway.
func (g *Graph) BreakPinLinks(p *entities.Pin, notify bool) int {
	if p == nil {
		return 0
	}
	links := p.Links()
	broken := 0
	for i := len(links) - 1; i >= 0; i-- {
		if g.unlink(p, links[i], notify) {
			broken++
		}
	}
	return broken
}

// SetPinDefault assigns a default value and notifies the owning node.
func (g *Graph) SetPinDefault(p *entities.Pin, v cty.Value) error {
	if p == nil || !g.Owns(p.Node()) {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "pin is not part of this graph")
	}
	old := p.Default()
	p.AssignDefault(v)
	p.Node().NotifyPinDefaultChanged(p)

	g.record("default "+p.Path(), func() {
		p.AssignDefault(old)
		p.Node().NotifyPinDefaultChanged(p)
	})
	g.addEvent(events.NewPinDefaultChanged(g.id.String(), pinRef(p), valueobjects.FormatValue(v), g.now()))
	return nil
}

// SplitPin inserts children directly after p and hides p.
func (g *Graph) SplitPin(p *entities.Pin, children []*entities.Pin) error {
	if p == nil || !g.Owns(p.Node()) {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "pin is not part of this graph")
	}
	node := p.Node()
	wasHidden := p.IsHidden()
	hiddenSplit := p.HiddenBeforeSplit()

	node.InsertPins(node.IndexOfPin(p)+1, children)
	p.AttachChildren(children)
	p.SetHiddenBeforeSplit(wasHidden)
	p.SetHidden(true)

	g.record("split "+p.Path(), func() {
		for _, c := range children {
			node.RemovePin(c)
		}
		p.DetachChildren()
		p.SetHidden(wasHidden)
		p.SetHiddenBeforeSplit(hiddenSplit)
	})

	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	g.addEvent(events.NewPinSplit(g.id.String(), pinRef(p), names, g.now()))
	return nil
}

// RecombinePin removes p's sub-pins, restores the visibility p had before the
// split and assigns it value.
// Sub-pins must already be unlinked.
func (g *Graph) RecombinePin(p *entities.Pin, value cty.Value) error {
	if p == nil || !g.Owns(p.Node()) {
		return pkgerrors.New(pkgerrors.KindPinNotFound, "pin is not part of this graph")
	}
	node := p.Node()
	children := p.Children()
	positions := make([]int, len(children))
	for i, c := range children {
		positions[i] = node.RemovePin(c)
	}
	p.DetachChildren()
	wasHidden := p.IsHidden()
	oldDefault := p.Default()
	p.SetHidden(p.HiddenBeforeSplit())
	p.AssignDefault(value)
	node.NotifyPinDefaultChanged(p)

	g.record("recombine "+p.Path(), func() {
		p.AssignDefault(oldDefault)
		p.SetHidden(wasHidden)
		for i := len(children) - 1; i >= 0; i-- {
			node.InsertPins(positions[i], []*entities.Pin{children[i]})
		}
		p.AttachChildren(children)
		node.NotifyPinDefaultChanged(p)
	})
	g.addEvent(events.NewPinRecombined(g.id.String(), pinRef(p), g.now()))
	return nil
}

// SetNodeState enables or disables a node
func (g *Graph) SetNodeState(node *entities.Node, state entities.EnabledState) error {
	if !g.Owns(node) {
		return pkgerrors.Newf(pkgerrors.KindRefNotFound, "node is not part of graph %s", g.name)
	}
	old := node.State()
	if old == state {
		return nil
	}
	node.SetState(state)
	g.record("state "+node.Name(), func() { node.SetState(old) })
	g.addEvent(events.NewNodeStateChanged(g.id.String(), node.ID(), string(old), string(state), g.now()))
	return nil
}

// ReplaceNodePins swaps the node's pin list. Links on the old pins must already be broken.
func (g *Graph) ReplaceNodePins(node *entities.Node, pins []*entities.Pin, droppedLinks int) error {
	if !g.Owns(node) {
		return pkgerrors.Newf(pkgerrors.KindRefNotFound, "node is not part of graph %s", g.name)
	}
	old := node.ReplacePins(pins)
	g.record("reconstruct "+node.Name(), func() { node.ReplacePins(old) })
	g.addEvent(events.NewNodeReconstructed(g.id.String(), node.ID(), droppedLinks, g.now()))
	return nil
}

// MoveNode repositions a node
func (g *Graph) MoveNode(node *entities.Node, pos valueobjects.Position) error {
	if !g.Owns(node) {
		return pkgerrors.Newf(pkgerrors.KindRefNotFound, "node is not part of graph %s", g.name)
	}
	old := node.Position()
	if old.Equals(pos) {
		return nil
	}
	node.SetPosition(pos)
	g.record("move "+node.Name(), func() { node.SetPosition(old) })
	g.addEvent(events.NewNodeMoved(g.id.String(), node.ID(), old, pos, g.now()))
	return nil
}

// orient returns the pair output first.
func orient(a, b *entities.Pin) (*entities.Pin, *entities.Pin) {
	if a.Direction() == valueobjects.PinInput && b.Direction() == valueobjects.PinOutput {
		return b, a
	}
	return a, b
}
