package entities

import (
	"strings"

	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// NodeDefinition carries everything a factory resolved for a new node.
type NodeDefinition struct {
	TypeName string
	Title    string
	Domain   valueobjects.Domain
	Payload  Payload
	Position valueobjects.Position
	Template []PinSpec
	Params   Params
}

// Node is a typed vertex with ordered pins and a domain payload.
// Pin order is declaration order and is observable: pin lookup breaks ties by it.
type Node struct {
	id       valueobjects.NodeID
	name     string
	typeName string
	title    string
	domain   valueobjects.Domain
	payload  Payload
	position valueobjects.Position
	state    EnabledState
	pins     []*Pin
	template []PinSpec
	params   Params
	graphID  string
}

// NewNode allocates a node and its pins from a definition
func NewNode(def NodeDefinition) (*Node, error) {
	if strings.TrimSpace(def.TypeName) == "" {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, "node type name cannot be empty")
	}
	if !def.Domain.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "node domain %q is not valid", def.Domain)
	}

	n := &Node{
		id:       valueobjects.NewNodeID(),
		typeName: def.TypeName,
		title:    def.Title,
		domain:   def.Domain,
		payload:  def.Payload,
		position: def.Position,
		state:    StateEnabled,
		template: append([]PinSpec(nil), def.Template...),
		params:   def.Params.Clone(),
	}
	if n.title == "" {
		n.title = def.TypeName
	}

	seen := make(map[string]bool, len(def.Template))
	for _, spec := range def.Template {
		key := strings.ToLower(string(spec.Direction) + "/" + spec.Name)
		if seen[key] {
			return nil, pkgerrors.Newf(pkgerrors.KindInternal, "duplicate pin %s on %s", spec.Name, def.TypeName)
		}
		seen[key] = true
		n.pins = append(n.pins, n.adopt(NewPin(spec)))
	}
	return n, nil
}

func (n *Node) adopt(p *Pin) *Pin {
	p.owner = n
	return p
}

// ID returns the node's GUID
func (n *Node) ID() valueobjects.NodeID { return n.id }

// Name returns the unique object name within the graph, e.g. "PrintString_0"
func (n *Node) Name() string { return n.name }

// TypeName returns the factory type the node was created as
func (n *Node) TypeName() string { return n.typeName }

func (n *Node) Title() string                   { return n.title }
func (n *Node) Domain() valueobjects.Domain     { return n.domain }
func (n *Node) Payload() Payload                { return n.payload }
func (n *Node) Position() valueobjects.Position { return n.position }
func (n *Node) State() EnabledState             { return n.state }
func (n *Node) GraphID() string                 { return n.graphID }

// IsEnabled reports whether the node takes part in compilation.
func (n *Node) IsEnabled() bool {
	return n.state != StateDisabled
}

// Pins returns the pins in declaration order
func (n *Node) Pins() []*Pin {
	out := make([]*Pin, len(n.pins))
	copy(out, n.pins)
	return out
}

// PinCount returns the number of pins including hidden ones
func (n *Node) PinCount() int {
	return len(n.pins)
}

// IndexOfPin returns the position of p in the pin list or -1.
func (n *Node) IndexOfPin(p *Pin) int {
	for i, candidate := range n.pins {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Template returns the pin specs the node was allocated from
func (n *Node) Template() []PinSpec {
	return append([]PinSpec(nil), n.template...)
}

// Params returns a copy of the creation parameters
func (n *Node) Params() Params {
	return n.params.Clone()
}

// AssignName sets the unique object name. The graph does this when the node is added.
func (n *Node) AssignName(name string) {
	n.name = name
}

// AssignGraph records the owning graph
func (n *Node) AssignGraph(graphID string) {
	n.graphID = graphID
}

// SetPosition moves the node
func (n *Node) SetPosition(pos valueobjects.Position) {
	n.position = pos
}

// SetState changes the enabled state
func (n *Node) SetState(state EnabledState) {
	n.state = state
}

// InsertPins places pins at index at, taking ownership of them.
func (n *Node) InsertPins(at int, pins []*Pin) {
	if at < 0 || at > len(n.pins) {
		at = len(n.pins)
	}
	for _, p := range pins {
		n.adopt(p)
	}
	tail := append([]*Pin(nil), n.pins[at:]...)
	n.pins = append(append(n.pins[:at], pins...), tail...)
}

// RemovePin drops p from the pin list and returns its former index, or -1.
func (n *Node) RemovePin(p *Pin) int {
	i := n.IndexOfPin(p)
	if i < 0 {
		return -1
	}
	n.pins = append(n.pins[:i], n.pins[i+1:]...)
	return i
}

// ReplacePins swaps the whole pin list and returns the old one.
func (n *Node) ReplacePins(pins []*Pin) []*Pin {
	old := n.pins
	for _, p := range pins {
		n.adopt(p)
	}
	n.pins = pins
	return old
}

// NotifyPinDefaultChanged lets the payload recompute state derived from pin defaults.
func (n *Node) NotifyPinDefaultChanged(p *Pin) {
	if obs, ok := n.payload.(DefaultObserver); ok {
		obs.PinDefaultChanged(n, p)
	}
}

// NotifyPinLinksChanged lets the payload recompute state derived from links.
func (n *Node) NotifyPinLinksChanged(p *Pin) {
	if obs, ok := n.payload.(LinkObserver); ok {
		obs.PinLinksChanged(n, p)
	}
}

// CloneDetached copies the node with fresh pins and no links.
// The returned map takes each original pin to its copy so the caller can relink.
func (n *Node) CloneDetached() (*Node, map[*Pin]*Pin) {
	c := &Node{
		id:       n.id,
		name:     n.name,
		typeName: n.typeName,
		title:    n.title,
		domain:   n.domain,
		position: n.position,
		state:    n.state,
		template: append([]PinSpec(nil), n.template...),
		params:   n.params.Clone(),
		graphID:  n.graphID,
	}
	if n.payload != nil {
		c.payload = n.payload.Clone()
	}

	mapping := make(map[*Pin]*Pin, len(n.pins))
	c.pins = make([]*Pin, len(n.pins))
	for i, p := range n.pins {
		c.pins[i] = p.clone(c)
		mapping[p] = c.pins[i]
	}
	for _, p := range n.pins {
		if !p.IsSplit() {
			continue
		}
		children := make([]*Pin, 0, len(p.children))
		for _, child := range p.children {
			children = append(children, mapping[child])
		}
		mapping[p].AttachChildren(children)
	}
	return c, mapping
}
