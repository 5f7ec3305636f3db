package aggregates

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"graphengine/domain/config"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/schemas"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/events"
)

// GraphID represents a unique graph identifier
type GraphID string

// NewGraphID creates a new random GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// String returns the string representation
func (id GraphID) String() string {
	return string(id)
}

// Graph is the aggregate root for one visual-program graph.
// It is owned by the host document system; the engine borrows it for a single call.
// Every mutation goes through Graph so it can be journaled and undone.
type Graph struct {
	id        GraphID
	assetPath string
	name      string
	domain    valueobjects.Domain
	schema    schemas.Schema
	cfg       *config.DomainConfig

	nodes        []*entities.Node
	byID         map[string]*entities.Node
	nameCounters map[string]int

	events  []events.DomainEvent
	journal []undoEntry
	now     func() time.Time
}

// Connection is an output pin linked to an input pin.
type Connection struct {
	From *entities.Pin
	To   *entities.Pin
}

// NewGraph creates an empty graph for an asset
func NewGraph(assetPath, name string, schema schemas.Schema, cfg *config.DomainConfig) (*Graph, error) {
	if strings.TrimSpace(assetPath) == "" {
		return nil, errors.New("asset path required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("graph name required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	return &Graph{
		id:           NewGraphID(),
		assetPath:    assetPath,
		name:         name,
		domain:       schema.Domain(),
		schema:       schema,
		cfg:          cfg,
		byID:         make(map[string]*entities.Node),
		nameCounters: make(map[string]int),
		events:       []events.DomainEvent{},
		now:          time.Now,
	}, nil
}

// ID returns the graph's unique identifier
func (g *Graph) ID() GraphID {
	return g.id
}

// AssetPath returns the path of the asset that owns the graph
func (g *Graph) AssetPath() string {
	return g.assetPath
}

// Name returns the graph's name within its asset
func (g *Graph) Name() string {
	return g.name
}

// Domain returns the graph kind
func (g *Graph) Domain() valueobjects.Domain {
	return g.domain
}

// Schema returns the connection rules for the graph's domain
func (g *Graph) Schema() schemas.Schema {
	return g.schema
}

// Config returns the limits the graph enforces
func (g *Graph) Config() *config.DomainConfig {
	return g.cfg
}

// Nodes returns the nodes in insertion order
func (g *Graph) Nodes() []*entities.Node {
	out := make([]*entities.Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Node looks a node up by GUID
func (g *Graph) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	n, ok := g.byID[id.String()]
	return n, ok
}

// NodeByName looks a node up by its object name, case-insensitively
func (g *Graph) NodeByName(name string) (*entities.Node, bool) {
	for _, n := range g.nodes {
		if strings.EqualFold(n.Name(), name) {
			return n, true
		}
	}
	return nil, false
}

// Owns reports whether the node is currently part of this graph
func (g *Graph) Owns(n *entities.Node) bool {
	if n == nil {
		return false
	}
	return g.byID[n.ID().String()] == n
}

// PinCount returns the total number of pins, hidden ones included
func (g *Graph) PinCount() int {
	total := 0
	for _, n := range g.nodes {
		total += n.PinCount()
	}
	return total
}

// Connections lists every link once, output side first, in node and pin order.
func (g *Graph) Connections() []Connection {
	var out []Connection
	for _, n := range g.nodes {
		for _, p := range n.Pins() {
			if p.Direction() != valueobjects.PinOutput {
				continue
			}
			for _, target := range p.Links() {
				out = append(out, Connection{From: p, To: target})
			}
		}
	}
	return out
}

// ConnectionCount returns the number of links
func (g *Graph) ConnectionCount() int {
	return len(g.Connections())
}

// Validate ensures graph invariants: links are symmetric and stay inside the graph.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		for _, p := range n.Pins() {
			if p.Node() != n {
				return fmt.Errorf("pin %s is not owned by %s", p.Name(), n.Name())
			}
			for _, other := range p.Links() {
				if !g.Owns(other.Node()) {
					return fmt.Errorf("pin %s links outside the graph", p.Path())
				}
				if other.Node().IndexOfPin(other) < 0 {
					return fmt.Errorf("pin %s links to %s, which is no longer on its node", p.Path(), other.Path())
				}
				if !other.IsLinkedTo(p) {
					return fmt.Errorf("link %s -> %s is not symmetric", p.Path(), other.Path())
				}
				if other.Direction() == p.Direction() {
					return fmt.Errorf("link %s -> %s joins pins of the same direction", p.Path(), other.Path())
				}
			}
		}
	}
	return nil
}

// Snapshot renders the node, pin and connection sets in canonical form.
// Two graphs with equal snapshots are indistinguishable to the engine.
func (g *Graph) Snapshot() string {
	var b strings.Builder
	for _, n := range g.nodes {
		pos := n.Position()
		fmt.Fprintf(&b, "node %s %s type=%s state=%s pos=%g,%g\n",
			n.ID(), n.Name(), n.TypeName(), n.State(), pos.X, pos.Y)
		for _, p := range n.Pins() {
			links := make([]string, 0, p.LinkCount())
			for _, l := range p.Links() {
				links = append(links, l.Node().ID().String()+"."+l.Name())
			}
			parent := ""
			if p.Parent() != nil {
				parent = p.Parent().Name()
			}
			fmt.Fprintf(&b, "  pin %s dir=%s type=%s friendly=%q hidden=%t default=%s parent=%s links=[%s]\n",
				p.Name(), p.Direction(), p.Type(), p.FriendlyName(), p.IsHidden(),
				valueobjects.FormatValue(p.Default()), parent, strings.Join(links, ","))
		}
	}
	return b.String()
}

// Fingerprint is a digest of Snapshot
func (g *Graph) Fingerprint() string {
	sum := sha256.Sum256([]byte(g.Snapshot()))
	return hex.EncodeToString(sum[:])
}

// Clone deep-copies the graph. The copy has no events and an empty journal.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		id:           g.id,
		assetPath:    g.assetPath,
		name:         g.name,
		domain:       g.domain,
		schema:       g.schema,
		cfg:          g.cfg,
		byID:         make(map[string]*entities.Node, len(g.nodes)),
		nameCounters: make(map[string]int, len(g.nameCounters)),
		events:       []events.DomainEvent{},
		now:          g.now,
	}
	for k, v := range g.nameCounters {
		c.nameCounters[k] = v
	}

	mapping := make(map[*entities.Pin]*entities.Pin)
	for _, n := range g.nodes {
		cn, pins := n.CloneDetached()
		for orig, copied := range pins {
			mapping[orig] = copied
		}
		c.nodes = append(c.nodes, cn)
		c.byID[cn.ID().String()] = cn
	}
	for _, n := range g.nodes {
		for _, p := range n.Pins() {
			for _, l := range p.Links() {
				mapping[p].AttachLink(mapping[l])
			}
		}
	}
	return c
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(g.events))
	copy(out, g.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (g *Graph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}

func (g *Graph) indexOf(n *entities.Node) int {
	for i, candidate := range g.nodes {
		if candidate == n {
			return i
		}
	}
	return -1
}

func (g *Graph) nextName(typeName string) string {
	base := strings.ReplaceAll(typeName, " ", "")
	for {
		n := g.nameCounters[base]
		g.nameCounters[base] = n + 1
		name := fmt.Sprintf("%s_%d", base, n)
		if _, taken := g.NodeByName(name); !taken {
			return name
		}
	}
}

func pinRef(p *entities.Pin) events.PinRef {
	return events.PinRef{NodeID: p.Node().ID(), Pin: p.Name()}
}
