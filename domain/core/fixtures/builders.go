// Package fixtures builds graphs and nodes for tests without going through a factory.
package fixtures

import (
	"github.com/zclconf/go-cty/cty"

	"graphengine/domain/config"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/schemas"
	"graphengine/domain/core/valueobjects"
)

type payload struct{ kind string }

func (p payload) Kind() string            { return p.kind }
func (p payload) Clone() entities.Payload { return p }

// NodeBuilder assembles a node definition pin by pin.
type NodeBuilder struct {
	def entities.NodeDefinition
}

// NewNodeBuilder starts a node of the given domain and type
func NewNodeBuilder(domain valueobjects.Domain, typeName string) *NodeBuilder {
	return &NodeBuilder{def: entities.NodeDefinition{
		TypeName: typeName,
		Domain:   domain,
		Payload:  payload{kind: "fixture"},
	}}
}

// WithPin adds a visible pin
func (b *NodeBuilder) WithPin(name string, dir valueobjects.PinDirection, pinType string) *NodeBuilder {
	return b.with(entities.PinSpec{Name: name, Direction: dir, Type: valueobjects.MustParsePinType(pinType)})
}

// WithFriendlyPin adds a visible pin with a display name
func (b *NodeBuilder) WithFriendlyPin(name, friendly string, dir valueobjects.PinDirection, pinType string) *NodeBuilder {
	return b.with(entities.PinSpec{
		Name: name, FriendlyName: friendly, Direction: dir, Type: valueobjects.MustParsePinType(pinType),
	})
}

// WithHiddenPin adds a hidden pin
func (b *NodeBuilder) WithHiddenPin(name, friendly string, dir valueobjects.PinDirection, pinType string) *NodeBuilder {
	return b.with(entities.PinSpec{
		Name: name, FriendlyName: friendly, Direction: dir, Type: valueobjects.MustParsePinType(pinType), Hidden: true,
	})
}

// WithDefault adds a visible input pin holding a default value
func (b *NodeBuilder) WithDefault(name, pinType string, v cty.Value) *NodeBuilder {
	return b.with(entities.PinSpec{
		Name: name, Direction: valueobjects.PinInput, Type: valueobjects.MustParsePinType(pinType), Default: &v,
	})
}

// At sets the canvas position
func (b *NodeBuilder) At(x, y float64) *NodeBuilder {
	b.def.Position = valueobjects.NewPosition(x, y)
	return b
}

func (b *NodeBuilder) with(spec entities.PinSpec) *NodeBuilder {
	b.def.Template = append(b.def.Template, spec)
	return b
}

// Build creates the node
func (b *NodeBuilder) Build() (*entities.Node, error) {
	return entities.NewNode(b.def)
}

// MustBuild creates the node and panics on error
func (b *NodeBuilder) MustBuild() *entities.Node {
	n, err := b.Build()
	if err != nil {
		panic(err)
	}
	return n
}

// NewGraph creates an empty graph with the domain's schema
func NewGraph(domain valueobjects.Domain) *aggregates.Graph {
	cfg := config.DefaultDomainConfig()
	schema, err := schemas.ForDomain(domain, cfg)
	if err != nil {
		panic(err)
	}
	g, err := aggregates.NewGraph("/Game/Test/"+string(domain), "EventGraph", schema, cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// MustAdd places nodes in the graph, commits the journal and clears events,
// so tests start from a clean history.
func MustAdd(g *aggregates.Graph, nodes ...*entities.Node) {
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			panic(err)
		}
	}
	g.Commit()
	g.MarkEventsAsCommitted()
}

// ExecNode is a visual-script node with exec in/out and one float input.
func ExecNode(typeName string) *entities.Node {
	return NewNodeBuilder(valueobjects.DomainVisualScript, typeName).
		WithPin("execute", valueobjects.PinInput, "exec").
		WithPin("then", valueobjects.PinOutput, "exec").
		WithDefault("Value", "float", cty.NumberFloatVal(1.5)).
		WithPin("Result", valueobjects.PinOutput, "float").
		MustBuild()
}
