// Package factories turns an opaque type string plus a parameter bag into a
// node placed in a graph. There is one NodeFactory per graph domain; the
// Registry maps domains to factories so orchestration code never branches on
// the domain itself.
package factories

import (
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

// NodeFactory creates and rebuilds the nodes of one domain.
type NodeFactory interface {
	Domain() valueobjects.Domain

	// CreateNode resolves typeName (canonical name or alias, case-insensitive),
	// checks required params, allocates pins and places the node in g.
	// The placement is journaled by the graph.
	CreateNode(g *aggregates.Graph, typeName string, params entities.Params, pos valueobjects.Position) (*entities.Node, error)

	Supports(typeName string) bool
	SupportedTypes() []string
	RequiredParams(typeName string) []string
	OptionalParams(typeName string) []string
	Describe(typeName string) (TypeInfo, bool)

	// ReconstructNode reallocates the node's pins from its type definition,
	// carrying defaults, split state and links over by pin name.
	ReconstructNode(g *aggregates.Graph, node *entities.Node) error
}

// TypeInfo is the discovery view of a node type.
type TypeInfo struct {
	Domain      valueobjects.Domain `json:"domain"`
	Name        string              `json:"name"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Class       string              `json:"class,omitempty"`
	Aliases     []string            `json:"aliases,omitempty"`
	Required    []string            `json:"required_params,omitempty"`
	Optional    []string            `json:"optional_params,omitempty"`
	Dynamic     bool                `json:"dynamic"`
	Pins        []PinInfo           `json:"pins"`
}

// PinInfo describes one statically declared pin. Dynamic types list only the
// pins every instance has.
type PinInfo struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Direction    string `json:"direction"`
	Type         string `json:"type"`
	Hidden       bool   `json:"hidden,omitempty"`
	Default      string `json:"default,omitempty"`
}

func pinInfos(specs []entities.PinSpec) []PinInfo {
	out := make([]PinInfo, 0, len(specs))
	for _, s := range specs {
		info := PinInfo{
			Name:         s.Name,
			FriendlyName: s.FriendlyName,
			Direction:    s.Direction.String(),
			Type:         s.Type.String(),
			Hidden:       s.Hidden,
		}
		if s.Default != nil && s.Type.CarriesValue() {
			info.Default = valueobjects.FormatValue(*s.Default)
		}
		out = append(out, info)
	}
	return out
}
