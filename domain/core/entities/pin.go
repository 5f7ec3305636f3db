package entities

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"graphengine/domain/core/valueobjects"
)

// PinSpec describes a pin before it is allocated on a node.
// Node templates are lists of PinSpec; reconstruction reallocates from them.
type PinSpec struct {
	Name         string
	FriendlyName string
	Direction    valueobjects.PinDirection
	Type         valueobjects.PinType
	Hidden       bool
	Default      *cty.Value
}

// Pin is a typed, directional endpoint on exactly one node.
// A pin holds a default value and a list of links. Links are stored on both ends.
//
// The exported mutators (AttachLink, DetachLink, AssignDefault, ...) are the raw
// operations the Graph aggregate composes; callers outside the aggregate go through
// Graph so that every change is journaled.
type Pin struct {
	name         string
	friendlyName string
	direction    valueobjects.PinDirection
	pinType      valueobjects.PinType
	hidden       bool
	defaultValue cty.Value
	links        []*Pin
	owner        *Node
	parent       *Pin
	children     []*Pin
	hiddenSplit  bool // visibility before the pin was split
}

// NewPin allocates a pin from its spec. The owner is set when the pin is attached to a node.
func NewPin(spec PinSpec) *Pin {
	p := &Pin{
		name:         spec.Name,
		friendlyName: spec.FriendlyName,
		direction:    spec.Direction,
		pinType:      spec.Type,
		hidden:       spec.Hidden,
		defaultValue: spec.Type.ZeroValue(),
	}
	if spec.Default != nil {
		p.defaultValue = *spec.Default
	}
	return p
}

func (p *Pin) Name() string                         { return p.name }
func (p *Pin) FriendlyName() string                 { return p.friendlyName }
func (p *Pin) Direction() valueobjects.PinDirection { return p.direction }
func (p *Pin) Type() valueobjects.PinType           { return p.pinType }
func (p *Pin) IsHidden() bool                       { return p.hidden }
func (p *Pin) Default() cty.Value                   { return p.defaultValue }
func (p *Pin) Node() *Node                          { return p.owner }
func (p *Pin) Parent() *Pin                         { return p.parent }

// DisplayName is the friendly name when one is set, the internal name otherwise.
func (p *Pin) DisplayName() string {
	if p.friendlyName != "" {
		return p.friendlyName
	}
	return p.name
}

// MatchesName compares the internal name case-insensitively.
func (p *Pin) MatchesName(name string) bool {
	return strings.EqualFold(p.name, name)
}

// MatchesFriendlyName compares the friendly name case-insensitively.
// Pins without a friendly name never match.
func (p *Pin) MatchesFriendlyName(name string) bool {
	return p.friendlyName != "" && strings.EqualFold(p.friendlyName, name)
}

// Links returns a copy of the pins this pin is connected to, in link order.
func (p *Pin) Links() []*Pin {
	out := make([]*Pin, len(p.links))
	copy(out, p.links)
	return out
}

// LinkCount returns the number of links
func (p *Pin) LinkCount() int {
	return len(p.links)
}

// IsLinkedTo reports whether other is in this pin's link list.
func (p *Pin) IsLinkedTo(other *Pin) bool {
	return p.linkIndex(other) >= 0
}

// Children returns the sub-pins created by a split, in order.
func (p *Pin) Children() []*Pin {
	out := make([]*Pin, len(p.children))
	copy(out, p.children)
	return out
}

// IsSplit reports whether the pin is currently expanded into sub-pins.
func (p *Pin) IsSplit() bool {
	return len(p.children) > 0
}

// IsSubPin reports whether the pin was created by splitting another pin.
func (p *Pin) IsSubPin() bool {
	return p.parent != nil
}

// Path is "<node name>.<pin name>", used in messages.
func (p *Pin) Path() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.Name() + "." + p.name
}

// Spec returns the spec this pin would be reallocated from.
func (p *Pin) Spec() PinSpec {
	def := p.defaultValue
	return PinSpec{
		Name:         p.name,
		FriendlyName: p.friendlyName,
		Direction:    p.direction,
		Type:         p.pinType,
		Hidden:       p.hidden,
		Default:      &def,
	}
}

func (p *Pin) linkIndex(other *Pin) int {
	for i, l := range p.links {
		if l == other {
			return i
		}
	}
	return -1
}

// AttachLink appends other to the link list.
func (p *Pin) AttachLink(other *Pin) {
	p.links = append(p.links, other)
}

// InsertLinkAt puts other back at index i, clamped to the list bounds.
func (p *Pin) InsertLinkAt(other *Pin, i int) {
	if i < 0 || i > len(p.links) {
		i = len(p.links)
	}
	p.links = append(p.links, nil)
	copy(p.links[i+1:], p.links[i:])
	p.links[i] = other
}

// DetachLink removes other from the link list and returns its former index, or -1.
func (p *Pin) DetachLink(other *Pin) int {
	i := p.linkIndex(other)
	if i < 0 {
		return -1
	}
	p.links = append(p.links[:i], p.links[i+1:]...)
	return i
}

// AssignDefault replaces the default value without notifying the node.
func (p *Pin) AssignDefault(v cty.Value) {
	p.defaultValue = v
}

// SetHidden toggles visibility
func (p *Pin) SetHidden(hidden bool) {
	p.hidden = hidden
}

// SetHiddenBeforeSplit records the visibility a recombine restores.
func (p *Pin) SetHiddenBeforeSplit(hidden bool) {
	p.hiddenSplit = hidden
}

// HiddenBeforeSplit reports whether the pin was hidden when it was last split.
func (p *Pin) HiddenBeforeSplit() bool {
	return p.hiddenSplit
}

// AttachChildren records sub-pins created by a split.
func (p *Pin) AttachChildren(children []*Pin) {
	p.children = children
	for _, c := range children {
		c.parent = p
	}
}

// DetachChildren clears the split state and returns the former sub-pins.
func (p *Pin) DetachChildren() []*Pin {
	children := p.children
	p.children = nil
	return children
}

// clone copies everything but links; the caller remaps links.
func (p *Pin) clone(owner *Node) *Pin {
	return &Pin{
		name:         p.name,
		friendlyName: p.friendlyName,
		direction:    p.direction,
		pinType:      p.pinType,
		hidden:       p.hidden,
		defaultValue: p.defaultValue,
		owner:        owner,
		hiddenSplit:  p.hiddenSplit,
	}
}
