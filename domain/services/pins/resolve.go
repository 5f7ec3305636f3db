// Package pins resolves pins by name and manages links, split state and default
// values on a borrowed graph. Nothing here panics; failures come back as
// errors whose kind (pkg/errors) tells "not found", "not allowed" and
// "not splittable" apart.
package pins

import (
	"strings"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

// AnyDirection disables the direction filter in Find.
const AnyDirection valueobjects.PinDirection = ""

type matchPass func(p *entities.Pin, name string) bool

// The passes run in order and the first pass with a hit wins, so a visible
// exact name is never shadowed by a hidden pin sharing its display name.
var passes = []matchPass{
	func(p *entities.Pin, name string) bool {
		return !p.IsHidden() && p.MatchesName(name)
	},
	func(p *entities.Pin, name string) bool {
		return !p.IsHidden() && p.MatchesFriendlyName(name)
	},
	func(p *entities.Pin, name string) bool {
		return p.IsHidden() && (p.MatchesName(name) || p.MatchesFriendlyName(name))
	},
}

// Find looks a pin up on node by name. Within a pass, declaration order breaks ties.
func Find(node *entities.Node, name string, dir valueobjects.PinDirection) *entities.Pin {
	if node == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	pins := node.Pins()
	for _, pass := range passes {
		for _, p := range pins {
			if dir != AnyDirection && p.Direction() != dir {
				continue
			}
			if pass(p, name) {
				return p
			}
		}
	}
	return nil
}

// FindByAlias tries each candidate name in order and returns the first hit.
func FindByAlias(node *entities.Node, names []string, dir valueobjects.PinDirection) *entities.Pin {
	for _, name := range names {
		if p := Find(node, name, dir); p != nil {
			return p
		}
	}
	return nil
}
