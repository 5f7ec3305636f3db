package pins

import (
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/schemas"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// ConnectOutcome describes what Connect did.
type ConnectOutcome struct {
	AlreadyLinked bool
	Response      schemas.ResponseKind
	// BrokenLinks counts links the schema asked to replace.
	BrokenLinks int
}

// Connect links source and target after the graph's schema accepts the pair.
// Connecting an already linked pair succeeds without adding a second link.
// The pins may be given in either order.
func Connect(g *aggregates.Graph, source, target *entities.Pin) (ConnectOutcome, error) {
	if source == nil || target == nil {
		return ConnectOutcome{}, pkgerrors.New(pkgerrors.KindPinNotFound, "both pins are required to connect")
	}
	if !g.Owns(source.Node()) || !g.Owns(target.Node()) {
		return ConnectOutcome{}, pkgerrors.Newf(pkgerrors.KindRefNotFound,
			"%s and %s must both belong to graph %s", source.Path(), target.Path(), g.Name())
	}

	output, input := source, target
	if output.Direction() == valueobjects.PinInput && input.Direction() == valueobjects.PinOutput {
		output, input = input, output
	}
	if output.IsLinkedTo(input) {
		return ConnectOutcome{AlreadyLinked: true, Response: schemas.ConnectMake}, nil
	}

	resp := g.Schema().CanConnect(output, input)
	if !resp.Allowed() {
		return ConnectOutcome{Response: resp.Kind}, pkgerrors.Newf(pkgerrors.KindConnectionDisallowed,
			"cannot connect %s to %s: %s", output.Path(), input.Path(), resp.Reason).
			WithDetail("source", output.Path()).
			WithDetail("target", input.Path())
	}

	outcome := ConnectOutcome{Response: resp.Kind}
	if resp.BreaksOutputSide() {
		outcome.BrokenLinks += g.BreakPinLinks(output, true)
	}
	if resp.BreaksInputSide() {
		outcome.BrokenLinks += g.BreakPinLinks(input, true)
	}
	if err := g.LinkPins(output, input); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Disconnect removes the link between source and target and reports whether one existed.
func Disconnect(g *aggregates.Graph, source, target *entities.Pin) bool {
	if source == nil || target == nil {
		return false
	}
	return g.UnlinkPins(source, target)
}

// BreakAllLinks removes every link on pin. With notify set the owning nodes
// are told so derived state is recomputed.
func BreakAllLinks(g *aggregates.Graph, pin *entities.Pin, notify bool) int {
	if pin == nil {
		return 0
	}
	return g.BreakPinLinks(pin, notify)
}
