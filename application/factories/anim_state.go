package factories

import (
	"strconv"

	"go.uber.org/zap"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

// StatePayload is the payload of state machine nodes. On the Entry node,
// InitialState follows whatever state the entry output links to.
type StatePayload struct {
	Class        string   `json:"class"`
	StateName    string   `json:"state_name,omitempty"`
	Aliased      []string `json:"aliased_states,omitempty"`
	Duration     float64  `json:"crossfade_duration,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	InitialState string   `json:"initial_state,omitempty"`
}

func (p *StatePayload) Kind() string { return p.Class }

func (p *StatePayload) Clone() entities.Payload {
	c := *p
	c.Aliased = append([]string(nil), p.Aliased...)
	return &c
}

// PinLinksChanged tracks the initial state of an Entry node.
func (p *StatePayload) PinLinksChanged(node *entities.Node, pin *entities.Pin) {
	if node.TypeName() != "Entry" || pin.Direction() != valueobjects.PinOutput {
		return
	}
	p.InitialState = ""
	for _, target := range pin.Links() {
		if sp, ok := target.Node().Payload().(*StatePayload); ok {
			p.InitialState = sp.StateName
		}
	}
}

// AnimStateFactory creates animation state machine nodes.
type AnimStateFactory struct {
	*catalogFactory
}

// NewAnimStateFactory loads the state machine catalog
func NewAnimStateFactory(logger *zap.Logger) (*AnimStateFactory, error) {
	f := &AnimStateFactory{}
	base, err := newCatalogFactory(valueobjects.DomainAnimState, logger, f.buildStatic, map[string]buildFunc{
		"State":      f.buildNamed,
		"Conduit":    f.buildNamed,
		"StateAlias": f.buildAlias,
		"Transition": f.buildTransition,
	})
	if err != nil {
		return nil, err
	}
	f.catalogFactory = base
	return f, nil
}

func (f *AnimStateFactory) buildStatic(t *NodeType, _ entities.Params) (*nodeBuild, error) {
	return &nodeBuild{Pins: t.Pins, Payload: &StatePayload{Class: t.Class}}, nil
}

func (f *AnimStateFactory) buildNamed(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, _ := params.String("name")
	return &nodeBuild{Title: name, Pins: t.Pins, Payload: &StatePayload{Class: t.Class, StateName: name}}, nil
}

func (f *AnimStateFactory) buildAlias(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, _ := params.String("name")
	return &nodeBuild{
		Title:   name,
		Pins:    t.Pins,
		Payload: &StatePayload{Class: t.Class, StateName: name, Aliased: stringList(params, "states")},
	}, nil
}

func (f *AnimStateFactory) buildTransition(t *NodeType, params entities.Params) (*nodeBuild, error) {
	duration := 0.2
	if s, ok := params.String("duration"); ok {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil || d < 0 {
			return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "transition duration must be a non-negative number, got %q", s)
		}
		duration = d
	}
	priority, _, err := params.Int("priority")
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, err.Error())
	}
	return &nodeBuild{
		Pins:    t.Pins,
		Payload: &StatePayload{Class: t.Class, Duration: duration, Priority: priority},
	}, nil
}
