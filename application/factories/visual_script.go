package factories

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
)

const maxSequenceOutputs = 16

// ScriptPayload is the payload of event graph nodes.
type ScriptPayload struct {
	Class        string `json:"class"`
	MemberName   string `json:"member_name,omitempty"`
	MemberParent string `json:"member_parent,omitempty"`
	Pure         bool   `json:"pure"`
}

func (p *ScriptPayload) Kind() string            { return p.Class }
func (p *ScriptPayload) Clone() entities.Payload { c := *p; return &c }

// VisualScriptFactory creates event graph nodes.
type VisualScriptFactory struct {
	*catalogFactory
}

// NewVisualScriptFactory loads the event graph catalog
func NewVisualScriptFactory(logger *zap.Logger) (*VisualScriptFactory, error) {
	f := &VisualScriptFactory{}
	base, err := newCatalogFactory(valueobjects.DomainVisualScript, logger, f.buildStatic, map[string]buildFunc{
		"Event":        f.buildEvent,
		"CustomEvent":  f.buildCustomEvent,
		"PrintString":  f.buildPrintString,
		"CallFunction": f.buildCallFunction,
		"Sequence":     f.buildSequence,
		"VariableGet":  f.buildVariableGet,
		"VariableSet":  f.buildVariableSet,
		"Delay":        f.buildDelay,
	})
	if err != nil {
		return nil, err
	}
	f.catalogFactory = base
	return f, nil
}

func (f *VisualScriptFactory) buildStatic(t *NodeType, _ entities.Params) (*nodeBuild, error) {
	return &nodeBuild{
		Pins:    t.Pins,
		Payload: &ScriptPayload{Class: t.Class, MemberName: t.Name, Pure: t.Pure},
	}, nil
}

func (f *VisualScriptFactory) buildEvent(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name := params.StringOr("event_name", "ReceiveBeginPlay")
	return &nodeBuild{
		Title:   "Event " + strings.TrimPrefix(name, "Receive"),
		Pins:    t.Pins,
		Payload: &ScriptPayload{Class: t.Class, MemberName: name, MemberParent: "Actor"},
	}, nil
}

func (f *VisualScriptFactory) buildCustomEvent(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, _ := params.String("name")
	return &nodeBuild{
		Title:   name,
		Pins:    t.Pins,
		Payload: &ScriptPayload{Class: t.Class, MemberName: name},
	}, nil
}

func (f *VisualScriptFactory) buildPrintString(t *NodeType, params entities.Params) (*nodeBuild, error) {
	specs, err := overrideDefault(t.Pins, "InString", params, "message")
	if err != nil {
		return nil, err
	}
	if specs, err = overrideDefault(specs, "Duration", params, "duration"); err != nil {
		return nil, err
	}
	return &nodeBuild{
		Pins:    specs,
		Payload: &ScriptPayload{Class: t.Class, MemberName: "PrintString", MemberParent: "KismetSystemLibrary"},
	}, nil
}

func (f *VisualScriptFactory) buildDelay(t *NodeType, params entities.Params) (*nodeBuild, error) {
	specs, err := overrideDefault(t.Pins, "Duration", params, "duration")
	if err != nil {
		return nil, err
	}
	return &nodeBuild{
		Pins:    specs,
		Payload: &ScriptPayload{Class: t.Class, MemberName: "Delay", MemberParent: "KismetSystemLibrary"},
	}, nil
}

func (f *VisualScriptFactory) buildCallFunction(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, _ := params.String("function")
	sig, ok := f.catalog.Function(name)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest,
			"unknown function %q (known: %s)", name, strings.Join(f.catalog.Functions(), ", ")).
			WithDetail("function", name)
	}
	return &nodeBuild{
		Title: sig.Title,
		Pins:  sig.Pins,
		Payload: &ScriptPayload{
			Class:        t.Class,
			MemberName:   sig.Name,
			MemberParent: params.StringOr("target", "Actor"),
			Pure:         sig.Pure,
		},
	}, nil
}

func (f *VisualScriptFactory) buildSequence(t *NodeType, params entities.Params) (*nodeBuild, error) {
	n, set, err := params.Int("outputs")
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, err.Error())
	}
	if !set {
		n = 2
	}
	if n < 1 || n > maxSequenceOutputs {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest,
			"Sequence outputs must be between 1 and %d, got %d", maxSequenceOutputs, n)
	}

	specs := append([]entities.PinSpec(nil), t.Pins...)
	for i := 0; i < n; i++ {
		specs = append(specs, entities.PinSpec{
			Name:         fmt.Sprintf("then_%d", i),
			FriendlyName: fmt.Sprintf("Then %d", i),
			Direction:    valueobjects.PinOutput,
			Type:         valueobjects.ExecPin(),
		})
	}
	return &nodeBuild{Pins: specs, Payload: &ScriptPayload{Class: t.Class}}, nil
}

func (f *VisualScriptFactory) buildVariableGet(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, pinType, err := variableParams(params)
	if err != nil {
		return nil, err
	}
	specs := append([]entities.PinSpec(nil), t.Pins...)
	specs = append(specs, entities.PinSpec{Name: name, Direction: valueobjects.PinOutput, Type: pinType})
	return &nodeBuild{
		Title:   "Get " + name,
		Pins:    specs,
		Payload: &ScriptPayload{Class: t.Class, MemberName: name, Pure: true},
	}, nil
}

func (f *VisualScriptFactory) buildVariableSet(t *NodeType, params entities.Params) (*nodeBuild, error) {
	name, pinType, err := variableParams(params)
	if err != nil {
		return nil, err
	}
	// value input after the catalog inputs, value output after "then"
	var specs []entities.PinSpec
	for _, s := range t.Pins {
		if s.Direction == valueobjects.PinOutput {
			continue
		}
		specs = append(specs, s)
	}
	specs = append(specs, entities.PinSpec{Name: name, Direction: valueobjects.PinInput, Type: pinType})
	for _, s := range t.Pins {
		if s.Direction == valueobjects.PinOutput {
			specs = append(specs, s)
		}
	}
	specs = append(specs, entities.PinSpec{
		Name: name, FriendlyName: "Output Get", Direction: valueobjects.PinOutput, Type: pinType,
	})
	return &nodeBuild{
		Title:   "Set " + name,
		Pins:    specs,
		Payload: &ScriptPayload{Class: t.Class, MemberName: name},
	}, nil
}

func variableParams(params entities.Params) (string, valueobjects.PinType, error) {
	name, _ := params.String("variable")
	name = strings.TrimSpace(name)
	pinType, err := valueobjects.ParsePinType(params.StringOr("type", "float"))
	if err != nil {
		return "", valueobjects.PinType{}, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "variable %s: %v", name, err)
	}
	if pinType.IsExecLike() {
		return "", valueobjects.PinType{}, pkgerrors.Newf(pkgerrors.KindInvalidRequest,
			"variable %s cannot have type %s", name, pinType)
	}
	return name, pinType, nil
}
