package schemas

import (
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

// VisualScriptSchema governs event graphs. Exec outputs fan out to a single
// target and data inputs accept a single source; both replace an existing link.
type VisualScriptSchema struct {
	baseRules
}

func (s *VisualScriptSchema) Domain() valueobjects.Domain { return valueobjects.DomainVisualScript }

func (s *VisualScriptSchema) CanConnect(output, input *entities.Pin) ConnectResponse {
	if resp, ok := s.check(output, input); !ok {
		return resp
	}
	out, in := output.Type(), input.Type()

	outExec := out.Category == valueobjects.PinCategoryExec
	inExec := in.Category == valueobjects.PinCategoryExec
	switch {
	case outExec && inExec:
		return s.admit(output, input, ConnectBreakOthersA)
	case outExec || inExec:
		return disallow("cannot connect exec pin to data pin (%s -> %s)", out, in)
	}

	if out.Category == valueobjects.PinCategoryDelegate || in.Category == valueobjects.PinCategoryDelegate {
		if out.Category != in.Category {
			return disallow("delegate pins only connect to delegate pins")
		}
		return s.admit(output, input, ConnectBreakOthersB)
	}

	if !dataCompatible(out, in) {
		return disallow("%s is not compatible with %s", out, in)
	}
	return s.admit(output, input, ConnectBreakOthersB)
}

func (s *VisualScriptSchema) CanSplit(pin *entities.Pin) bool     { return splittable(pin) }
func (s *VisualScriptSchema) CanRecombine(pin *entities.Pin) bool { return recombinable(pin) }

// MaterialSchema governs material expression graphs. Every input takes one
// source and numeric vectors of any width are interchangeable.
type MaterialSchema struct {
	baseRules
}

func (s *MaterialSchema) Domain() valueobjects.Domain { return valueobjects.DomainMaterial }

func (s *MaterialSchema) CanConnect(output, input *entities.Pin) ConnectResponse {
	if resp, ok := s.check(output, input); !ok {
		return resp
	}
	out, in := output.Type(), input.Type()
	if out.Category == valueobjects.PinCategoryTexture || in.Category == valueobjects.PinCategoryTexture {
		if out.Category != in.Category {
			return disallow("texture pins only connect to texture pins")
		}
		return s.admit(output, input, ConnectBreakOthersB)
	}
	if !out.IsNumeric() || !in.IsNumeric() {
		return disallow("material pins must be numeric (%s -> %s)", out, in)
	}
	if out.Arity() > 1 && in.Arity() > 1 && out.Arity() < in.Arity() {
		return disallow("cannot widen %s into %s", out, in)
	}
	return s.admit(output, input, ConnectBreakOthersB)
}

// Material pins are never split.
func (s *MaterialSchema) CanSplit(*entities.Pin) bool     { return false }
func (s *MaterialSchema) CanRecombine(*entities.Pin) bool { return false }

// ParticleSchema governs particle stack graphs: parameter maps form a single
// chain and data pins must agree on type.
type ParticleSchema struct {
	baseRules
}

func (s *ParticleSchema) Domain() valueobjects.Domain { return valueobjects.DomainParticle }

func (s *ParticleSchema) CanConnect(output, input *entities.Pin) ConnectResponse {
	if resp, ok := s.check(output, input); !ok {
		return resp
	}
	out, in := output.Type(), input.Type()
	outMap := out.Category == valueobjects.PinCategoryParameterMap
	inMap := in.Category == valueobjects.PinCategoryParameterMap
	switch {
	case outMap && inMap:
		return s.admit(output, input, ConnectBreakOthersAB)
	case outMap || inMap:
		return disallow("parameter map pins only connect to parameter map pins")
	}
	if !dataCompatible(out, in) {
		return disallow("%s is not compatible with %s", out, in)
	}
	return s.admit(output, input, ConnectBreakOthersB)
}

func (s *ParticleSchema) CanSplit(pin *entities.Pin) bool     { return splittable(pin) }
func (s *ParticleSchema) CanRecombine(pin *entities.Pin) bool { return recombinable(pin) }

// AnimStateSchema governs state machines. Only transition pins exist; the entry
// node points at exactly one state.
type AnimStateSchema struct {
	baseRules
}

func (s *AnimStateSchema) Domain() valueobjects.Domain { return valueobjects.DomainAnimState }

func (s *AnimStateSchema) CanConnect(output, input *entities.Pin) ConnectResponse {
	if resp, ok := s.check(output, input); !ok {
		return resp
	}
	if output.Type().Category != valueobjects.PinCategoryTransition ||
		input.Type().Category != valueobjects.PinCategoryTransition {
		return disallow("state machine pins must be transitions")
	}
	if output.Node().TypeName() == "Entry" {
		return s.admit(output, input, ConnectBreakOthersA)
	}
	for _, existing := range output.Links() {
		if existing.Node() == input.Node() {
			return disallow("%s already transitions to %s", output.Node().Name(), input.Node().Name())
		}
	}
	return s.admit(output, input, ConnectMake)
}

// State machine pins are never split.
func (s *AnimStateSchema) CanSplit(*entities.Pin) bool     { return false }
func (s *AnimStateSchema) CanRecombine(*entities.Pin) bool { return false }
