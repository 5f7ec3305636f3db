// Package schemas holds the per-domain rules that decide whether two pins may be
// connected and whether a structured pin may be split or recombined.
package schemas

import (
	"fmt"

	"graphengine/domain/config"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

// ResponseKind says how a connection may be made.
type ResponseKind int

const (
	// ConnectMake links the pins as they are
	ConnectMake ResponseKind = iota
	// ConnectBreakOthersA breaks existing links on the output side first
	ConnectBreakOthersA
	// ConnectBreakOthersB breaks existing links on the input side first
	ConnectBreakOthersB
	// ConnectBreakOthersAB breaks existing links on both sides first
	ConnectBreakOthersAB
	// ConnectDisallow rejects the connection
	ConnectDisallow
)

func (k ResponseKind) String() string {
	switch k {
	case ConnectMake:
		return "make"
	case ConnectBreakOthersA:
		return "break_others_a"
	case ConnectBreakOthersB:
		return "break_others_b"
	case ConnectBreakOthersAB:
		return "break_others_ab"
	default:
		return "disallow"
	}
}

// ConnectResponse is a schema's answer to a connection query.
type ConnectResponse struct {
	Kind   ResponseKind
	Reason string
}

// Allowed reports whether the connection may be made
func (r ConnectResponse) Allowed() bool {
	return r.Kind != ConnectDisallow
}

// BreaksOutputSide reports whether existing output links must go first
func (r ConnectResponse) BreaksOutputSide() bool {
	return r.Kind == ConnectBreakOthersA || r.Kind == ConnectBreakOthersAB
}

// BreaksInputSide reports whether existing input links must go first
func (r ConnectResponse) BreaksInputSide() bool {
	return r.Kind == ConnectBreakOthersB || r.Kind == ConnectBreakOthersAB
}

func allow(kind ResponseKind) ConnectResponse {
	return ConnectResponse{Kind: kind}
}

func disallow(format string, args ...interface{}) ConnectResponse {
	return ConnectResponse{Kind: ConnectDisallow, Reason: fmt.Sprintf(format, args...)}
}

// Schema answers connection, split and recombine legality for one domain.
// CanConnect always receives the output pin first.
type Schema interface {
	Domain() valueobjects.Domain
	CanConnect(output, input *entities.Pin) ConnectResponse
	CanSplit(pin *entities.Pin) bool
	CanRecombine(pin *entities.Pin) bool
}

// ForDomain returns the schema for a domain.
func ForDomain(d valueobjects.Domain, cfg *config.DomainConfig) (Schema, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	base := baseRules{allowSelf: cfg.AllowSelfConnections, maxLinks: cfg.MaxLinksPerPin}
	switch d {
	case valueobjects.DomainVisualScript:
		return &VisualScriptSchema{baseRules: base}, nil
	case valueobjects.DomainMaterial:
		return &MaterialSchema{baseRules: base}, nil
	case valueobjects.DomainParticle:
		return &ParticleSchema{baseRules: base}, nil
	case valueobjects.DomainAnimState:
		return &AnimStateSchema{baseRules: base}, nil
	}
	return nil, fmt.Errorf("no schema for domain %q", d)
}

// baseRules are the checks every domain shares.
type baseRules struct {
	allowSelf bool
	maxLinks  int
}

func (b baseRules) check(output, input *entities.Pin) (ConnectResponse, bool) {
	if output == nil || input == nil {
		return disallow("both pins are required"), false
	}
	if output.Direction() != valueobjects.PinOutput || input.Direction() != valueobjects.PinInput {
		return disallow("%s and %s must be an output and an input", output.Path(), input.Path()), false
	}
	if output.Node() == input.Node() && !b.allowSelf {
		return disallow("cannot connect %s to a pin on the same node", output.Path()), false
	}
	if output.IsSplit() || input.IsSplit() {
		return disallow("a split pin cannot be connected; connect its sub-pins instead"), false
	}
	return ConnectResponse{}, true
}

// admit applies the per-pin link limit to an allowed response. A side whose
// links the response breaks first is not counted.
func (b baseRules) admit(output, input *entities.Pin, kind ResponseKind) ConnectResponse {
	resp := allow(kind)
	if b.maxLinks <= 0 {
		return resp
	}
	if !resp.BreaksOutputSide() && output.LinkCount() >= b.maxLinks {
		return disallow("%s reached the link limit of %d", output.Path(), b.maxLinks)
	}
	if !resp.BreaksInputSide() && input.LinkCount() >= b.maxLinks {
		return disallow("%s reached the link limit of %d", input.Path(), b.maxLinks)
	}
	return resp
}

// splittable is the struct-pin split rule shared by the domains that allow splitting.
func splittable(p *entities.Pin) bool {
	if p == nil || p.IsSplit() || p.IsSubPin() || p.LinkCount() > 0 {
		return false
	}
	_, ok := p.Type().StructFields()
	return ok
}

func recombinable(p *entities.Pin) bool {
	if p == nil {
		return false
	}
	if p.IsSubPin() {
		p = p.Parent()
	}
	return p.IsSplit()
}

// dataCompatible applies the scalar promotion rules shared by script-like domains.
func dataCompatible(out, in valueobjects.PinType) bool {
	if out.Category == valueobjects.PinCategoryWildcard || in.Category == valueobjects.PinCategoryWildcard {
		return true
	}
	if out.Equals(in) {
		return true
	}
	if out.Category == valueobjects.PinCategoryInt && in.Category == valueobjects.PinCategoryFloat {
		return true
	}
	if out.Category == valueobjects.PinCategoryObject && in.Category == valueobjects.PinCategoryObject {
		return in.SubCategory == "" || out.SubCategory == in.SubCategory
	}
	if out.Category == valueobjects.PinCategoryName && in.Category == valueobjects.PinCategoryString {
		return true
	}
	return false
}
