// Package validators checks whole graphs against the structural rules each
// domain's compiler enforces.
package validators

import (
	"fmt"
	"strings"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/pkg/errors"
)

// Severity of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem the validator found
type Finding struct {
	Severity Severity
	NodeID   string
	Message  string
}

// GraphValidator validates graph-level domain rules
type GraphValidator struct {
	eventTypes       []string
	execInputName    string
	materialOutput   string
	particleOutput   string
	entryType        string
	warnUnusedOutput bool
	maxFindings      int
}

// NewGraphValidator creates a new graph validator with default rules
func NewGraphValidator() *GraphValidator {
	return &GraphValidator{
		eventTypes:       []string{"Event", "CustomEvent"},
		execInputName:    "execute",
		materialOutput:   "MaterialOutput",
		particleOutput:   "ParticleOutput",
		entryType:        "Entry",
		warnUnusedOutput: true,
		maxFindings:      200,
	}
}

// Validate runs the rules of the graph's domain. Findings come back in node
// order; a graph with no findings is clean.
func (v *GraphValidator) Validate(g *aggregates.Graph) []Finding {
	var out []Finding
	switch g.Domain() {
	case valueobjects.DomainVisualScript:
		out = v.validateVisualScript(g)
	case valueobjects.DomainMaterial:
		out = v.validateMaterial(g)
	case valueobjects.DomainParticle:
		out = v.validateParticle(g)
	case valueobjects.DomainAnimState:
		out = v.validateAnimState(g)
	}
	if v.maxFindings > 0 && len(out) > v.maxFindings {
		out = out[:v.maxFindings]
	}
	return out
}

// Errors folds the error findings into a ValidationErrors collection, or nil
// when there are none.
func (v *GraphValidator) Errors(g *aggregates.Graph) error {
	validationErrors := errors.NewValidationErrors()
	for _, f := range v.Validate(g) {
		if f.Severity != SeverityError {
			continue
		}
		field := f.NodeID
		if field == "" {
			field = "graph"
		}
		validationErrors.Add(field, f.Message)
	}
	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

func (v *GraphValidator) validateVisualScript(g *aggregates.Graph) []Finding {
	var out []Finding
	seen := make(map[string]*entities.Node)

	for _, n := range g.Nodes() {
		if !n.IsEnabled() {
			continue
		}
		if v.isEvent(n) {
			key := strings.ToLower(n.Title())
			if first, dup := seen[key]; dup {
				out = append(out, errorf(n, "duplicate event %q, already defined by %s", n.Title(), first.Name()))
			} else {
				seen[key] = n
			}
		}

		for _, p := range n.Pins() {
			if p.Type().Category != valueobjects.PinCategoryExec {
				continue
			}
			switch p.Direction() {
			case valueobjects.PinInput:
				if p.MatchesName(v.execInputName) && p.LinkCount() == 0 {
					out = append(out, warnf(n, "%s is never executed", n.Name()))
				}
			case valueobjects.PinOutput:
				for _, linked := range p.Links() {
					if target := linked.Node(); target != nil && !target.IsEnabled() {
						out = append(out, warnf(n, "%s.%s runs disabled node %s", n.Name(), p.DisplayName(), target.Name()))
					}
				}
			}
		}
	}
	return out
}

func (v *GraphValidator) isEvent(n *entities.Node) bool {
	for _, t := range v.eventTypes {
		if strings.EqualFold(n.TypeName(), t) {
			return true
		}
	}
	return false
}

func (v *GraphValidator) validateMaterial(g *aggregates.Graph) []Finding {
	var out []Finding
	var result *entities.Node

	for _, n := range g.Nodes() {
		if strings.EqualFold(n.TypeName(), v.materialOutput) {
			if result == nil {
				result = n
			}
			continue
		}
		if !v.warnUnusedOutput {
			continue
		}
		if !hasOutputs(n) || anyOutputLinked(n) {
			continue
		}
		out = append(out, warnf(n, "%s is not connected to anything", n.Name()))
	}

	if result == nil {
		return append([]Finding{{Severity: SeverityError, Message: "material has no " + v.materialOutput + " node"}}, out...)
	}
	if !anyInputLinked(result) {
		out = append(out, warnf(result, "%s has no connected inputs", result.Name()))
	}
	return out
}

func (v *GraphValidator) validateParticle(g *aggregates.Graph) []Finding {
	for _, n := range g.Nodes() {
		if strings.EqualFold(n.TypeName(), v.particleOutput) {
			return nil
		}
	}
	return []Finding{{Severity: SeverityError, Message: "script has no " + v.particleOutput + " node"}}
}

func (v *GraphValidator) validateAnimState(g *aggregates.Graph) []Finding {
	var entries []*entities.Node
	for _, n := range g.Nodes() {
		if strings.EqualFold(n.TypeName(), v.entryType) {
			entries = append(entries, n)
		}
	}

	switch len(entries) {
	case 0:
		return []Finding{{Severity: SeverityError, Message: "state machine has no entry node"}}
	case 1:
	default:
		var out []Finding
		for _, n := range entries[1:] {
			out = append(out, errorf(n, "state machine has %d entry nodes", len(entries)))
		}
		return out
	}

	if !anyOutputLinked(entries[0]) {
		return []Finding{errorf(entries[0], "entry node is not connected to a state")}
	}
	return nil
}

func hasOutputs(n *entities.Node) bool {
	for _, p := range n.Pins() {
		if p.Direction() == valueobjects.PinOutput {
			return true
		}
	}
	return false
}

func anyOutputLinked(n *entities.Node) bool {
	return anyLinked(n, valueobjects.PinOutput)
}

func anyInputLinked(n *entities.Node) bool {
	return anyLinked(n, valueobjects.PinInput)
}

func anyLinked(n *entities.Node, dir valueobjects.PinDirection) bool {
	for _, p := range n.Pins() {
		if p.Direction() != dir {
			continue
		}
		if p.LinkCount() > 0 {
			return true
		}
		for _, c := range p.Children() {
			if c.LinkCount() > 0 {
				return true
			}
		}
	}
	return false
}

func errorf(n *entities.Node, format string, args ...interface{}) Finding {
	return Finding{Severity: SeverityError, NodeID: n.ID().String(), Message: fmt.Sprintf(format, args...)}
}

func warnf(n *entities.Node, format string, args ...interface{}) Finding {
	return Finding{Severity: SeverityWarning, NodeID: n.ID().String(), Message: fmt.Sprintf(format, args...)}
}
