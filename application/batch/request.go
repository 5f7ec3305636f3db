// Package batch executes a bundle of node, pin and connection instructions
// against one graph in a fixed phase order, under an error policy that decides
// whether a failure stops, skips or undoes the work.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"graphengine/application/ports"
	"graphengine/domain/config"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/utils"
)

// ErrorPolicy decides what happens after the first failed operation.
type ErrorPolicy string

const (
	// PolicyStop halts at the first failure and keeps what was applied
	PolicyStop ErrorPolicy = "stop"
	// PolicyContinue records every failure and keeps going
	PolicyContinue ErrorPolicy = "continue"
	// PolicyRollback halts at the first failure and undoes the whole batch
	PolicyRollback ErrorPolicy = "rollback"
)

// PinRef addresses one pin of one node
type PinRef struct {
	Ref string `json:"ref" validate:"required"`
	Pin string `json:"pin" validate:"required"`
}

// LinkSpec names both ends of a connection
type LinkSpec struct {
	SourceRef string `json:"source_ref" validate:"required"`
	SourcePin string `json:"source_pin" validate:"required"`
	TargetRef string `json:"target_ref" validate:"required"`
	TargetPin string `json:"target_pin" validate:"required"`
}

// BreakSpec removes one link (source/target form) or every link on a pin
// (ref/pin form).
type BreakSpec struct {
	Ref       string `json:"ref,omitempty"`
	Pin       string `json:"pin,omitempty"`
	SourceRef string `json:"source_ref,omitempty"`
	SourcePin string `json:"source_pin,omitempty"`
	TargetRef string `json:"target_ref,omitempty"`
	TargetPin string `json:"target_pin,omitempty"`
}

// BreaksAll reports whether the spec uses the ref/pin form
func (b BreakSpec) BreaksAll() bool {
	return b.SourceRef == "" && b.TargetRef == ""
}

func (b BreakSpec) validate() error {
	if b.BreaksAll() {
		if b.Ref == "" || b.Pin == "" {
			return fmt.Errorf("needs either ref and pin or source_ref, source_pin, target_ref and target_pin")
		}
		return nil
	}
	if b.SourceRef == "" || b.SourcePin == "" || b.TargetRef == "" || b.TargetPin == "" {
		return fmt.Errorf("source_ref, source_pin, target_ref and target_pin are all required")
	}
	return nil
}

// ToggleSpec sets the enabled state of a node
type ToggleSpec struct {
	Ref   string `json:"ref" validate:"required"`
	State string `json:"state" validate:"required"`
}

// NodeSpec creates one node. Ref is the name later operations in the batch
// use for it.
type NodeSpec struct {
	Ref        string                 `json:"ref" validate:"required"`
	Type       string                 `json:"type" validate:"required"`
	Position   *valueobjects.Position `json:"position,omitempty"`
	Properties entities.Params        `json:"properties,omitempty"`
}

// PinValue is one "ref.pin" default assignment.
type PinValue struct {
	Ref   string
	Pin   string
	Value json.RawMessage
}

// Key is the "ref.pin" form the value was sent as
func (v PinValue) Key() string {
	return v.Ref + "." + v.Pin
}

// PinValues keeps pin_values in document order. JSON objects have no order in
// Go maps, so it decodes the object token by token.
type PinValues []PinValue

// UnmarshalJSON reads a {"ref.pin": value} object preserving key order.
func (pv *PinValues) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*pv = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("pin_values must be an object")
	}

	var out PinValues
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("pin_values[%q]: %w", key, err)
		}
		ref, pin, ok := strings.Cut(key, ".")
		if !ok || strings.TrimSpace(ref) == "" || strings.TrimSpace(pin) == "" {
			return fmt.Errorf("pin_values key %q must look like ref.pin", key)
		}
		if seen[key] {
			return fmt.Errorf("pin_values key %q appears twice", key)
		}
		seen[key] = true
		out = append(out, PinValue{Ref: ref, Pin: pin, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*pv = out
	return nil
}

// MarshalJSON writes the values back as an object in the same order.
func (pv PinValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range pv {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Key())
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(v.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(v.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Request is one batch. Operations run phase by phase in field order.
type Request struct {
	Graph ports.GraphRef `json:"graph_ref" validate:"-"`

	Removals        []string     `json:"removals,omitempty" validate:"dive,required"`
	BreakLinks      []BreakSpec  `json:"break_links,omitempty"`
	EnableToggles   []ToggleSpec `json:"enable_toggles,omitempty" validate:"dive"`
	Reconstructions []string     `json:"reconstructions,omitempty" validate:"dive,required"`

	Splits          []PinRef    `json:"splits,omitempty" validate:"dive"`
	Recombines      []PinRef    `json:"recombines,omitempty" validate:"dive"`
	PostSplitBreaks []BreakSpec `json:"post_split_breaks,omitempty"`

	Nodes       []NodeSpec `json:"nodes,omitempty" validate:"dive"`
	Connections []LinkSpec `json:"connections,omitempty" validate:"dive"`
	PinValues   PinValues  `json:"pin_values,omitempty"`

	AutoArrange bool        `json:"auto_arrange"`
	AutoCompile *bool       `json:"auto_compile,omitempty"`
	DryRun      bool        `json:"dry_run"`
	OnError     ErrorPolicy `json:"on_error,omitempty" validate:"omitempty,oneof=rollback continue stop"`
}

// DecodeRequest parses a request document. Unknown fields are rejected so
// typos in operation lists do not pass silently.
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "malformed batch request: %v", err).WithCause(err)
	}
	return &req, nil
}

// Policy returns the effective error policy
func (r *Request) Policy(cfg *config.DomainConfig) ErrorPolicy {
	if r.OnError != "" {
		return r.OnError
	}
	if cfg != nil && cfg.DefaultOnError != "" {
		return ErrorPolicy(cfg.DefaultOnError)
	}
	return PolicyStop
}

// ShouldCompile reports whether auto_compile is in effect. It defaults to on.
func (r *Request) ShouldCompile(cfg *config.DomainConfig) bool {
	if r.AutoCompile != nil {
		return *r.AutoCompile
	}
	if cfg != nil {
		return cfg.DefaultAutoCompile
	}
	return true
}

// OperationCount is the number of operations over every phase.
func (r *Request) OperationCount() int {
	return len(r.Removals) + len(r.BreakLinks) + len(r.EnableToggles) + len(r.Reconstructions) +
		len(r.Splits) + len(r.Recombines) + len(r.PostSplitBreaks) +
		len(r.Nodes) + len(r.Connections) + len(r.PinValues)
}

// Validate checks the shape of the request. It does not look at the graph.
func (r *Request) Validate(cfg *config.DomainConfig) error {
	if err := utils.ValidateStruct(r); err != nil {
		return pkgerrors.New(pkgerrors.KindInvalidRequest, err.Error())
	}

	for _, group := range []struct {
		phase Phase
		list  []BreakSpec
	}{{PhaseBreakLinks, r.BreakLinks}, {PhasePostSplitBreaks, r.PostSplitBreaks}} {
		for i, b := range group.list {
			if err := b.validate(); err != nil {
				return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "%s[%d] %v", group.phase, i, err)
			}
		}
	}

	refs := make(map[string]bool, len(r.Nodes))
	for i, n := range r.Nodes {
		key := strings.ToLower(n.Ref)
		if refs[key] {
			return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "nodes[%d] reuses ref %q", i, n.Ref).
				WithDetail("ref", n.Ref)
		}
		refs[key] = true
	}

	if cfg != nil && cfg.MaxOperationsPerBatch > 0 && r.OperationCount() > cfg.MaxOperationsPerBatch {
		return pkgerrors.Newf(pkgerrors.KindInvalidRequest,
			"batch has %d operations, the limit is %d", r.OperationCount(), cfg.MaxOperationsPerBatch)
	}
	return nil
}
