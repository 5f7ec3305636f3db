package router

import (
	"bytes"
	"context"
	"encoding/json"

	"graphengine/application/batch"
	"graphengine/application/ports"
	pkgerrors "graphengine/pkg/errors"
)

// Handlers holds the built-in operation handlers. Every mutating operation
// runs through the batch pipeline; the single-operation ones become a
// one-operation batch under the rollback policy.
type Handlers struct {
	pipeline *batch.Pipeline
	compiler ports.Compiler
}

// NewHandlers creates the built-in handlers
func NewHandlers(pipeline *batch.Pipeline, compiler ports.Compiler) *Handlers {
	return &Handlers{pipeline: pipeline, compiler: compiler}
}

// Register wires every built-in handler into r
func (h *Handlers) Register(r *Router) error {
	for name, fn := range map[string]HandlerFunc{
		OpBatch:           h.Batch,
		OpAddNode:         h.AddNode,
		OpRemoveNode:      h.RemoveNode,
		OpConnectPins:     h.ConnectPins,
		OpDisconnectPins:  h.DisconnectPins,
		OpSetPinDefault:   h.SetPinDefault,
		OpSplitPin:        h.SplitPin,
		OpRecombinePin:    h.RecombinePin,
		OpToggleNode:      h.ToggleNode,
		OpReconstructNode: h.ReconstructNode,
		OpCompileGraph:    h.CompileGraph,
	} {
		if err := r.Handle(name, fn); err != nil {
			return err
		}
	}
	return nil
}

type graphTarget struct {
	Graph ports.GraphRef `json:"graph_ref"`
}

type runOptions struct {
	DryRun      bool  `json:"dry_run"`
	AutoCompile *bool `json:"auto_compile,omitempty"`
}

func decodePayload(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "malformed payload: %v", err).WithCause(err)
	}
	return nil
}

func (h *Handlers) single(ctx context.Context, call *Call, opts runOptions, fill func(req *batch.Request)) (any, error) {
	req := &batch.Request{
		Graph:       call.Target,
		DryRun:      opts.DryRun,
		AutoCompile: opts.AutoCompile,
		OnError:     batch.PolicyRollback,
	}
	fill(req)
	return h.pipeline.Execute(ctx, call.Graph, req)
}

// Batch runs a full batch request
func (h *Handlers) Batch(ctx context.Context, call *Call) (any, error) {
	req, err := batch.DecodeRequest(call.Payload)
	if err != nil {
		return nil, err
	}
	return h.pipeline.Execute(ctx, call.Graph, req)
}

// AddNode creates one node. The ref defaults to "node".
func (h *Handlers) AddNode(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		batch.NodeSpec
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	if p.Ref == "" {
		p.Ref = "node"
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Nodes = []batch.NodeSpec{p.NodeSpec}
	})
}

// RemoveNode removes one node
func (h *Handlers) RemoveNode(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		Ref string `json:"ref"`
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Removals = []string{p.Ref}
	})
}

// ConnectPins links two pins
func (h *Handlers) ConnectPins(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		batch.LinkSpec
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Connections = []batch.LinkSpec{p.LinkSpec}
	})
}

// DisconnectPins breaks one link, or every link on a pin
func (h *Handlers) DisconnectPins(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		batch.BreakSpec
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.BreakLinks = []batch.BreakSpec{p.BreakSpec}
	})
}

// SetPinDefault sets one input pin's default value
func (h *Handlers) SetPinDefault(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		Ref   string          `json:"ref"`
		Pin   string          `json:"pin"`
		Value json.RawMessage `json:"value"`
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	if p.Ref == "" || p.Pin == "" || len(p.Value) == 0 {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, "ref, pin and value are required")
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.PinValues = batch.PinValues{{Ref: p.Ref, Pin: p.Pin, Value: p.Value}}
	})
}

type pinPayload struct {
	graphTarget
	runOptions
	batch.PinRef
}

// SplitPin expands a structured pin
func (h *Handlers) SplitPin(ctx context.Context, call *Call) (any, error) {
	var p pinPayload
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Splits = []batch.PinRef{p.PinRef}
	})
}

// RecombinePin folds a split pin back together
func (h *Handlers) RecombinePin(ctx context.Context, call *Call) (any, error) {
	var p pinPayload
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Recombines = []batch.PinRef{p.PinRef}
	})
}

// ToggleNode changes a node's enabled state
func (h *Handlers) ToggleNode(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		batch.ToggleSpec
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.EnableToggles = []batch.ToggleSpec{p.ToggleSpec}
	})
}

// ReconstructNode rebuilds a node's pins
func (h *Handlers) ReconstructNode(ctx context.Context, call *Call) (any, error) {
	var p struct {
		graphTarget
		runOptions
		Ref string `json:"ref"`
	}
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	return h.single(ctx, call, p.runOptions, func(req *batch.Request) {
		req.Reconstructions = []string{p.Ref}
	})
}

// CompileGraph runs the host compiler and returns its report
func (h *Handlers) CompileGraph(ctx context.Context, call *Call) (any, error) {
	var p graphTarget
	if err := decodePayload(call.Payload, &p); err != nil {
		return nil, err
	}
	if h.compiler == nil {
		return nil, pkgerrors.New(pkgerrors.KindCompileFailed, "no compiler is configured")
	}
	report, err := h.compiler.Compile(ctx, call.Graph)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.KindCompileFailed, "compiler did not run: %v", err).WithCause(err)
	}
	return report, nil
}
