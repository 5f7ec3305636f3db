package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphengine/application/batch"
	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/events"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/extensions"
)

// Unrouted reasons reported in the error details
const (
	ReasonUnknownOperation = "unknown_operation"
	ReasonNoHandler        = "no_handler"
)

// Call is one routed invocation. Graph and Factory are only set while the
// handler runs on the main thread.
type Call struct {
	Operation  string
	DomainHint string
	Payload    json.RawMessage
	Target     ports.GraphRef

	Graph   *aggregates.Graph
	Factory factories.NodeFactory

	// Domain of the resolved graph, kept after Graph is released
	Domain string

	descriptor OperationDescriptor
	handler    HandlerFunc
	targetErr  error
}

// Routed reports whether the operation is in the table and has a handler
func (c *Call) Routed() bool {
	return c.handler != nil
}

// Descriptor returns the table entry of the operation
func (c *Call) Descriptor() OperationDescriptor {
	return c.descriptor
}

// HandlerFunc runs one operation against call.Graph
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// Middleware wraps a handler
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorBody is the error part of a Response
type ErrorBody struct {
	Kind    pkgerrors.Kind         `json:"kind"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Response is what Route returns for every call
type Response struct {
	Success   bool       `json:"success"`
	Operation string     `json:"operation"`
	Domain    string     `json:"domain,omitempty"`
	Result    any        `json:"result,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

// Router dispatches operations by name
type Router struct {
	resolver ports.GraphResolver
	registry *factories.Registry
	thread   ports.MainThread
	hooks    *extensions.HookManager
	logger   *zap.Logger

	mu          sync.RWMutex
	handlers    map[string]HandlerFunc
	middlewares []Middleware
}

// Option configures a Router
type Option func(*Router)

// WithMainThread runs every call through the host's main-thread executor
func WithMainThread(t ports.MainThread) Option {
	return func(r *Router) { r.thread = t }
}

// WithHooks sets the hook manager fired around calls
func WithHooks(h *extensions.HookManager) Option {
	return func(r *Router) { r.hooks = h }
}

// WithMiddleware appends middleware; the first one given is the outermost
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Router) { r.middlewares = append(r.middlewares, mw...) }
}

// NewRouter creates a router with no handlers
func NewRouter(resolver ports.GraphResolver, registry *factories.Registry, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		resolver: resolver,
		registry: registry,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle wires a handler to an operation of the table
func (r *Router) Handle(name string, h HandlerFunc) error {
	if _, ok := Lookup(name); !ok {
		return fmt.Errorf("operation %q is not in the operation table", name)
	}
	if h == nil {
		return fmt.Errorf("nil handler for operation %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for operation %q", name)
	}
	r.handlers[name] = h
	return nil
}

// Use appends middleware
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw...)
}

// Handled lists the operations that have a handler, sorted
func (r *Router) Handled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Route runs one operation. It never panics and never returns a bare error;
// every outcome is a Response.
func (r *Router) Route(ctx context.Context, domainHint, operation string, payload json.RawMessage) Response {
	call := &Call{Operation: operation, DomainHint: domainHint, Payload: payload}

	r.mu.RLock()
	if d, ok := Lookup(operation); ok {
		call.descriptor = d
		call.handler = r.handlers[operation]
	}
	mws := r.middlewares
	r.mu.RUnlock()

	if call.Routed() {
		call.targetErr = decodeTarget(call)
	}

	h := HandlerFunc(r.dispatch)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	result, err := invoke(ctx, h, call)
	if err != nil {
		if hookErr := r.hooks.Execute(ctx, extensions.HookRouteFailed, err); hookErr != nil {
			r.logger.Warn("route_failed hooks failed", zap.String("operation", operation), zap.Error(hookErr))
		}
	}
	return newResponse(call, result, err)
}

func invoke(ctx context.Context, h HandlerFunc, call *Call) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = pkgerrors.Newf(pkgerrors.KindInternal, "operation %s panicked: %v", call.Operation, p)
		}
	}()
	return h(ctx, call)
}

func (r *Router) dispatch(ctx context.Context, call *Call) (any, error) {
	if _, ok := Lookup(call.Operation); !ok {
		return nil, unrouted(call.Operation, ReasonUnknownOperation)
	}
	if !call.Routed() {
		return nil, unrouted(call.Operation, ReasonNoHandler)
	}
	if call.targetErr != nil {
		return nil, call.targetErr
	}
	if err := r.hooks.Execute(ctx, extensions.HookBeforeRoute, call.Operation); err != nil {
		return nil, err
	}

	var (
		result any
		record *ports.BatchRecord
	)
	err := r.onMainThread(ctx, func(ctx context.Context) error {
		g, err := r.resolver.Resolve(ctx, call.Target)
		if err != nil {
			return err
		}
		call.Domain = g.Domain().String()
		if err := checkDomain(call.DomainHint, g); err != nil {
			return err
		}
		f, err := r.registry.FactoryForGraph(g)
		if err != nil {
			return err
		}

		call.Graph, call.Factory = g, f
		defer func() { call.Graph, call.Factory = nil, nil }()

		result, err = call.handler(ctx, call)
		if res, ok := result.(*batch.Result); ok && call.descriptor.Mutating {
			record = collectRecord(call, g, res)
		}
		return err
	})

	if record != nil {
		if hookErr := r.hooks.Execute(ctx, extensions.HookAfterBatch, *record); hookErr != nil {
			r.logger.Warn("after_batch hooks failed",
				zap.String("operation", call.Operation),
				zap.String("graph", call.Target.String()),
				zap.Error(hookErr),
			)
		}
	}
	return result, err
}

func (r *Router) onMainThread(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.thread == nil {
		return fn(ctx)
	}
	return r.thread.Do(ctx, fn)
}

// decodeTarget reads graph_ref out of the payload. Handlers decode the
// rest of the payload themselves.
func decodeTarget(call *Call) error {
	if len(call.Payload) == 0 {
		return pkgerrors.New(pkgerrors.KindInvalidRequest, "payload is required")
	}
	var envelope struct {
		Graph ports.GraphRef `json:"graph_ref"`
	}
	if err := json.Unmarshal(call.Payload, &envelope); err != nil {
		return pkgerrors.Newf(pkgerrors.KindInvalidRequest, "payload is not a JSON object: %v", err).WithCause(err)
	}
	call.Target = envelope.Graph
	return nil
}

func checkDomain(hint string, g *aggregates.Graph) error {
	if strings.TrimSpace(hint) == "" {
		return nil
	}
	d, err := valueobjects.ParseDomain(hint)
	if err != nil {
		return pkgerrors.Newf(pkgerrors.KindDomainUnsupported, "%v", err).WithDetail("domain", hint)
	}
	if d != g.Domain() {
		return pkgerrors.Newf(pkgerrors.KindDomainMismatch, "graph %s is a %s graph, not %s", g.Name(), g.Domain(), d).
			WithDetail("hint", hint).
			WithDetail("domain", g.Domain().String())
	}
	return nil
}

// collectRecord drains the graph's pending events into a journal record.
// Dry runs and rolled back batches leave nothing behind and produce none.
func collectRecord(call *Call, g *aggregates.Graph, res *batch.Result) *ports.BatchRecord {
	if res == nil || res.DryRun || res.RolledBack {
		return nil
	}
	now := time.Now().UTC()

	pending := g.GetUncommittedEvents()
	g.MarkEventsAsCommitted()

	created := make([]string, 0, len(res.CreatedNodeIDs))
	for _, id := range res.CreatedNodeIDs {
		created = append(created, id)
	}
	sort.Strings(created)

	evts := append(pending, events.NewBatchApplied(g.ID().String(), g.AssetPath(), g.Name(),
		len(pending), len(res.Errors), created, now))

	return &ports.BatchRecord{
		ID:           uuid.NewString(),
		GraphID:      g.ID().String(),
		Graph:        ports.GraphRef{AssetPath: g.AssetPath(), GraphName: g.Name()},
		Domain:       g.Domain().String(),
		Operation:    call.Operation,
		Success:      res.Success,
		ErrorCount:   len(res.Errors),
		CreatedNodes: res.CreatedNodeIDs,
		Fingerprint:  g.Fingerprint(),
		Request:      call.Payload,
		Events:       evts,
		AppliedAt:    now,
	}
}

func unrouted(operation, reason string) error {
	msg := fmt.Sprintf("operation %q is not in the operation table", operation)
	if reason == ReasonNoHandler {
		msg = fmt.Sprintf("operation %q has no handler wired", operation)
	}
	return pkgerrors.New(pkgerrors.KindUnroutedOperation, msg).
		WithDetail("operation", operation).
		WithDetail("reason", reason)
}

func newResponse(call *Call, result any, err error) Response {
	resp := Response{Operation: call.Operation, Domain: call.Domain, Result: result}
	if err != nil {
		resp.Error = errorBody(err)
		return resp
	}

	switch res := result.(type) {
	case *batch.Result:
		resp.Success = res.Success
		if first, ok := res.FirstError(); ok {
			resp.Error = &ErrorBody{
				Kind:    first.Kind,
				Code:    pkgerrors.New(first.Kind, "").StatusCode,
				Message: first.Message,
				Details: map[string]interface{}{
					"phase":  first.Phase,
					"index":  first.Index,
					"ref":    first.Ref,
					"errors": len(res.Errors),
				},
			}
		}
	case ports.CompileReport:
		resp.Success = !res.HasErrors()
		if errs := res.Errors(); len(errs) > 0 {
			resp.Error = errorBody(pkgerrors.Newf(pkgerrors.KindCompileFailed, "%d compile error(s), first: %s", len(errs), errs[0].Message))
		}
	default:
		resp.Success = true
	}
	return resp
}

func errorBody(err error) *ErrorBody {
	var de *pkgerrors.DomainError
	if errors.As(err, &de) {
		return &ErrorBody{Kind: de.Kind(), Code: de.StatusCode, Message: de.Message, Details: de.Details}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ErrorBody{Kind: pkgerrors.KindInternal, Code: 503, Message: err.Error()}
	}
	return &ErrorBody{Kind: pkgerrors.KindInternal, Code: 500, Message: err.Error()}
}
