package batch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"graphengine/application/factories"
	"graphengine/application/ports"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
	"graphengine/domain/services/pins"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/observability"
	"graphengine/pkg/utils"
)

// Pipeline executes batch requests against borrowed graphs. It keeps no
// reference to a graph after Execute returns.
type Pipeline struct {
	registry *factories.Registry
	compiler ports.Compiler
	tracer   *observability.Tracer
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCompiler sets the compiler run after committed batches
func WithCompiler(c ports.Compiler) Option {
	return func(p *Pipeline) { p.compiler = c }
}

// WithTracer sets the tracer used for batch spans
func WithTracer(t *observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a pipeline over the given factory registry
func NewPipeline(registry *factories.Registry, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// phase is one operation list bound to the graph it runs against. run executes
// operation i and returns the ref the operation is about.
type phase struct {
	name  Phase
	count int
	run   func(i int) (string, error)
}

// execution holds the state of one Execute call
type execution struct {
	graph   *aggregates.Graph
	factory factories.NodeFactory
	refs    *refTable
	req     *Request
}

// Execute runs req against g. The returned error is reserved for conditions
// that stop the batch before any phase starts; per-operation failures are
// reported in the Result.
func (p *Pipeline) Execute(ctx context.Context, g *aggregates.Graph, req *Request) (*Result, error) {
	if g == nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphNotFound, "no graph to execute the batch against")
	}
	if req == nil {
		return nil, pkgerrors.New(pkgerrors.KindInvalidRequest, "batch request is required")
	}
	if err := req.Validate(g.Config()); err != nil {
		return nil, err
	}
	factory, err := p.registry.FactoryForGraph(g)
	if err != nil {
		return nil, err
	}
	if req.DryRun && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ctx, span := p.tracer.Start(ctx, "batch.Execute",
		attribute.String("graph", g.Name()),
		attribute.String("domain", g.Domain().String()),
		attribute.Int("operations", req.OperationCount()),
		attribute.Bool("dry_run", req.DryRun),
	)
	defer span.End()

	start := time.Now()
	policy := req.Policy(g.Config())

	target := g
	if req.DryRun {
		target = g.Clone()
	}
	exec := &execution{graph: target, factory: factory, refs: newRefTable(target), req: req}

	result := &Result{DryRun: req.DryRun, Errors: []OpError{}}
	tx := BeginTransaction(target, p.logger)

	halted := false
	for _, ph := range exec.phases() {
		for i := 0; i < ph.count; i++ {
			if halted {
				result.NotAttempted++
				continue
			}
			if req.DryRun && ctx.Err() != nil {
				tx.Rollback()
				observability.RecordError(span, ctx.Err())
				return nil, ctx.Err()
			}

			var ref string
			err := tx.Step(fmt.Sprintf("%s[%d]", ph.name, i), func() error {
				var stepErr error
				ref, stepErr = ph.run(i)
				return stepErr
			})
			p.metrics.ObserveOperation(string(ph.name), err == nil)
			if err == nil {
				continue
			}
			result.Errors = append(result.Errors, newOpError(ph.name, i, ref, err))
			if policy != PolicyContinue {
				halted = true
			}
		}
	}

	if len(result.Errors) > 0 && policy == PolicyRollback {
		tx.Rollback()
		result.RolledBack = true
	} else {
		if req.AutoArrange {
			result.Arranged = arrange(target, exec.refs.createdNodes(), target.Config())
		}
		result.CreatedNodeIDs = exec.refs.createdIDs()
		tx.Commit()

		if !req.DryRun && req.ShouldCompile(g.Config()) {
			p.compile(ctx, g, result)
		}
	}

	result.Success = len(result.Errors) == 0
	elapsed := time.Since(start)
	result.DurationMS = utils.Millis(elapsed)
	p.metrics.ObserveBatch(g.Domain().String(), result.Outcome(), elapsed)

	if first, ok := result.FirstError(); ok {
		span.SetAttributes(attribute.String("first_error.kind", string(first.Kind)))
	}
	span.SetAttributes(attribute.String("outcome", result.Outcome()))

	p.logger.Info("Batch executed",
		zap.String("graph", g.Name()),
		zap.String("asset", g.AssetPath()),
		zap.String("domain", g.Domain().String()),
		zap.String("policy", string(policy)),
		zap.String("outcome", result.Outcome()),
		zap.Int("operations", req.OperationCount()),
		zap.Int("errors", len(result.Errors)),
		zap.Int("not_attempted", result.NotAttempted),
		zap.Int("created", len(result.CreatedNodeIDs)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (p *Pipeline) compile(ctx context.Context, g *aggregates.Graph, result *Result) {
	if p.compiler == nil {
		return
	}
	ctx, span := p.tracer.Start(ctx, "batch.Compile")
	defer span.End()

	report, err := p.compiler.Compile(ctx, g)
	if err != nil {
		observability.RecordError(span, err)
		result.Errors = append(result.Errors, newOpError(PhaseCompile, -1, "",
			pkgerrors.Newf(pkgerrors.KindCompileFailed, "compiler did not run: %v", err).WithCause(err)))
		return
	}
	result.CompileMessages = report.Messages
	if errs := report.Errors(); len(errs) > 0 {
		result.Errors = append(result.Errors, newOpError(PhaseCompile, -1, "",
			pkgerrors.Newf(pkgerrors.KindCompileFailed, "%d compile error(s), first: %s", len(errs), errs[0].Message)))
	}
}

func (e *execution) phases() []phase {
	r := e.req
	return []phase{
		{PhaseRemovals, len(r.Removals), e.removeNode},
		{PhaseBreakLinks, len(r.BreakLinks), func(i int) (string, error) { return e.breakLinks(r.BreakLinks[i]) }},
		{PhaseEnableToggles, len(r.EnableToggles), e.toggleNode},
		{PhaseReconstructions, len(r.Reconstructions), e.reconstructNode},
		{PhaseSplits, len(r.Splits), e.splitPin},
		{PhaseRecombines, len(r.Recombines), e.recombinePin},
		{PhasePostSplitBreaks, len(r.PostSplitBreaks), func(i int) (string, error) { return e.breakLinks(r.PostSplitBreaks[i]) }},
		{PhaseNodes, len(r.Nodes), e.createNode},
		{PhaseConnections, len(r.Connections), e.connect},
		{PhasePinValues, len(r.PinValues), e.setPinValue},
	}
}

func (e *execution) removeNode(i int) (string, error) {
	ref := e.req.Removals[i]
	n, err := e.refs.node(ref)
	if err != nil {
		return ref, err
	}
	return ref, e.graph.RemoveNode(n)
}

// breakLinks removes one link, or every link on a pin. A link that does not
// exist is not an error.
func (e *execution) breakLinks(b BreakSpec) (string, error) {
	if b.BreaksAll() {
		p, err := e.refs.pin(b.Ref, b.Pin, pins.AnyDirection)
		if err != nil {
			return b.Ref, err
		}
		pins.BreakAllLinks(e.graph, p, true)
		return b.Ref, nil
	}
	source, err := e.refs.pin(b.SourceRef, b.SourcePin, valueobjects.PinOutput)
	if err != nil {
		return b.SourceRef, err
	}
	target, err := e.refs.pin(b.TargetRef, b.TargetPin, valueobjects.PinInput)
	if err != nil {
		return b.TargetRef, err
	}
	pins.Disconnect(e.graph, source, target)
	return b.SourceRef, nil
}

func (e *execution) toggleNode(i int) (string, error) {
	t := e.req.EnableToggles[i]
	n, err := e.refs.node(t.Ref)
	if err != nil {
		return t.Ref, err
	}
	state, err := entities.ParseEnabledState(t.State)
	if err != nil {
		return t.Ref, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "%v", err).WithDetail("state", t.State)
	}
	return t.Ref, e.graph.SetNodeState(n, state)
}

func (e *execution) reconstructNode(i int) (string, error) {
	ref := e.req.Reconstructions[i]
	n, err := e.refs.node(ref)
	if err != nil {
		return ref, err
	}
	return ref, e.factory.ReconstructNode(e.graph, n)
}

func (e *execution) splitPin(i int) (string, error) {
	s := e.req.Splits[i]
	p, err := e.refs.pin(s.Ref, s.Pin, pins.AnyDirection)
	if err != nil {
		return s.Ref, err
	}
	_, err = pins.Split(e.graph, p)
	return s.Ref, err
}

func (e *execution) recombinePin(i int) (string, error) {
	s := e.req.Recombines[i]
	p, err := e.refs.pin(s.Ref, s.Pin, pins.AnyDirection)
	if err != nil {
		return s.Ref, err
	}
	return s.Ref, pins.Recombine(e.graph, p)
}

func (e *execution) createNode(i int) (string, error) {
	spec := e.req.Nodes[i]
	var pos valueobjects.Position
	if spec.Position != nil {
		pos = *spec.Position
	}
	n, err := e.factory.CreateNode(e.graph, spec.Type, spec.Properties, pos)
	if err != nil {
		return spec.Ref, err
	}
	e.refs.add(spec.Ref, n)
	return spec.Ref, nil
}

func (e *execution) connect(i int) (string, error) {
	c := e.req.Connections[i]
	source, err := e.refs.pin(c.SourceRef, c.SourcePin, valueobjects.PinOutput)
	if err != nil {
		return c.SourceRef, err
	}
	target, err := e.refs.pin(c.TargetRef, c.TargetPin, valueobjects.PinInput)
	if err != nil {
		return c.TargetRef, err
	}
	_, err = pins.Connect(e.graph, source, target)
	return c.SourceRef, err
}

func (e *execution) setPinValue(i int) (string, error) {
	v := e.req.PinValues[i]
	p, err := e.refs.pin(v.Ref, v.Pin, valueobjects.PinInput)
	if err != nil {
		return v.Ref, err
	}
	value, err := pins.DecodeValue(p, v.Value)
	if err != nil {
		return v.Ref, err
	}
	return v.Ref, pins.SetDefault(e.graph, p, value)
}
