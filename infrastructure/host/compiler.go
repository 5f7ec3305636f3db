package host

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"graphengine/application/ports"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/validators"
)

// Compiler is the reference compiler: it runs the graph validator and
// reports its findings as diagnostics.
type Compiler struct {
	validator *validators.GraphValidator
	logger    *zap.Logger
}

// NewCompiler creates a compiler with the default rules
func NewCompiler(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{validator: validators.NewGraphValidator(), logger: logger}
}

// Compile implements ports.Compiler
func (c *Compiler) Compile(ctx context.Context, g *aggregates.Graph) (ports.CompileReport, error) {
	if err := ctx.Err(); err != nil {
		return ports.CompileReport{}, err
	}
	if g == nil {
		return ports.CompileReport{}, fmt.Errorf("no graph to compile")
	}
	start := time.Now()

	findings := c.validator.Validate(g)
	report := ports.CompileReport{Messages: make([]ports.CompileMessage, 0, len(findings)+1)}
	for _, f := range findings {
		report.Messages = append(report.Messages, ports.CompileMessage{
			Severity: severityOf(f.Severity),
			NodeID:   f.NodeID,
			Message:  f.Message,
		})
	}
	report.Messages = append(report.Messages, ports.CompileMessage{
		Severity: ports.SeverityInfo,
		Message:  fmt.Sprintf("compiled %s (%d nodes, %d connections)", g.Name(), g.NodeCount(), g.ConnectionCount()),
	})

	c.logger.Debug("Graph compiled",
		zap.String("graph", g.Name()),
		zap.String("domain", g.Domain().String()),
		zap.Int("findings", len(findings)),
		zap.Bool("failed", report.HasErrors()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func severityOf(s validators.Severity) ports.Severity {
	switch s {
	case validators.SeverityError:
		return ports.SeverityError
	case validators.SeverityWarning:
		return ports.SeverityWarning
	}
	return ports.SeverityInfo
}
