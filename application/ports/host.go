package ports

import (
	"context"

	"graphengine/domain/core/aggregates"
)

// Severity of a compiler diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// CompileMessage is one compiler diagnostic
type CompileMessage struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
}

// CompileReport carries every diagnostic of one compile
type CompileReport struct {
	Messages []CompileMessage `json:"messages"`
}

// HasErrors reports whether any diagnostic has error severity
func (r CompileReport) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error diagnostics
func (r CompileReport) Errors() []CompileMessage {
	var out []CompileMessage
	for _, m := range r.Messages {
		if m.Severity == SeverityError {
			out = append(out, m)
		}
	}
	return out
}

// Compiler is the host's compiler/validator, run after a committed batch.
// The returned error means the compiler itself could not run; diagnostics,
// even error ones, come back in the report.
type Compiler interface {
	Compile(ctx context.Context, g *aggregates.Graph) (CompileReport, error)
}

// MainThread runs work on the host's single mutation thread. Do blocks until
// fn has returned; calls are serialised, so two batches never interleave.
type MainThread interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
