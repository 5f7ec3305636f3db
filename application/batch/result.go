package batch

import (
	"errors"
	"fmt"

	"graphengine/application/ports"
	pkgerrors "graphengine/pkg/errors"
)

// Phase names the operation list an error came from.
type Phase string

const (
	PhaseRemovals        Phase = "removals"
	PhaseBreakLinks      Phase = "break_links"
	PhaseEnableToggles   Phase = "enable_toggles"
	PhaseReconstructions Phase = "reconstructions"
	PhaseSplits          Phase = "splits"
	PhaseRecombines      Phase = "recombines"
	PhasePostSplitBreaks Phase = "post_split_breaks"
	PhaseNodes           Phase = "nodes"
	PhaseConnections     Phase = "connections"
	PhasePinValues       Phase = "pin_values"
	PhaseCompile         Phase = "compile"
)

// OpError is one failed operation. Index is the position inside the phase's
// list, or -1 for errors that belong to the batch as a whole.
type OpError struct {
	Index   int            `json:"index"`
	Phase   Phase          `json:"phase"`
	Ref     string         `json:"ref,omitempty"`
	Kind    pkgerrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

func newOpError(phase Phase, index int, ref string, err error) OpError {
	kind := pkgerrors.KindOf(err)
	msg := err.Error()
	var de *pkgerrors.DomainError
	if !errors.As(err, &de) {
		msg = fmt.Sprintf("%s: %v", kind, err)
	}
	return OpError{Index: index, Phase: phase, Ref: ref, Kind: kind, Message: msg}
}

// Result is what a batch reports back.
type Result struct {
	Success         bool                   `json:"success"`
	Errors          []OpError              `json:"errors"`
	NotAttempted    int                    `json:"not_attempted"`
	CompileMessages []ports.CompileMessage `json:"compile_messages,omitempty"`
	CreatedNodeIDs  map[string]string      `json:"created_node_ids,omitempty"`
	Arranged        int                    `json:"arranged,omitempty"`
	DryRun          bool                   `json:"dry_run"`
	RolledBack      bool                   `json:"rolled_back"`
	DurationMS      int64                  `json:"duration_ms"`
}

// Outcome is a one-word summary used for metrics and logs
func (r *Result) Outcome() string {
	switch {
	case r.DryRun:
		return "dry_run"
	case r.RolledBack:
		return "rolled_back"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}

// FirstError returns the first recorded error, if any
func (r *Result) FirstError() (OpError, bool) {
	if len(r.Errors) == 0 {
		return OpError{}, false
	}
	return r.Errors[0], true
}
