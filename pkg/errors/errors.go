// Package errors carries the engine's error taxonomy. Every failure the
// engine reports is a *DomainError whose Code is one of the Kinds below; the
// HTTP adapter maps the Kind's type to a status.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the engine's error taxonomy. Kinds are what batch results and router
// responses report, so they are stable strings.
type Kind string

const (
	KindRefNotFound            Kind = "RefNotFound"
	KindPinNotFound            Kind = "PinNotFound"
	KindConnectionDisallowed   Kind = "ConnectionDisallowed"
	KindNotSplittable          Kind = "NotSplittable"
	KindNotRecombinable        Kind = "NotRecombinable"
	KindFactoryUnsupportedType Kind = "FactoryUnsupportedType"
	KindMissingRequiredParam   Kind = "MissingRequiredParam"
	KindUnroutedOperation      Kind = "UnroutedOperation"
	KindCompileFailed          Kind = "CompileFailed"
	KindGraphNotFound          Kind = "GraphNotFound"
	KindDomainUnsupported      Kind = "DomainUnsupported"
	KindDomainMismatch         Kind = "DomainMismatch"
	KindInvalidRequest         Kind = "InvalidRequest"
	KindInvalidPinValue        Kind = "InvalidPinValue"
	KindInternal               Kind = "Internal"
)

var kindTypes = map[Kind]DomainErrorType{
	KindRefNotFound:            DomainNotFoundError,
	KindPinNotFound:            DomainNotFoundError,
	KindConnectionDisallowed:   DomainBusinessRuleError,
	KindNotSplittable:          DomainBusinessRuleError,
	KindNotRecombinable:        DomainBusinessRuleError,
	KindFactoryUnsupportedType: DomainValidationError,
	KindMissingRequiredParam:   DomainValidationError,
	KindUnroutedOperation:      DomainRoutingError,
	KindCompileFailed:          DomainBusinessRuleError,
	KindGraphNotFound:          DomainNotFoundError,
	KindDomainUnsupported:      DomainBusinessRuleError,
	KindDomainMismatch:         DomainValidationError,
	KindInvalidRequest:         DomainValidationError,
	KindInvalidPinValue:        DomainValidationError,
	KindInternal:               DomainInfrastructureError,
}

// New creates an error of the given kind.
func New(kind Kind, message string) *DomainError {
	errType, ok := kindTypes[kind]
	if !ok {
		errType = DomainInfrastructureError
	}
	return NewDomainError(errType, string(kind), message)
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *DomainError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Sentinels for errors.Is. Never attach details to these; use New/Newf.
var (
	ErrRefNotFound            = New(KindRefNotFound, "symbolic ref does not resolve to a node")
	ErrPinNotFound            = New(KindPinNotFound, "pin not found on node")
	ErrConnectionDisallowed   = New(KindConnectionDisallowed, "schema disallows the connection")
	ErrNotSplittable          = New(KindNotSplittable, "pin cannot be split")
	ErrNotRecombinable        = New(KindNotRecombinable, "pin cannot be recombined")
	ErrFactoryUnsupportedType = New(KindFactoryUnsupportedType, "node type is not supported by the factory")
	ErrMissingRequiredParam   = New(KindMissingRequiredParam, "required parameter missing")
	ErrUnroutedOperation      = New(KindUnroutedOperation, "operation has no handler")
	ErrCompileFailed          = New(KindCompileFailed, "graph failed to compile")
	ErrGraphNotFound          = New(KindGraphNotFound, "graph not found")
	ErrDomainUnsupported      = New(KindDomainUnsupported, "no factory registered for graph domain")
	ErrDomainMismatch         = New(KindDomainMismatch, "domain hint does not match graph domain")
	ErrInvalidRequest         = New(KindInvalidRequest, "invalid request")
	ErrInvalidPinValue        = New(KindInvalidPinValue, "value is not valid for pin type")
)

// KindOf extracts the taxonomy kind from an error chain.
// Errors that carry no kind report KindInternal.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap attaches err as the cause of a new error of the given kind. Errors that
// already carry a kind are returned unchanged.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return New(kind, message).WithCause(err)
}

// StatusOf reports the HTTP status an error maps to
func StatusOf(err error) int {
	var de *DomainError
	if errors.As(err, &de) && de.StatusCode != 0 {
		return de.StatusCode
	}
	return domainErrorTypeToStatusCode(DomainInfrastructureError)
}
