package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorHandler writes errors as DomainErrorResponse bodies
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler. In debug mode unexpected
// errors keep their message and panics carry their stack.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger, debug: debug}
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var de *DomainError
	if !errors.As(err, &de) {
		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
		)
		message := "An internal error occurred"
		if h.debug {
			message = err.Error()
		}
		de = New(KindInternal, message)
	}

	status := StatusOf(de)
	fields := []zap.Field{
		zap.String("kind", de.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID(r)),
	}
	if de.Cause != nil {
		fields = append(fields, zap.NamedError("cause", de.Cause))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(de.Message, fields...)
	} else {
		h.logger.Warn(de.Message, fields...)
	}

	h.sendJSON(w, status, NewDomainErrorResponse(de, requestID(r)))
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)
	de := New(kindForStatus(status), message).WithStatusCode(status)
	h.sendJSON(w, status, NewDomainErrorResponse(de, requestID(r)))
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotImplemented:
		return KindUnroutedOperation
	case status >= 400 && status < 500:
		return KindInvalidRequest
	default:
		return KindInternal
	}
}

// Middleware recovers panics into Internal errors
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				de := Newf(KindInternal, "panic: %v", rec)
				if h.debug {
					de.WithDetail("stack", string(debug.Stack()))
				}
				h.logger.Error("Recovered from panic",
					zap.String("panic", fmt.Sprint(rec)),
					zap.String("path", r.URL.Path),
				)
				h.Handle(w, r, de)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
