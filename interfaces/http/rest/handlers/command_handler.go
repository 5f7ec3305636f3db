// Package handlers holds the HTTP handlers of the REST adapter.
package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphengine/application/router"
	"graphengine/pkg/common"
	pkgerrors "graphengine/pkg/errors"
)

// DefaultMaxBodyBytes caps command payloads
const DefaultMaxBodyBytes int64 = 4 << 20

// CommandHandler forwards commands to the operation router
type CommandHandler struct {
	router       *router.Router
	errors       *pkgerrors.ErrorHandler
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(r *router.Router, errs *pkgerrors.ErrorHandler, maxBodyBytes int64, logger *zap.Logger) *CommandHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &CommandHandler{
		router:       r,
		errors:       errs,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// OperationView is one row of GET /operations
type OperationView struct {
	router.OperationDescriptor
	Handled bool `json:"handled"`
}

// Execute handles POST /graphs/commands/{operation}. The body is the
// operation payload; the response body is the router's Response.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	body, err := common.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, common.ErrBodyTooLarge) {
			h.errors.Handle(w, r, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "payload exceeds %d bytes", h.maxBodyBytes).
				WithStatusCode(http.StatusRequestEntityTooLarge))
			return
		}
		h.errors.Handle(w, r, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "reading payload: %v", err).WithCause(err))
		return
	}

	resp := h.router.Route(r.Context(), common.GetDomainHint(r.Context()), operation, body)
	common.WriteJSON(w, StatusFor(resp), resp)
}

// ListOperations handles GET /operations
func (h *CommandHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	handled := make(map[string]bool)
	for _, name := range h.router.Handled() {
		handled[name] = true
	}

	ops := router.Operations()
	out := make([]OperationView, 0, len(ops))
	for _, d := range ops {
		out = append(out, OperationView{OperationDescriptor: d, Handled: handled[d.Name]})
	}
	common.RespondJSON(w, http.StatusOK, out)
}

// StatusFor maps a router response to an HTTP status. A batch that ran
// answers 200 even when operations failed; the outcome is in the body.
// Everything else that failed answers with its error's status.
func StatusFor(resp router.Response) int {
	if resp.Success || resp.Error == nil {
		return http.StatusOK
	}
	if resp.Operation == router.OpBatch && resp.Result != nil {
		return http.StatusOK
	}
	if resp.Error.Code >= 400 && resp.Error.Code < 600 {
		return resp.Error.Code
	}
	return http.StatusInternalServerError
}
