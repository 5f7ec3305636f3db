package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphengine/application/ports"
	"graphengine/application/queries"
	querybus "graphengine/application/queries/bus"
	"graphengine/pkg/common"
	pkgerrors "graphengine/pkg/errors"
)

const defaultBatchLimit = 20

// QueryHandler serves the read endpoints
type QueryHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{
		queryBus: queryBus,
		errors:   errs,
		logger:   logger,
	}
}

// ListAssets handles GET /assets
func (h *QueryHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	params := common.ExtractPaginationParams(r)

	result, err := h.queryBus.Ask(r.Context(), queries.ListAssetsQuery{
		Page:     params.Page,
		PageSize: params.PageSize,
		Domain:   common.GetDomainHint(r.Context()),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	page := result.(queries.AssetPage)
	common.RespondWithMeta(w, r, http.StatusOK, page.Assets, &common.MetaInfo{
		Pagination: common.BuildPaginationMeta(params.Page, params.PageSize, page.Total),
	})
}

// GetGraph handles GET /graphs?asset_path=&graph_name=
func (h *QueryHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetGraphQuery{Ref: graphRef(r)})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ListBatches handles GET /graphs/batches?asset_path=&graph_name=&limit=
func (h *QueryHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultBatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "limit %q is not a number", raw))
			return
		}
		limit = n
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListBatchesQuery{Ref: graphRef(r), Limit: limit})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ListNodeTypes handles GET /domains/{domain}/node-types
func (h *QueryHandler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListNodeTypesQuery{Domain: chi.URLParam(r, "domain")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetNodeType handles GET /domains/{domain}/node-types/{type}
func (h *QueryHandler) GetNodeType(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeTypeQuery{
		Domain:   chi.URLParam(r, "domain"),
		TypeName: chi.URLParam(r, "type"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func graphRef(r *http.Request) ports.GraphRef {
	q := r.URL.Query()
	return ports.GraphRef{AssetPath: q.Get("asset_path"), GraphName: q.Get("graph_name")}
}
