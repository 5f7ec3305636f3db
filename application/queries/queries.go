// Package queries serves the read side of the engine: asset listings, graph
// views, node type discovery and the batch journal.
package queries

import (
	"strings"

	"graphengine/application/ports"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/utils"
)

// MaxPageSize caps every listing
const MaxPageSize = 100

// ListAssetsQuery pages through the host's assets. Domain, when set, keeps
// only assets with at least one graph of that domain.
type ListAssetsQuery struct {
	Page     int    `validate:"gte=1"`
	PageSize int    `validate:"gte=1,lte=100"`
	Domain   string `validate:"omitempty,oneof=visual_script material particle anim_state"`
}

func (q ListAssetsQuery) Validate() error {
	return invalid(utils.ValidateStruct(q))
}

// GetGraphQuery returns the full view of one graph
type GetGraphQuery struct {
	Ref ports.GraphRef `validate:"required"`
}

func (q GetGraphQuery) Validate() error {
	return invalid(utils.ValidateStruct(q))
}

// ListNodeTypesQuery lists the node types a domain's factory creates
type ListNodeTypesQuery struct {
	Domain string `validate:"required"`
}

func (q ListNodeTypesQuery) Validate() error {
	return invalid(utils.ValidateStruct(q))
}

// GetNodeTypeQuery describes one node type, by canonical name or alias
type GetNodeTypeQuery struct {
	Domain   string `validate:"required"`
	TypeName string `validate:"required"`
}

func (q GetNodeTypeQuery) Validate() error {
	return invalid(utils.ValidateStruct(q))
}

// ListBatchesQuery lists the newest journal records of a graph
type ListBatchesQuery struct {
	Ref   ports.GraphRef `validate:"required"`
	Limit int            `validate:"gte=1,lte=100"`
}

func (q ListBatchesQuery) Validate() error {
	return invalid(utils.ValidateStruct(q))
}

// GraphView is the read model of one graph
type GraphView struct {
	ID          string           `json:"id"`
	AssetPath   string           `json:"asset_path"`
	Name        string           `json:"name"`
	Domain      string           `json:"domain"`
	Fingerprint string           `json:"fingerprint"`
	Nodes       []NodeView       `json:"nodes"`
	Connections []ConnectionView `json:"connections"`
}

// NodeView is one node of a GraphView
type NodeView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	State    string     `json:"state"`
	Position [2]float64 `json:"position"`
	Pins     []PinView  `json:"pins"`
}

// PinView is one pin of a NodeView. Sub-pins of a split pin follow their
// parent.
type PinView struct {
	Name      string `json:"name"`
	Parent    string `json:"parent,omitempty"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Links     int    `json:"links"`
	Split     bool   `json:"split,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

// ConnectionView is one link, output side first
type ConnectionView struct {
	FromNode string `json:"from_node"`
	FromPin  string `json:"from_pin"`
	ToNode   string `json:"to_node"`
	ToPin    string `json:"to_pin"`
}

// AssetPage is one page of ListAssetsQuery
type AssetPage struct {
	Assets []ports.AssetInfo
	Total  int
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.New(pkgerrors.KindInvalidRequest, strings.TrimSpace(err.Error())).WithCause(err)
}
