// Package ports declares the collaborators the engine consumes from its host
// and from infrastructure. The engine never owns a graph: a GraphResolver lends
// one for the duration of a call and the engine must not keep it afterwards.
package ports

import (
	"context"
	"encoding/json"
	"time"

	"graphengine/domain/core/aggregates"
	"graphengine/domain/events"
)

// GraphRef names a graph inside a host asset
type GraphRef struct {
	AssetPath string `json:"asset_path" validate:"required"`
	GraphName string `json:"graph_name"`
}

func (r GraphRef) String() string {
	if r.GraphName == "" {
		return r.AssetPath
	}
	return r.AssetPath + ":" + r.GraphName
}

// GraphResolver looks graphs up in the host's document system.
type GraphResolver interface {
	// Resolve returns the graph named by ref. An empty graph name picks the
	// asset's first graph. A missing asset or graph is a GraphNotFound error.
	Resolve(ctx context.Context, ref GraphRef) (*aggregates.Graph, error)
}

// BatchRecord is what the journal keeps about one committed batch.
type BatchRecord struct {
	ID           string               `json:"id"`
	GraphID      string               `json:"graph_id"`
	Graph        GraphRef             `json:"graph"`
	Domain       string               `json:"domain"`
	Operation    string               `json:"operation"`
	Success      bool                 `json:"success"`
	ErrorCount   int                  `json:"error_count"`
	CreatedNodes map[string]string    `json:"created_node_ids,omitempty"`
	Fingerprint  string               `json:"fingerprint"`
	Request      json.RawMessage      `json:"request,omitempty"`
	Events       []events.DomainEvent `json:"-"`
	AppliedAt    time.Time            `json:"applied_at"`
}

// JournalStore persists batch records
type JournalStore interface {
	Append(ctx context.Context, record BatchRecord) error

	// Recent lists the newest records for a graph, newest first.
	Recent(ctx context.Context, graphID string, limit int) ([]BatchRecord, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// AssetInfo is the listing view of one host asset
type AssetInfo struct {
	Path   string      `json:"asset_path"`
	Graphs []GraphInfo `json:"graphs"`
}

// GraphInfo is the listing view of one graph
type GraphInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Nodes       int    `json:"nodes"`
	Connections int    `json:"connections"`
	Fingerprint string `json:"fingerprint"`
}

// AssetCatalog lists the assets the host knows about. Graph counts are read
// live, so callers list from the main thread.
type AssetCatalog interface {
	Assets() []AssetInfo
}
