package events

import (
	"time"

	"graphengine/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(graphID, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{AggregateID: graphID, EventType: eventType, Timestamp: ts, Version: 1}
}

// PinRef names a pin in an event payload.
type PinRef struct {
	NodeID valueobjects.NodeID `json:"node_id"`
	Pin    string              `json:"pin"`
}

// NodeAdded is raised when a factory places a node in a graph
type NodeAdded struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	NodeName string              `json:"node_name"`
	TypeName string              `json:"type_name"`
}

func NewNodeAdded(graphID string, nodeID valueobjects.NodeID, name, typeName string, ts time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: newBase(graphID, "node.added", ts),
		NodeID:    nodeID,
		NodeName:  name,
		TypeName:  typeName,
	}
}

// NodeRemoved is raised when a node is deleted from a graph
type NodeRemoved struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	NodeName string              `json:"node_name"`
}

func NewNodeRemoved(graphID string, nodeID valueobjects.NodeID, name string, ts time.Time) NodeRemoved {
	return NodeRemoved{
		BaseEvent: newBase(graphID, "node.removed", ts),
		NodeID:    nodeID,
		NodeName:  name,
	}
}

// PinsLinked is raised when a connection is made
type PinsLinked struct {
	BaseEvent
	From PinRef `json:"from"`
	To   PinRef `json:"to"`
}

func NewPinsLinked(graphID string, from, to PinRef, ts time.Time) PinsLinked {
	return PinsLinked{BaseEvent: newBase(graphID, "pins.linked", ts), From: from, To: to}
}

// PinsUnlinked is raised when a connection is broken
type PinsUnlinked struct {
	BaseEvent
	From PinRef `json:"from"`
	To   PinRef `json:"to"`
}

func NewPinsUnlinked(graphID string, from, to PinRef, ts time.Time) PinsUnlinked {
	return PinsUnlinked{BaseEvent: newBase(graphID, "pins.unlinked", ts), From: from, To: to}
}

// PinDefaultChanged is raised when a pin's default value is assigned
type PinDefaultChanged struct {
	BaseEvent
	Pin   PinRef `json:"pin"`
	Value string `json:"value"`
}

func NewPinDefaultChanged(graphID string, pin PinRef, value string, ts time.Time) PinDefaultChanged {
	return PinDefaultChanged{BaseEvent: newBase(graphID, "pin.default_changed", ts), Pin: pin, Value: value}
}

// PinSplit is raised when a structured pin is expanded
type PinSplit struct {
	BaseEvent
	Pin      PinRef   `json:"pin"`
	Children []string `json:"children"`
}

func NewPinSplit(graphID string, pin PinRef, children []string, ts time.Time) PinSplit {
	return PinSplit{BaseEvent: newBase(graphID, "pin.split", ts), Pin: pin, Children: children}
}

// PinRecombined is raised when sub-pins are folded back into their parent
type PinRecombined struct {
	BaseEvent
	Pin PinRef `json:"pin"`
}

func NewPinRecombined(graphID string, pin PinRef, ts time.Time) PinRecombined {
	return PinRecombined{BaseEvent: newBase(graphID, "pin.recombined", ts), Pin: pin}
}

// NodeStateChanged is raised when a node is enabled or disabled
type NodeStateChanged struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	OldState string              `json:"old_state"`
	NewState string              `json:"new_state"`
}

func NewNodeStateChanged(graphID string, nodeID valueobjects.NodeID, oldState, newState string, ts time.Time) NodeStateChanged {
	return NodeStateChanged{
		BaseEvent: newBase(graphID, "node.state_changed", ts),
		NodeID:    nodeID,
		OldState:  oldState,
		NewState:  newState,
	}
}

// NodeReconstructed is raised when a node's pins are reallocated
type NodeReconstructed struct {
	BaseEvent
	NodeID       valueobjects.NodeID `json:"node_id"`
	DroppedLinks int                 `json:"dropped_links"`
}

func NewNodeReconstructed(graphID string, nodeID valueobjects.NodeID, dropped int, ts time.Time) NodeReconstructed {
	return NodeReconstructed{
		BaseEvent:    newBase(graphID, "node.reconstructed", ts),
		NodeID:       nodeID,
		DroppedLinks: dropped,
	}
}

// NodeMoved is raised when a node is moved to a new position
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(graphID string, nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position, ts time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent:   newBase(graphID, "node.moved", ts),
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

// BatchApplied summarises one committed batch. It is raised by the pipeline, not the graph.
type BatchApplied struct {
	BaseEvent
	AssetPath    string   `json:"asset_path"`
	GraphName    string   `json:"graph_name"`
	Operations   int      `json:"operations"`
	Failed       int      `json:"failed"`
	CreatedNodes []string `json:"created_nodes,omitempty"`
}

func NewBatchApplied(graphID, assetPath, graphName string, ops, failed int, created []string, ts time.Time) BatchApplied {
	return BatchApplied{
		BaseEvent:    newBase(graphID, "batch.applied", ts),
		AssetPath:    assetPath,
		GraphName:    graphName,
		Operations:   ops,
		Failed:       failed,
		CreatedNodes: created,
	}
}
