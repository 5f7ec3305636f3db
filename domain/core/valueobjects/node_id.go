package valueobjects

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeID is the stable identity (GUID) of a node inside a graph.
// It survives reconstruction and undo, which is why it is assigned once by the factory.
type NodeID struct {
	guid uuid.UUID
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{guid: uuid.New()}
}

// NewNodeIDFromString parses a GUID in hyphenated, braced or bare hex form.
// The nil GUID is rejected so a zero NodeID never names a node.
func NewNodeIDFromString(id string) (NodeID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return NodeID{}, fmt.Errorf("node ID %q is not a GUID: %w", id, err)
	}
	if parsed == uuid.Nil {
		return NodeID{}, fmt.Errorf("node ID %q is the nil GUID", id)
	}
	return NodeID{guid: parsed}, nil
}

// String returns the canonical lowercase hyphenated form, or "" for the zero ID
func (id NodeID) String() string {
	if id.guid == uuid.Nil {
		return ""
	}
	return id.guid.String()
}

func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *NodeID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = NodeID{}
		return nil
	}
	parsed, err := NewNodeIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
