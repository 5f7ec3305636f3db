// Package router is the single entry point outer transports call. It maps an
// operation name to a handler, resolves the target graph, and runs the
// handler on the host's main thread behind a middleware chain.
package router

import "sort"

// Operation names
const (
	OpBatch           = "batch"
	OpAddNode         = "add_node"
	OpRemoveNode      = "remove_node"
	OpConnectPins     = "connect_pins"
	OpDisconnectPins  = "disconnect_pins"
	OpSetPinDefault   = "set_pin_default"
	OpSplitPin        = "split_pin"
	OpRecombinePin    = "recombine_pin"
	OpToggleNode      = "toggle_node"
	OpReconstructNode = "reconstruct_node"
	OpCompileGraph    = "compile_graph"
)

// OperationDescriptor is one row of the operation table
type OperationDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Mutating    bool   `json:"mutating"`
}

var operationTable = map[string]OperationDescriptor{
	OpBatch:           {OpBatch, "Run a phased batch of removals, splits, creations, connections and pin values", true},
	OpAddNode:         {OpAddNode, "Create one node from a type name and parameters", true},
	OpRemoveNode:      {OpRemoveNode, "Remove a node and every link on it", true},
	OpConnectPins:     {OpConnectPins, "Link two pins after the graph schema accepts them", true},
	OpDisconnectPins:  {OpDisconnectPins, "Break one link, or every link on a pin", true},
	OpSetPinDefault:   {OpSetPinDefault, "Set the default value of an input pin", true},
	OpSplitPin:        {OpSplitPin, "Expand a structured pin into its members", true},
	OpRecombinePin:    {OpRecombinePin, "Fold a split pin back together", true},
	OpToggleNode:      {OpToggleNode, "Set a node to enabled, disabled or development_only", true},
	OpReconstructNode: {OpReconstructNode, "Rebuild a node's pins from its type definition", true},
	OpCompileGraph:    {OpCompileGraph, "Run the host compiler and return its diagnostics", false},
}

// Operations lists the operation table sorted by name
func Operations() []OperationDescriptor {
	out := make([]OperationDescriptor, 0, len(operationTable))
	for _, d := range operationTable {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the descriptor of an operation
func Lookup(name string) (OperationDescriptor, bool) {
	d, ok := operationTable[name]
	return d, ok
}
