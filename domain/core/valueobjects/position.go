package valueobjects

import (
	"encoding/json"
	"fmt"
	"math"
)

// Position is the 2D location of a node on the graph canvas.
type Position struct {
	X float64
	Y float64
}

// NewPosition creates a position from canvas coordinates
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return p.X == other.X && p.Y == other.Y
}

// Snap rounds the position to the nearest multiple of grid.
func (p Position) Snap(grid float64) Position {
	if grid <= 0 {
		return p
	}
	return Position{
		X: math.Round(p.X/grid) * grid,
		Y: math.Round(p.Y/grid) * grid,
	}
}

// MarshalJSON writes the position as a two element array.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts either [x, y] or {"x": .., "y": ..}.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("position must have exactly 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}

	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("position must be [x, y] or {\"x\", \"y\"}: %w", err)
	}
	p.X, p.Y = obj.X, obj.Y
	return nil
}
