package batch

import (
	"graphengine/domain/config"
	"graphengine/domain/core/aggregates"
	"graphengine/domain/core/entities"
	"graphengine/domain/core/valueobjects"
)

// arrange lays the given nodes out left to right. A node's column is the
// longest chain of links reaching it from the other arranged nodes; rows keep
// creation order. The block starts one column right of every other node.
// Cycles are cut after len(nodes) rounds of relaxation.
func arrange(g *aggregates.Graph, nodes []*entities.Node, cfg *config.DomainConfig) int {
	if len(nodes) == 0 {
		return 0
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	index := make(map[*entities.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	type edge struct{ from, to int }
	var edges []edge
	for _, n := range nodes {
		for _, p := range n.Pins() {
			if p.Direction() != valueobjects.PinOutput {
				continue
			}
			for _, l := range p.Links() {
				if j, ok := index[l.Node()]; ok && l.Node() != n {
					edges = append(edges, edge{from: index[n], to: j})
				}
			}
		}
	}

	column := make([]int, len(nodes))
	for round := 0; round < len(nodes); round++ {
		changed := false
		for _, e := range edges {
			if column[e.from]+1 > column[e.to] && column[e.from]+1 < len(nodes) {
				column[e.to] = column[e.from] + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	originX, originY := cfg.ArrangeOriginX, cfg.ArrangeOriginY
	first := true
	for _, n := range g.Nodes() {
		if _, arranged := index[n]; arranged {
			continue
		}
		if x := n.Position().X + cfg.ArrangeColumnSpacing; first || x > originX {
			originX = x
			first = false
		}
	}

	rows := make(map[int]int)
	moved := 0
	for i, n := range nodes {
		col := column[i]
		pos := valueobjects.NewPosition(
			originX+float64(col)*cfg.ArrangeColumnSpacing,
			originY+float64(rows[col])*cfg.ArrangeRowSpacing,
		).Snap(cfg.ArrangeGridSnap)
		rows[col]++
		if n.Position().Equals(pos) {
			continue
		}
		if err := g.MoveNode(n, pos); err == nil {
			moved++
		}
	}
	return moved
}
