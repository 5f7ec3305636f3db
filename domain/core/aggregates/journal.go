package aggregates

// undoEntry is the inverse of one applied mutation.
type undoEntry struct {
	label string
	undo  func()
}

// Checkpoint marks a point in the graph's history that RevertTo can return to.
type Checkpoint struct {
	journal int
	events  int
}

// Checkpoint captures the current journal and event positions
func (g *Graph) Checkpoint() Checkpoint {
	return Checkpoint{journal: len(g.journal), events: len(g.events)}
}

// RevertTo undoes every mutation recorded after cp, newest first, and drops the
// events they raised. It returns the number of mutations undone.
func (g *Graph) RevertTo(cp Checkpoint) int {
	undone := 0
	for i := len(g.journal) - 1; i >= cp.journal; i-- {
		g.journal[i].undo()
		undone++
	}
	if cp.journal < len(g.journal) {
		g.journal = g.journal[:cp.journal]
	}
	if cp.events < len(g.events) {
		g.events = g.events[:cp.events]
	}
	return undone
}

// Commit forgets the recorded inverses. Mutations made so far can no longer be undone.
func (g *Graph) Commit() {
	g.journal = nil
}

// JournalLen returns the number of undoable mutations
func (g *Graph) JournalLen() int {
	return len(g.journal)
}

// JournalLabels lists the mutations recorded after cp, oldest first, for logging.
func (g *Graph) JournalLabels(cp Checkpoint) []string {
	if cp.journal >= len(g.journal) {
		return nil
	}
	labels := make([]string, 0, len(g.journal)-cp.journal)
	for _, e := range g.journal[cp.journal:] {
		labels = append(labels, e.label)
	}
	return labels
}

func (g *Graph) record(label string, undo func()) {
	g.journal = append(g.journal, undoEntry{label: label, undo: undo})
}
