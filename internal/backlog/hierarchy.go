package backlog

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Hierarchy is an arena of challenges indexed by id with a separate parent map.
// Edges are validated before they are committed, so the committed graph is a forest.
type Hierarchy struct {
	nodes    map[string]*ChallengeRow
	order    []string
	parent   map[string]string
	children map[string][]string
	warnings []Warning
}

// NewHierarchy builds the arena from flat rows. Rows with a duplicate id, an
// unknown parent, or a parent that would close a cycle become roots and a
// warning is recorded.
func NewHierarchy(rows []ChallengeRow) *Hierarchy {
	h := &Hierarchy{
		nodes:    make(map[string]*ChallengeRow, len(rows)),
		order:    make([]string, 0, len(rows)),
		parent:   make(map[string]string, len(rows)),
		children: make(map[string][]string, len(rows)),
	}

	for i := range rows {
		id := strings.TrimSpace(rows[i].ID)
		if id == "" {
			h.warn("", "challenge row %d has no id, skipped", i)
			continue
		}
		if _, dup := h.nodes[id]; dup {
			h.warn(id, "duplicate challenge id %q, keeping the first row", id)
			continue
		}
		row := rows[i]
		row.ID = id
		h.nodes[id] = &row
		h.order = append(h.order, id)
	}

	for _, id := range h.order {
		parentID := strings.TrimSpace(h.nodes[id].ParentID)
		if parentID == "" {
			continue
		}
		if err := h.SetParent(id, parentID); err != nil {
			h.warn(id, "%v; treating %q as a root", err, id)
		}
	}
	return h
}

// SetParent commits the edge child -> parent after checking that the parent
// exists and that the child does not already appear on the parent's chain.
func (h *Hierarchy) SetParent(childID, parentID string) error {
	if _, ok := h.nodes[childID]; !ok {
		return fmt.Errorf("unknown challenge %q", childID)
	}
	if _, ok := h.nodes[parentID]; !ok {
		return fmt.Errorf("parent %q of %q does not exist", parentID, childID)
	}
	for cur := parentID; cur != ""; cur = h.parent[cur] {
		if cur == childID {
			return fmt.Errorf("parent %q of %q would create a cycle", parentID, childID)
		}
	}
	if old, ok := h.parent[childID]; ok {
		h.children[old] = removeID(h.children[old], childID)
	}
	h.parent[childID] = parentID
	h.children[parentID] = append(h.children[parentID], childID)
	return nil
}

// Has reports whether the challenge exists.
func (h *Hierarchy) Has(id string) bool {
	_, ok := h.nodes[id]
	return ok
}

// Parent returns the committed parent id, or "" for roots.
func (h *Hierarchy) Parent(id string) string {
	return h.parent[id]
}

// Children returns the ids of the direct children in insertion order.
func (h *Hierarchy) Children(id string) []string {
	return append([]string(nil), h.children[id]...)
}

// Roots returns the ids without a committed parent, in row order.
func (h *Hierarchy) Roots() []string {
	roots := make([]string, 0)
	for _, id := range h.order {
		if _, ok := h.parent[id]; !ok {
			roots = append(roots, id)
		}
	}
	return roots
}

// Len returns the number of challenges in the arena.
func (h *Hierarchy) Len() int {
	return len(h.order)
}

// Warnings returns the data-quality warnings recorded while building.
func (h *Hierarchy) Warnings() []Warning {
	return append([]Warning(nil), h.warnings...)
}

// FlatEntry is one visited node of a flattening walk.
type FlatEntry struct {
	ID       string
	ParentID string
	Depth    int
}

// Flatten walks the forest depth-first from the roots and returns every node
// exactly once.
func (h *Hierarchy) Flatten() []FlatEntry {
	out := make([]FlatEntry, 0, len(h.order))
	visited := make(map[string]bool, len(h.order))

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		out = append(out, FlatEntry{ID: id, ParentID: h.parent[id], Depth: depth})
		for _, child := range h.children[id] {
			walk(child, depth+1)
		}
	}
	for _, root := range h.Roots() {
		walk(root, 0)
	}
	return out
}

func (h *Hierarchy) row(id string) *ChallengeRow {
	return h.nodes[id]
}

func (h *Hierarchy) warn(id, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Str("challenge_id", id).Msg("backlog: " + msg)
	h.warnings = append(h.warnings, Warning{ChallengeID: id, Message: msg})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
