package backlog

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is the immutable, per-run view of a project's backlog. It is built
// once from raw rows and only read afterwards, so concurrent readers are safe.
type Snapshot struct {
	project    Project
	hierarchy  *Hierarchy
	challenges map[string]ChallengeNode
	flat       []string
	insights   map[string]EvidenceItem
	insightIDs []string
	owners     []Owner
	warnings   []Warning
}

// NewSnapshot resolves raw rows into challenge nodes and evidence items.
func NewSnapshot(rows Rows) *Snapshot {
	s := &Snapshot{
		project:    rows.Project,
		hierarchy:  NewHierarchy(rows.Challenges),
		challenges: make(map[string]ChallengeNode, len(rows.Challenges)),
		insights:   make(map[string]EvidenceItem, len(rows.Insights)),
		owners:     append([]Owner(nil), rows.Owners...),
	}
	s.warnings = s.hierarchy.Warnings()

	linked := make(map[string][]string)
	for _, row := range rows.Insights {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			s.warnings = append(s.warnings, Warning{Message: "insight row without id skipped"})
			continue
		}
		if _, dup := s.insights[id]; dup {
			s.warnings = append(s.warnings, Warning{Message: fmt.Sprintf("duplicate insight id %q, keeping the first row", id)})
			continue
		}
		challengeIDs := uniqueIDs(row.ChallengeIDs)
		s.insights[id] = EvidenceItem{
			ID:             id,
			Title:          row.Title,
			Description:    row.Description,
			Category:       row.Category,
			Completed:      row.Completed,
			ConversationID: row.ConversationID,
			ChallengeIDs:   challengeIDs,
		}
		s.insightIDs = append(s.insightIDs, id)
		for _, cid := range challengeIDs {
			linked[cid] = append(linked[cid], id)
		}
	}

	owned := make(map[string][]string)
	for _, o := range rows.Ownerships {
		owned[o.ChallengeID] = append(owned[o.ChallengeID], o.OwnerID)
	}

	for _, entry := range s.hierarchy.Flatten() {
		row := s.hierarchy.row(entry.ID)
		node := ChallengeNode{
			ID:          entry.ID,
			Title:       row.Title,
			Description: row.Description,
			OwnerIDs:    uniqueIDs(owned[entry.ID]),
			ParentID:    entry.ParentID,
			ChildIDs:    s.hierarchy.Children(entry.ID),
			Depth:       entry.Depth,
		}
		if st, ok := NormalizeStatus(row.Status); ok {
			node.Status = st
		}
		if im, ok := NormalizeImpact(row.Impact); ok {
			node.Impact = im
		}
		evidence := make([]string, 0, len(row.InsightIDs)+len(linked[entry.ID]))
		for _, iid := range append(append([]string(nil), row.InsightIDs...), linked[entry.ID]...) {
			if _, ok := s.insights[strings.TrimSpace(iid)]; ok {
				evidence = append(evidence, strings.TrimSpace(iid))
			}
		}
		node.InsightIDs = uniqueIDs(evidence)
		s.challenges[entry.ID] = node
		s.flat = append(s.flat, entry.ID)
	}
	return s
}

// Project returns the project-level descriptive fields.
func (s *Snapshot) Project() Project {
	return s.project
}

// HasChallenge reports whether the challenge id exists in the snapshot.
func (s *Snapshot) HasChallenge(id string) bool {
	_, ok := s.challenges[id]
	return ok
}

// HasInsight reports whether the insight id exists in the snapshot.
func (s *Snapshot) HasInsight(id string) bool {
	_, ok := s.insights[id]
	return ok
}

// Challenge returns one challenge node.
func (s *Snapshot) Challenge(id string) (ChallengeNode, bool) {
	c, ok := s.challenges[id]
	return c, ok
}

// Insight returns one evidence item.
func (s *Snapshot) Insight(id string) (EvidenceItem, bool) {
	i, ok := s.insights[id]
	return i, ok
}

// Insights returns the evidence items for the given ids, skipping unknown ids.
func (s *Snapshot) Insights(ids []string) []EvidenceItem {
	out := make([]EvidenceItem, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if item, ok := s.insights[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Owners returns the available-owner roster.
func (s *Snapshot) Owners() []Owner {
	return append([]Owner(nil), s.owners...)
}

// Warnings returns data-quality warnings raised while building the snapshot.
func (s *Snapshot) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}

// Global returns every challenge flattened with its resolved parent id,
// every evidence item and the owner roster.
func (s *Snapshot) Global() GlobalContext {
	challenges := make([]ChallengeNode, 0, len(s.flat))
	for _, id := range s.flat {
		challenges = append(challenges, s.challenges[id])
	}
	insights := make([]EvidenceItem, 0, len(s.insightIDs))
	for _, id := range s.insightIDs {
		insights = append(insights, s.insights[id])
	}
	return GlobalContext{
		Project:    s.project,
		Challenges: challenges,
		Insights:   insights,
		Owners:     s.Owners(),
	}
}

// Scoped returns the challenge, its direct children, its linked evidence and
// the originating conversations of that evidence.
func (s *Snapshot) Scoped(id string) (ScopedContext, error) {
	node, ok := s.challenges[id]
	if !ok {
		return ScopedContext{}, fmt.Errorf("challenge %q not found", id)
	}
	children := make([]ChallengeNode, 0, len(node.ChildIDs))
	for _, cid := range node.ChildIDs {
		children = append(children, s.challenges[cid])
	}
	insights := s.Insights(node.InsightIDs)
	conversations := make([]string, 0, len(insights))
	for _, item := range insights {
		if item.ConversationID != "" {
			conversations = append(conversations, item.ConversationID)
		}
	}
	conversations = uniqueIDs(conversations)
	sort.Strings(conversations)
	return ScopedContext{
		Challenge:       node,
		Children:        children,
		Insights:        insights,
		ConversationIDs: conversations,
	}, nil
}

func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
