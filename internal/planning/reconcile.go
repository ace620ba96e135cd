package planning

import (
	"fmt"
	"strings"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/rs/zerolog/log"
)

// Reconcile checks every id in the plan against the snapshot. Directives with
// dangling challenge or parent references are dropped, unknown insight ids
// are pruned, and an id claimed by an earlier directive is not claimed again.
// The returned plan never has nil lists.
func Reconcile(plan Plan, snap *backlog.Snapshot) (Plan, []Warning) {
	r := reconciler{snap: snap, claimed: make(map[string]string)}

	out := Plan{
		Summary:        strings.TrimSpace(plan.Summary),
		Updates:        make([]UpdateDirective, 0, len(plan.Updates)),
		Creations:      make([]CreationDirective, 0, len(plan.Creations)),
		NoChangeNeeded: make([]NoChangeRecord, 0, len(plan.NoChangeNeeded)),
	}

	for _, u := range plan.Updates {
		u.ChallengeID = strings.TrimSpace(u.ChallengeID)
		if !r.claim(ListUpdates, u.ChallengeID) {
			continue
		}
		u.InsightIDs = r.insights(ListUpdates, u.ChallengeID, u.InsightIDs)
		out.Updates = append(out.Updates, u)
	}

	for _, n := range plan.NoChangeNeeded {
		n.ChallengeID = strings.TrimSpace(n.ChallengeID)
		if !r.claim(ListNoChange, n.ChallengeID) {
			continue
		}
		out.NoChangeNeeded = append(out.NoChangeNeeded, n)
	}

	// Minted ids never shadow a reference id the planner supplied.
	taken := make(map[string]bool, len(plan.Creations))
	for _, c := range plan.Creations {
		if id := strings.TrimSpace(c.ReferenceID); id != "" {
			taken[id] = true
		}
	}
	refs := make(map[string]bool, len(plan.Creations))
	for i, c := range plan.Creations {
		c.ReferenceID = strings.TrimSpace(c.ReferenceID)
		if c.ReferenceID == "" {
			c.ReferenceID = mintReference(i+1, taken)
		}
		if refs[c.ReferenceID] {
			r.warn(ListCreations, c.ReferenceID, "duplicate reference id %q dropped", c.ReferenceID)
			continue
		}
		if parent := strings.TrimSpace(c.ParentID()); parent != "" {
			if !snap.HasChallenge(parent) {
				r.warn(ListCreations, c.ReferenceID, "suggested parent %q does not exist; creation dropped", parent)
				continue
			}
			c.SuggestedParentID = &parent
		} else {
			c.SuggestedParentID = nil
		}
		refs[c.ReferenceID] = true
		c.InsightIDs = r.insights(ListCreations, c.ReferenceID, c.InsightIDs)
		out.Creations = append(out.Creations, c)
	}

	return out, r.warnings
}

func mintReference(n int, taken map[string]bool) string {
	for ; ; n++ {
		id := fmt.Sprintf("new-%d", n)
		if !taken[id] {
			taken[id] = true
			return id
		}
	}
}

type reconciler struct {
	snap     *backlog.Snapshot
	claimed  map[string]string
	warnings []Warning
}

func (r *reconciler) claim(list, id string) bool {
	if id == "" {
		r.warn(list, "", "directive without challenge id dropped")
		return false
	}
	if !r.snap.HasChallenge(id) {
		r.warn(list, id, "challenge %q does not exist; directive dropped", id)
		return false
	}
	if prev, ok := r.claimed[id]; ok {
		r.warn(list, id, "challenge %q already listed in %s; directive dropped", id, prev)
		return false
	}
	r.claimed[id] = list
	return true
}

func (r *reconciler) insights(list, directiveID string, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if !r.snap.HasInsight(id) {
			r.warn(list, directiveID, "insight %q does not exist; reference pruned", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (r *reconciler) warn(list, directiveID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Str("list", list).Str("directive_id", directiveID).Msg(msg)
	r.warnings = append(r.warnings, Warning{List: list, DirectiveID: directiveID, Message: msg})
}
