package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/execution"
	"github.com/metalagman/refiner/internal/planning"
	"github.com/rs/zerolog/log"
)

// Input is everything a run produced before mapping.
type Input struct {
	RunID    string
	Plan     planning.Result
	Outcome  execution.Outcome
	Metadata Metadata
}

// Mapper normalizes agent output against one snapshot. It never fails: values
// it cannot interpret become absent and out-of-scope references are dropped
// with a warning. A Mapper is not safe for concurrent use.
type Mapper struct {
	snap     *backlog.Snapshot
	roster   *backlog.Roster
	newID    func() string
	now      func() time.Time
	warnings []Warning
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithIDGenerator replaces uuid.NewString for minted challenge ids.
func WithIDGenerator(f func() string) MapperOption {
	return func(m *Mapper) { m.newID = f }
}

// WithClock replaces time.Now.
func WithClock(f func() time.Time) MapperOption {
	return func(m *Mapper) { m.now = f }
}

// NewMapper returns a Mapper for snap.
func NewMapper(snap *backlog.Snapshot, opts ...MapperOption) *Mapper {
	m := &Mapper{
		snap:   snap,
		roster: backlog.NewRoster(snap.Owners()),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Build assembles the report. Every successful suggestion is kept regardless
// of failures elsewhere in the batch.
func (m *Mapper) Build(in Input) Report {
	m.warnings = nil
	for _, w := range m.snap.Warnings() {
		m.warnings = append(m.warnings, Warning{Source: SourceContext, ID: w.ChallengeID, Message: w.Message})
	}
	for _, w := range in.Plan.Warnings {
		m.warnings = append(m.warnings, Warning{Source: SourcePlan, ID: w.DirectiveID, Message: fmt.Sprintf("%s: %s", w.List, w.Message)})
	}

	meta := in.Metadata
	meta.PlannerLogID = in.Plan.Response.LogID
	meta.LogIDs = make(map[string]string, len(in.Outcome.Updates)+len(in.Outcome.Creations))

	r := Report{
		RunID:         in.RunID,
		ProjectID:     m.snap.Project().ID,
		Summary:       in.Plan.Plan.Summary,
		Updates:       make([]UpdateSuggestion, 0, len(in.Outcome.Updates)),
		NewChallenges: make([]NewChallengeSuggestion, 0, len(in.Outcome.Creations)),
		NoChange:      append([]planning.NoChangeRecord{}, in.Plan.Plan.NoChangeNeeded...),
		Errors:        in.Outcome.Errors,
	}
	for _, u := range in.Outcome.Updates {
		r.Updates = append(r.Updates, m.MapUpdate(u))
		if u.Response.LogID != "" {
			meta.LogIDs[u.Directive.ChallengeID] = u.Response.LogID
		}
	}
	for _, c := range in.Outcome.Creations {
		r.NewChallenges = append(r.NewChallenges, m.MapCreation(c))
		if c.Response.LogID != "" {
			meta.LogIDs[c.Directive.ReferenceID] = c.Response.LogID
		}
	}
	if meta.FinishedAt.IsZero() {
		meta.FinishedAt = m.now().UTC()
	}
	r.Metadata = meta
	r.Warnings = append([]Warning{}, m.warnings...)
	return r
}

// MapUpdate normalizes one updater reply.
func (m *Mapper) MapUpdate(u execution.UpdateOutcome) UpdateSuggestion {
	id := u.Directive.ChallengeID
	node, _ := m.snap.Challenge(id)

	scope := make(map[string]bool, len(node.InsightIDs)+len(u.Directive.InsightIDs))
	for _, iid := range node.InsightIDs {
		scope[iid] = true
	}
	for _, iid := range u.Directive.InsightIDs {
		scope[iid] = true
	}
	children := make(map[string]bool, len(node.ChildIDs))
	for _, cid := range node.ChildIDs {
		children[cid] = true
	}

	s := u.Suggestion
	out := UpdateSuggestion{
		ChallengeID:         id,
		CurrentTitle:        node.Title,
		Priority:            u.Directive.Priority,
		ChangeScope:         u.Directive.ChangeScope,
		PlannerReason:       u.Directive.Reason,
		Changes:             m.changes(s.Changes),
		Rationale:           s.Rationale,
		FoundationInsights:  m.evidence(id, s.FoundationInsights, scope),
		SubChallengeUpdates: make([]SubUpdate, 0, len(s.SubChallengeUpdates)),
		NewSubChallenges:    m.subChallenges(s.NewSubChallenges),
		Owners:              m.owners(s.OwnerSuggestions),
	}
	for _, sub := range s.SubChallengeUpdates {
		cid := strings.TrimSpace(sub.ChallengeID)
		if !children[cid] {
			m.warn(id, "sub-challenge update for %q dropped: not a direct child of %q", cid, id)
			continue
		}
		out.SubChallengeUpdates = append(out.SubChallengeUpdates, SubUpdate{
			ChallengeID: cid,
			Changes:     m.changes(sub.Changes),
			Reason:      sub.Reason,
		})
	}
	return out
}

// MapCreation normalizes one creator reply and mints its id.
func (m *Mapper) MapCreation(c execution.CreationOutcome) NewChallengeSuggestion {
	scope := make(map[string]bool, len(c.Directive.InsightIDs))
	for _, iid := range c.Directive.InsightIDs {
		scope[iid] = true
	}

	s := c.Suggestion
	impact := impactPtr(s.Impact)
	if impact == nil && c.Directive.SuggestedImpact != "" {
		impact = backlog.ImpactPtr(string(c.Directive.SuggestedImpact))
	}
	var parent *string
	if p := c.Directive.ParentID(); p != "" {
		parent = &p
	}

	return NewChallengeSuggestion{
		ID:                 m.newID(),
		ReferenceID:        c.Directive.ReferenceID,
		ParentID:           parent,
		Title:              strings.TrimSpace(s.Title),
		Description:        strings.TrimSpace(s.Description),
		Status:             statusPtr(s.Status),
		Impact:             impact,
		Rationale:          s.Rationale,
		FoundationInsights: m.evidence(c.Directive.ReferenceID, s.FoundationInsights, scope),
		SubChallenges:      m.subChallenges(s.SubChallenges),
		Owners:             m.owners(s.OwnerSuggestions),
	}
}

func (m *Mapper) changes(c execution.FieldChanges) Changes {
	return Changes{
		Title:       c.Title,
		Description: c.Description,
		Status:      statusPtr(c.Status),
		Impact:      impactPtr(c.Impact),
	}
}

func (m *Mapper) evidence(directiveID string, in []execution.Foundation, scope map[string]bool) []Evidence {
	out := make([]Evidence, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, f := range in {
		iid := strings.TrimSpace(f.InsightID)
		if seen[iid] {
			continue
		}
		item, ok := m.snap.Insight(iid)
		if !ok || !scope[iid] {
			m.warn(directiveID, "foundation insight %q dropped: outside the directive's evidence", iid)
			continue
		}
		seen[iid] = true
		var priority *backlog.Priority
		if f.Priority != nil {
			priority = backlog.PriorityPtr(*f.Priority)
		}
		out = append(out, Evidence{
			InsightID:     iid,
			Title:         item.Title,
			Justification: f.Justification,
			Priority:      priority,
		})
	}
	return out
}

func (m *Mapper) subChallenges(in []execution.SubChallenge) []SubChallenge {
	out := make([]SubChallenge, 0, len(in))
	for _, sc := range in {
		out = append(out, SubChallenge{
			Title:       strings.TrimSpace(sc.Title),
			Description: sc.Description,
			Impact:      impactPtr(sc.Impact),
			Reason:      sc.Reason,
		})
	}
	return out
}

// owners resolves references by id, name, then email. Duplicates merge into
// the first occurrence; unresolved names are kept for manual mapping.
func (m *Mapper) owners(in []execution.OwnerRef) []OwnerSuggestion {
	out := make([]OwnerSuggestion, 0, len(in))
	index := make(map[string]int, len(in))
	for _, ref := range in {
		name := strings.TrimSpace(ref.Owner)
		if name == "" {
			continue
		}
		var s OwnerSuggestion
		var key string
		if o, ok := m.roster.Resolve(name); ok {
			s = OwnerSuggestion{OwnerID: o.ID, Name: o.Name, Email: o.Email, Resolved: true, Reason: ref.Reason}
			key = "id:" + o.ID
		} else {
			s = OwnerSuggestion{Name: name, Reason: ref.Reason}
			key = "name:" + strings.ToLower(name)
		}
		if i, ok := index[key]; ok {
			if out[i].Reason == "" {
				out[i].Reason = s.Reason
			}
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}
	return out
}

func (m *Mapper) warn(id, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn().Str("directive_id", id).Msg(msg)
	m.warnings = append(m.warnings, Warning{Source: SourceMapper, ID: id, Message: msg})
}

func statusPtr(raw *string) *backlog.Status {
	if raw == nil {
		return nil
	}
	return backlog.StatusPtr(*raw)
}

func impactPtr(raw *string) *backlog.Impact {
	if raw == nil {
		return nil
	}
	return backlog.ImpactPtr(*raw)
}
