package report

import (
	"strings"
	"testing"
	"time"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/execution"
	"github.com/metalagman/refiner/internal/planning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func snapshot() *backlog.Snapshot {
	return backlog.NewSnapshot(backlog.Rows{
		Project: backlog.Project{ID: "p1", Name: "Checkout"},
		Challenges: []backlog.ChallengeRow{
			{ID: "c1", Title: "Payments fail"},
			{ID: "c2", ParentID: "c1", Title: "Card declines"},
			{ID: "c3", Title: "Slow search"},
		},
		Insights: []backlog.InsightRow{
			{ID: "i1", Title: "Complaint", ChallengeIDs: []string{"c1"}},
			{ID: "i2", Title: "Ticket", ChallengeIDs: []string{"c2"}},
			{ID: "i3", Title: "Survey"},
		},
		Owners: []backlog.Owner{
			{ID: "o1", Name: "Dana Smith", Email: "dana@example.com"},
			{ID: "o2", Name: "Lee"},
		},
	})
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
}

func TestMapUpdate(t *testing.T) {
	t.Parallel()

	m := NewMapper(snapshot())
	got := m.MapUpdate(execution.UpdateOutcome{
		Directive: planning.UpdateDirective{
			ChallengeID: "c1",
			Priority:    backlog.PriorityHigh,
			Reason:      "stale",
			InsightIDs:  []string{"i3"},
			ChangeScope: backlog.ScopeModerate,
		},
		Suggestion: execution.RawUpdate{
			Changes:   execution.FieldChanges{Status: strPtr("In Progress"), Impact: strPtr("catastrophic")},
			Rationale: "because",
			FoundationInsights: []execution.Foundation{
				{InsightID: "i1", Justification: "linked", Priority: strPtr("ASAP")},
				{InsightID: "i3", Justification: "planner cited", Priority: strPtr("whenever")},
				{InsightID: "i2", Justification: "belongs to child"},
				{InsightID: "i9", Justification: "made up"},
			},
			SubChallengeUpdates: []execution.SubUpdate{
				{ChallengeID: "c2", Changes: execution.FieldChanges{Impact: strPtr("Severe")}},
				{ChallengeID: "c3", Changes: execution.FieldChanges{Title: strPtr("x")}},
			},
			NewSubChallenges: []execution.SubChallenge{{Title: " Retry ", Impact: strPtr("med")}},
			OwnerSuggestions: []execution.OwnerRef{
				{Owner: "o1"},
				{Owner: "dana smith", Reason: "knows payments"},
				{Owner: "DANA@example.com"},
				{Owner: "Zed", Reason: "mentioned"},
				{Owner: "zed"},
				{Owner: "  "},
			},
		},
	})

	assert.Equal(t, "Payments fail", got.CurrentTitle)
	assert.Equal(t, backlog.PriorityHigh, got.Priority)
	require.NotNil(t, got.Changes.Status)
	assert.Equal(t, backlog.StatusInProgress, *got.Changes.Status)
	assert.Nil(t, got.Changes.Impact)

	require.Len(t, got.FoundationInsights, 2)
	assert.Equal(t, "i1", got.FoundationInsights[0].InsightID)
	assert.Equal(t, "Complaint", got.FoundationInsights[0].Title)
	require.NotNil(t, got.FoundationInsights[0].Priority)
	assert.Equal(t, backlog.PriorityUrgent, *got.FoundationInsights[0].Priority)
	assert.Equal(t, "i3", got.FoundationInsights[1].InsightID)
	assert.Nil(t, got.FoundationInsights[1].Priority)

	require.Len(t, got.SubChallengeUpdates, 1)
	assert.Equal(t, "c2", got.SubChallengeUpdates[0].ChallengeID)
	assert.Equal(t, backlog.ImpactCritical, *got.SubChallengeUpdates[0].Changes.Impact)

	require.Len(t, got.NewSubChallenges, 1)
	assert.Equal(t, "Retry", got.NewSubChallenges[0].Title)
	assert.Equal(t, backlog.ImpactMedium, *got.NewSubChallenges[0].Impact)

	assert.Equal(t, []OwnerSuggestion{
		{OwnerID: "o1", Name: "Dana Smith", Email: "dana@example.com", Resolved: true, Reason: "knows payments"},
		{Name: "Zed", Reason: "mentioned"},
	}, got.Owners)

	assert.Len(t, m.warnings, 3)
}

func TestMapCreation(t *testing.T) {
	t.Parallel()

	m := NewMapper(snapshot(), WithIDGenerator(sequentialIDs()))
	got := m.MapCreation(execution.CreationOutcome{
		Directive: planning.CreationDirective{
			ReferenceID:       "n1",
			SuggestedParentID: strPtr("c1"),
			InsightIDs:        []string{"i2"},
			SuggestedImpact:   backlog.ImpactHigh,
		},
		Suggestion: execution.RawCreation{
			Title:              "Retry payments",
			Description:        " Add retries ",
			Status:             strPtr("pending review"),
			Impact:             strPtr("unknowable"),
			FoundationInsights: []execution.Foundation{{InsightID: "i2", Justification: "j"}, {InsightID: "i1", Justification: "j"}},
			OwnerSuggestions:   []execution.OwnerRef{{Owner: "Lee"}},
		},
	})

	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "n1", got.ReferenceID)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, "c1", *got.ParentID)
	assert.Equal(t, "Add retries", got.Description)
	assert.Nil(t, got.Status)
	require.NotNil(t, got.Impact)
	assert.Equal(t, backlog.ImpactHigh, *got.Impact)
	require.Len(t, got.FoundationInsights, 1)
	assert.Equal(t, "i2", got.FoundationInsights[0].InsightID)
	assert.Equal(t, []OwnerSuggestion{{OwnerID: "o2", Name: "Lee", Resolved: true}}, got.Owners)
}

func TestBuild_KeepsPartialResults(t *testing.T) {
	t.Parallel()

	failed := "c3"
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Minute)
	m := NewMapper(snapshot(), WithIDGenerator(sequentialIDs()), WithClock(func() time.Time { return finished }))

	r := m.Build(Input{
		RunID: "run-1",
		Plan: planning.Result{
			Plan: planning.Plan{
				Summary:        "two things",
				NoChangeNeeded: []planning.NoChangeRecord{{ChallengeID: "c2", Reason: "fine"}},
			},
			Warnings: []planning.Warning{{List: planning.ListUpdates, DirectiveID: "c9", Message: `challenge "c9" does not exist; directive dropped`}},
			Response: agent.Response{LogID: "plan-log"},
		},
		Outcome: execution.Outcome{
			Updates: []execution.UpdateOutcome{{
				Directive:  planning.UpdateDirective{ChallengeID: "c1", Priority: backlog.PriorityLow, ChangeScope: backlog.ScopeMinor},
				Suggestion: execution.RawUpdate{Rationale: "r"},
				Response:   agent.Response{LogID: "log-c1"},
			}},
			Creations: []execution.CreationOutcome{{
				Directive:  planning.CreationDirective{ReferenceID: "n1", SuggestedImpact: backlog.ImpactLow},
				Suggestion: execution.RawCreation{Title: "New", Description: "d"},
			}},
			Errors: []execution.ExecutionError{{DirectiveID: &failed, Kind: execution.KindDecode, Message: "no object"}},
		},
		Metadata: Metadata{PlannerAgent: "planner", UpdaterAgent: "updater", CreatorAgent: "creator", StartedAt: started},
	})

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "p1", r.ProjectID)
	assert.Equal(t, "two things", r.Summary)
	require.Len(t, r.Updates, 1)
	require.Len(t, r.NewChallenges, 1)
	assert.Equal(t, "id-1", r.NewChallenges[0].ID)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "c3", *r.Errors[0].DirectiveID)
	assert.Equal(t, []planning.NoChangeRecord{{ChallengeID: "c2", Reason: "fine"}}, r.NoChange)
	assert.Equal(t, []Warning{{Source: SourcePlan, ID: "c9", Message: `updates: challenge "c9" does not exist; directive dropped`}}, r.Warnings)
	assert.Equal(t, "plan-log", r.Metadata.PlannerLogID)
	assert.Equal(t, map[string]string{"c1": "log-c1"}, r.Metadata.LogIDs)
	assert.Equal(t, started, r.Metadata.StartedAt)
	assert.Equal(t, finished, r.Metadata.FinishedAt)

	md := Markdown(r)
	for _, want := range []string{
		"# Backlog review p1",
		"## Updates (1)",
		"### Payments fail `c1`",
		"## New challenges (1)",
		"## No change needed (1)",
		"- `c3` decode: no object",
		"## Warnings (1)",
	} {
		assert.True(t, strings.Contains(md, want), "markdown missing %q:\n%s", want, md)
	}
}

func TestBuild_EmptyOutcomeHasEmptyLists(t *testing.T) {
	t.Parallel()

	r := NewMapper(snapshot()).Build(Input{RunID: "r"})
	assert.NotNil(t, r.Updates)
	assert.NotNil(t, r.NewChallenges)
	assert.NotNil(t, r.NoChange)
	assert.NotNil(t, r.Warnings)
	assert.Nil(t, r.Errors)
}
