package planning

import (
	"testing"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestReconcile(t *testing.T) {
	t.Parallel()

	in := Plan{
		Summary: "  review  ",
		Updates: []UpdateDirective{
			{ChallengeID: "c1", Priority: backlog.PriorityHigh, InsightIDs: []string{"i1", "ghost", "i1"}, ChangeScope: backlog.ScopeMinor},
			{ChallengeID: "c1", Priority: backlog.PriorityLow, ChangeScope: backlog.ScopeMajor},
			{ChallengeID: "nope", Priority: backlog.PriorityLow, ChangeScope: backlog.ScopeMinor},
		},
		Creations: []CreationDirective{
			{ReferenceID: "n1", SuggestedParentID: ptr("c2"), InsightIDs: []string{"i2"}, SuggestedImpact: backlog.ImpactHigh},
			{ReferenceID: "n1", SuggestedImpact: backlog.ImpactLow},
			{ReferenceID: "n2", SuggestedParentID: ptr("c9"), SuggestedImpact: backlog.ImpactLow},
			{SuggestedParentID: ptr(""), SuggestedImpact: backlog.ImpactMedium},
		},
		NoChangeNeeded: []NoChangeRecord{
			{ChallengeID: "c1"},
			{ChallengeID: "c3"},
			{ChallengeID: ""},
		},
	}

	out, warnings := Reconcile(in, snapshot())

	assert.Equal(t, "review", out.Summary)
	require.Len(t, out.Updates, 1)
	assert.Equal(t, []string{"i1"}, out.Updates[0].InsightIDs)
	assert.Equal(t, backlog.PriorityHigh, out.Updates[0].Priority)

	require.Len(t, out.Creations, 2)
	assert.Equal(t, "n1", out.Creations[0].ReferenceID)
	assert.Equal(t, "c2", out.Creations[0].ParentID())
	assert.Equal(t, "new-4", out.Creations[1].ReferenceID)
	assert.Nil(t, out.Creations[1].SuggestedParentID)
	assert.NotNil(t, out.Creations[1].InsightIDs)

	require.Len(t, out.NoChangeNeeded, 1)
	assert.Equal(t, "c3", out.NoChangeNeeded[0].ChallengeID)

	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		messages = append(messages, w.List+": "+w.Message)
	}
	assert.Equal(t, []string{
		`updates: insight "ghost" does not exist; reference pruned`,
		`updates: challenge "c1" already listed in updates; directive dropped`,
		`updates: challenge "nope" does not exist; directive dropped`,
		`noChangeNeeded: challenge "c1" already listed in updates; directive dropped`,
		`noChangeNeeded: directive without challenge id dropped`,
		`creations: duplicate reference id "n1" dropped`,
		`creations: suggested parent "c9" does not exist; creation dropped`,
	}, messages)
}

func TestReconcile_MintedIDsSkipSuppliedOnes(t *testing.T) {
	t.Parallel()

	in := Plan{
		Summary: "new work",
		Creations: []CreationDirective{
			{SuggestedImpact: backlog.ImpactLow},
			{ReferenceID: "new-1", SuggestedImpact: backlog.ImpactHigh},
			{SuggestedImpact: backlog.ImpactMedium},
			{ReferenceID: "new-2", SuggestedImpact: backlog.ImpactLow},
		},
	}

	out, warnings := Reconcile(in, snapshot())
	assert.Empty(t, warnings)

	refs := make([]string, 0, len(out.Creations))
	for _, c := range out.Creations {
		refs = append(refs, c.ReferenceID)
	}
	assert.Equal(t, []string{"new-3", "new-1", "new-4", "new-2"}, refs)
}

func TestReconcile_EmptyPlanIsValid(t *testing.T) {
	t.Parallel()

	out, warnings := Reconcile(Plan{Summary: "fine"}, snapshot())
	assert.Empty(t, warnings)
	assert.True(t, out.Empty())
	assert.NotNil(t, out.Updates)
	assert.NotNil(t, out.Creations)
	assert.NotNil(t, out.NoChangeNeeded)
}
