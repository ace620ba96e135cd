package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/execution"
	"github.com/metalagman/refiner/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource map[string]backlog.Rows

func (s stubSource) Load(_ context.Context, projectID string) (backlog.Rows, error) {
	rows, ok := s[projectID]
	if !ok {
		return backlog.Rows{}, fmt.Errorf("%w: %s", source.ErrProjectNotFound, projectID)
	}
	return rows, nil
}

func testRows() backlog.Rows {
	return backlog.Rows{
		Project: backlog.Project{ID: "p1", Name: "Checkout"},
		Challenges: []backlog.ChallengeRow{
			{ID: "c1", Title: "Payments fail", Status: "identified", Impact: "medium", InsightIDs: []string{"i1"}},
			{ID: "c2", ParentID: "c1", Title: "Card declines"},
		},
		Insights: []backlog.InsightRow{{ID: "i1", Title: "Complaint", ConversationID: "conv-1"}},
		Owners:   []backlog.Owner{{ID: "o1", Name: "Dana"}},
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Agents["fast-planner"] = config.AgentConfig{Type: config.AgentTypeOpenAI, Model: "gpt-5-mini"}
	return cfg
}

const (
	planReply = `{"summary": "Tighten payments",
		"updates": [{"challengeId": "c1", "priority": "high", "reason": "new evidence", "insightIds": ["i1", "i9"], "changeScope": "minor"}],
		"creations": [{"referenceId": "n1", "title": "Refund delays", "insightIds": ["i1"], "suggestedImpact": "medium"}],
		"noChangeNeeded": [{"challengeId": "c2", "reason": "fine"}]}`
	updateReply = "```json\n" + `{changes: {title: 'Payments fail at checkout', status: 'in progress'}, rationale: 'evidence',
		foundationInsights: [{insightId: 'i1', justification: 'direct'}], ownerSuggestions: [{owner: 'dana'}]}` + "\n```"
	creationReply = `{"title": "Refund delays", "description": "Refunds take a week", "rationale": "seen twice"}`
)

type recorder struct {
	mu    sync.Mutex
	calls []agent.Invocation
}

func (r *recorder) invoker(replies map[string]string, failures map[string]error) agent.Func {
	return func(_ context.Context, inv agent.Invocation) (agent.Response, error) {
		r.mu.Lock()
		r.calls = append(r.calls, inv)
		r.mu.Unlock()
		if err := failures[inv.InteractionType]; err != nil {
			return agent.Response{}, &agent.InvocationError{AgentID: inv.AgentID, InteractionType: inv.InteractionType, Err: err}
		}
		return agent.Response{
			Text:    replies[inv.InteractionType],
			AgentID: inv.AgentID,
			LogID:   "log-" + inv.InteractionType,
		}, nil
	}
}

func (r *recorder) agentsFor(interaction string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.InteractionType == interaction {
			out = append(out, c.AgentID)
		}
	}
	return out
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func openStore(t *testing.T) *db.Store {
	t.Helper()
	handle, err := db.Open(context.Background(), db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	return db.NewStore(handle)
}

var allReplies = map[string]string{
	agent.InteractionPlanning: planReply,
	agent.InteractionUpdate:   updateReply,
	agent.InteractionCreation: creationReply,
}

func TestService_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	rec := &recorder{}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(testConfig(), stubSource{"p1": testRows()}, rec.invoker(allReplies, nil),
		WithStore(store),
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return now }),
	)

	rep, err := svc.Run(ctx, Request{ProjectID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "id-1", rep.RunID)
	assert.Equal(t, "p1", rep.ProjectID)
	assert.Equal(t, "Tighten payments", rep.Summary)
	assert.Empty(t, rep.Errors)

	require.Len(t, rep.Updates, 1)
	u := rep.Updates[0]
	assert.Equal(t, "c1", u.ChallengeID)
	assert.Equal(t, backlog.PriorityHigh, u.Priority)
	require.NotNil(t, u.Changes.Title)
	assert.Equal(t, "Payments fail at checkout", *u.Changes.Title)
	require.NotNil(t, u.Changes.Status)
	assert.Equal(t, backlog.StatusInProgress, *u.Changes.Status)
	require.Len(t, u.Owners, 1)
	assert.Equal(t, "o1", u.Owners[0].OwnerID)
	assert.True(t, u.Owners[0].Resolved)

	require.Len(t, rep.NewChallenges, 1)
	n := rep.NewChallenges[0]
	assert.Equal(t, "id-2", n.ID)
	assert.Equal(t, "n1", n.ReferenceID)
	require.NotNil(t, n.Impact)
	assert.Equal(t, backlog.ImpactMedium, *n.Impact)

	require.Len(t, rep.NoChange, 1)
	assert.Equal(t, "c2", rep.NoChange[0].ChallengeID)

	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0].Message, `insight "i9" does not exist`)

	assert.Equal(t, "planner", rep.Metadata.PlannerAgent)
	assert.Equal(t, "log-planning", rep.Metadata.PlannerLogID)
	assert.Equal(t, map[string]string{"c1": "log-update", "n1": "log-creation"}, rep.Metadata.LogIDs)
	assert.Equal(t, now, rep.Metadata.StartedAt)

	run, err := store.GetRun(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, db.RunSucceeded, run.Status)
	assert.Equal(t, "Tighten payments", run.Summary)
	assert.Contains(t, run.ReportJSON, `"runId":"id-1"`)
	assert.Contains(t, run.PlanJSON, `"challengeId":"c1"`)
}

func TestService_RunOverrides(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	svc := NewService(testConfig(), stubSource{"p1": testRows()}, rec.invoker(allReplies, nil))

	temp := 0.2
	tokens := 512
	rep, err := svc.Run(context.Background(), Request{
		ProjectID:   "p1",
		Agents:      AgentOverrides{Planner: "fast-planner"},
		Temperature: &temp,
		MaxTokens:   &tokens,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fast-planner"}, rec.agentsFor(agent.InteractionPlanning))
	assert.Equal(t, []string{"updater"}, rec.agentsFor(agent.InteractionUpdate))
	assert.Equal(t, []string{"creator"}, rec.agentsFor(agent.InteractionCreation))
	assert.Equal(t, "fast-planner", rep.Metadata.PlannerAgent)
	for _, c := range rec.calls {
		require.NotNil(t, c.Temperature)
		assert.InDelta(t, 0.2, *c.Temperature, 1e-9)
		require.NotNil(t, c.MaxTokens)
		assert.Equal(t, 512, *c.MaxTokens)
	}
}

func TestService_RunPartialFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	svc := NewService(testConfig(), stubSource{"p1": testRows()},
		rec.invoker(allReplies, map[string]error{agent.InteractionCreation: errors.New("rate limited")}))

	rep, err := svc.Run(context.Background(), Request{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, rep.Updates, 1)
	assert.Empty(t, rep.NewChallenges)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, execution.KindInvocation, rep.Errors[0].Kind)
	require.NotNil(t, rep.Errors[0].DirectiveID)
	assert.Equal(t, "n1", *rep.Errors[0].DirectiveID)
}

func TestService_RunPlanningFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reply     string
		failure   error
		wantStage string
	}{
		{name: "not json", reply: "I could not produce a plan.", wantStage: StageDecode},
		{name: "schema mismatch", reply: `{"updates": []}`, wantStage: StageSchema},
		{name: "transport error", failure: errors.New("connection reset"), wantStage: StageInvocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := openStore(t)
			rec := &recorder{}
			failures := map[string]error{}
			if tt.failure != nil {
				failures[agent.InteractionPlanning] = tt.failure
			}
			svc := NewService(testConfig(), stubSource{"p1": testRows()},
				rec.invoker(map[string]string{agent.InteractionPlanning: tt.reply}, failures),
				WithStore(store), WithIDGenerator(sequentialIDs()))

			_, err := svc.Run(ctx, Request{ProjectID: "p1"})
			require.ErrorIs(t, err, ErrPlanning)
			var perr *PlanningError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantStage, perr.Stage)
			assert.Empty(t, rec.agentsFor(agent.InteractionUpdate))

			run, err := store.GetRun(ctx, "id-1")
			require.NoError(t, err)
			assert.Equal(t, db.RunFailed, run.Status)
			assert.NotEmpty(t, run.Error)
			assert.Empty(t, run.ReportJSON)
		})
	}
}

func TestService_RunPlanningFailure_BareInvokerError(t *testing.T) {
	t.Parallel()

	invoker := agent.Func(func(context.Context, agent.Invocation) (agent.Response, error) {
		return agent.Response{}, errors.New("quota exhausted")
	})
	svc := NewService(testConfig(), stubSource{"p1": testRows()}, invoker, WithIDGenerator(sequentialIDs()))

	_, err := svc.Run(context.Background(), Request{ProjectID: "p1"})
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageInvocation, perr.Stage)
	assert.ErrorContains(t, err, "quota exhausted")
}

func TestService_RunRejectsRequest(t *testing.T) {
	t.Parallel()

	hot := 2.5
	zero := 0
	huge := agent.MaxTokensLimit + 1
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{name: "missing project", req: Request{ProjectID: " "}, want: "project id is required"},
		{name: "temperature", req: Request{ProjectID: "p1", Temperature: &hot}, want: "temperature 2.50 out of range"},
		{name: "max tokens", req: Request{ProjectID: "p1", MaxTokens: &zero}, want: "maxTokens must be in [1, 2147483647]"},
		{name: "max tokens too large", req: Request{ProjectID: "p1", MaxTokens: &huge}, want: "maxTokens must be in [1, 2147483647]"},
		{name: "unknown agent", req: Request{ProjectID: "p1", Agents: AgentOverrides{Updater: "ghost"}}, want: `agent "ghost" is not configured`},
		{name: "unknown profile", req: Request{ProjectID: "p1", Profile: "night"}, want: `profile "night" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			svc := NewService(testConfig(), stubSource{"p1": testRows()}, rec.invoker(allReplies, nil))
			_, err := svc.Run(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.ErrorContains(t, err, tt.want)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestService_RunUnknownProject(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	svc := NewService(testConfig(), stubSource{}, rec.invoker(allReplies, nil))
	_, err := svc.Run(context.Background(), Request{ProjectID: "p9"})
	require.ErrorIs(t, err, source.ErrProjectNotFound)
	assert.NotErrorIs(t, err, ErrPlanning)
	assert.Empty(t, rec.calls)
}
