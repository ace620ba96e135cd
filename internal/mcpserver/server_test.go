package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/metalagman/refiner/internal/report"
	"github.com/metalagman/refiner/internal/review"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewerFunc func(ctx context.Context, req review.Request) (report.Report, error)

func (f reviewerFunc) Run(ctx context.Context, req review.Request) (report.Report, error) {
	return f(ctx, req)
}

func connect(t *testing.T, reviewer Reviewer) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	serverSession, err := New(reviewer, "test").Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestReviewTool(t *testing.T) {
	t.Parallel()

	requests := make(chan review.Request, 1)
	session := connect(t, reviewerFunc(func(_ context.Context, req review.Request) (report.Report, error) {
		requests <- req
		return report.Report{RunID: "r1", ProjectID: req.ProjectID, Summary: "Tighten payments"}, nil
	}))

	ctx := context.Background()
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, ToolName, tools.Tools[0].Name)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolName,
		Arguments: map[string]any{"projectId": "p1", "planner": "fast", "maxTokens": 300},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Tighten payments")

	got := <-requests
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, "fast", got.Agents.Planner)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 300, *got.MaxTokens)
}

func TestReviewTool_Error(t *testing.T) {
	t.Parallel()

	session := connect(t, reviewerFunc(func(context.Context, review.Request) (report.Report, error) {
		return report.Report{}, errors.New("planning failed")
	}))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolName,
		Arguments: map[string]any{"projectId": "p1"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
