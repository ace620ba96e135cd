// Package mcpserver exposes the review pipeline as an MCP tool.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/metalagman/refiner/internal/report"
	"github.com/metalagman/refiner/internal/review"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolName is the name of the review tool.
const ToolName = "review_backlog"

// Reviewer runs one review.
type Reviewer interface {
	Run(ctx context.Context, req review.Request) (report.Report, error)
}

// ReviewInput are the arguments of the review tool.
type ReviewInput struct {
	ProjectID   string   `json:"projectId"             jsonschema:"id of the project whose backlog is reviewed"`
	Profile     string   `json:"profile,omitempty"     jsonschema:"agent profile to use instead of the configured one"`
	Planner     string   `json:"planner,omitempty"     jsonschema:"agent name overriding the planner role"`
	Updater     string   `json:"updater,omitempty"     jsonschema:"agent name overriding the updater role"`
	Creator     string   `json:"creator,omitempty"     jsonschema:"agent name overriding the creator role"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 2"`
	MaxTokens   *int     `json:"maxTokens,omitempty"   jsonschema:"maximum output tokens per agent call"`
}

// New returns an MCP server with the review tool registered.
func New(reviewer Reviewer, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "refiner", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name: ToolName,
		Description: "Review a project's challenge backlog against collected insights. " +
			"Returns suggested updates, new challenges and per-directive errors as a markdown report " +
			"with the full report as structured content.",
	}, reviewHandler(reviewer))
	return server
}

func reviewHandler(reviewer Reviewer) mcp.ToolHandlerFor[ReviewInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ReviewInput) (*mcp.CallToolResult, any, error) {
		rep, err := reviewer.Run(ctx, review.Request{
			ProjectID: in.ProjectID,
			Profile:   in.Profile,
			Agents: review.AgentOverrides{
				Planner: in.Planner,
				Updater: in.Updater,
				Creator: in.Creator,
			},
			Temperature: in.Temperature,
			MaxTokens:   in.MaxTokens,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("review %s: %w", in.ProjectID, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: report.Markdown(rep)}},
		}, rep, nil
	}
}

// Serve runs the server over stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
