// Package planning runs the single global planning invocation and turns its
// output into a referentially consistent revision plan.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/decode"
	"github.com/rs/zerolog/log"
)

// Options are per-run overrides for the planner agent.
type Options struct {
	AgentID     string
	Temperature *float64
	MaxTokens   *int
}

// Result is a reconciled plan with the warnings raised while reconciling it.
type Result struct {
	Plan     Plan
	Warnings []Warning
	Response agent.Response
}

// Planner invokes the planner agent.
type Planner struct {
	invoker agent.Invoker
}

// New returns a Planner that calls agents through invoker.
func New(invoker agent.Invoker) *Planner {
	return &Planner{invoker: invoker}
}

// Plan serializes the global context, invokes the planner agent and decodes
// its reply. Invocation, decode and schema failures are returned as errors;
// referential problems only produce warnings.
func (p *Planner) Plan(ctx context.Context, snap *backlog.Snapshot, opts Options) (Result, error) {
	vars, err := Variables(snap.Global())
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := p.invoker.Invoke(ctx, agent.Invocation{
		AgentID:         opts.AgentID,
		InteractionType: agent.InteractionPlanning,
		Variables:       vars,
		OutputSchema:    Schema.String(),
		Temperature:     opts.Temperature,
		MaxTokens:       opts.MaxTokens,
	})
	if err != nil {
		if !errors.Is(err, agent.ErrInvocation) {
			err = &agent.InvocationError{AgentID: opts.AgentID, InteractionType: agent.InteractionPlanning, Err: err}
		}
		return Result{}, fmt.Errorf("invoke planner: %w", err)
	}

	raw, err := decode.Decode[Plan](resp.Text, Schema)
	if err != nil {
		log.Error().Err(err).Str("agent", opts.AgentID).Str("log_id", resp.LogID).Msg("planner output rejected")
		return Result{}, fmt.Errorf("decode plan: %w", err)
	}

	plan, warnings := Reconcile(raw, snap)
	log.Info().
		Str("agent", resp.AgentID).
		Str("log_id", resp.LogID).
		Int("updates", len(plan.Updates)).
		Int("creations", len(plan.Creations)).
		Int("no_change", len(plan.NoChangeNeeded)).
		Int("warnings", len(warnings)).
		Dur("duration", time.Since(start)).
		Msg("plan ready")

	return Result{Plan: plan, Warnings: warnings, Response: resp}, nil
}

// Variables renders the global context into planner template variables.
func Variables(g backlog.GlobalContext) (map[string]string, error) {
	fields := map[string]any{
		"project":    g.Project,
		"challenges": g.Challenges,
		"insights":   g.Insights,
		"owners":     g.Owners,
	}
	vars := make(map[string]string, len(fields))
	for name, v := range fields {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		vars[name] = string(b)
	}
	return vars, nil
}
