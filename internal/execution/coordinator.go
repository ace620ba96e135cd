// Package execution fans a revision plan out into one agent invocation per
// directive and joins every outcome, successful or not.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/decode"
	"github.com/metalagman/refiner/internal/planning"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options select the agents and sampling overrides for one run.
type Options struct {
	UpdaterID   string
	CreatorID   string
	Temperature *float64
	MaxTokens   *int
}

// UpdateOutcome is a decoded updater reply for one directive.
type UpdateOutcome struct {
	Directive  planning.UpdateDirective
	Suggestion RawUpdate
	Response   agent.Response
}

// CreationOutcome is a decoded creator reply for one directive.
type CreationOutcome struct {
	Directive  planning.CreationDirective
	Suggestion RawCreation
	Response   agent.Response
}

// Outcome holds every successful suggestion in plan order plus the failures.
type Outcome struct {
	Updates   []UpdateOutcome
	Creations []CreationOutcome
	Errors    []ExecutionError
}

// Coordinator runs the execution fan-out.
type Coordinator struct {
	invoker        agent.Invoker
	maxConcurrency int
	callTimeout    time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxConcurrency bounds the number of concurrent invocations. Zero or
// less means one goroutine per directive.
func WithMaxConcurrency(n int) Option {
	return func(c *Coordinator) { c.maxConcurrency = n }
}

// WithCallTimeout bounds every single invocation. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.callTimeout = d }
}

// New returns a Coordinator calling agents through invoker.
func New(invoker agent.Invoker, opts ...Option) *Coordinator {
	c := &Coordinator{invoker: invoker}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type slot struct {
	update   *UpdateOutcome
	creation *CreationOutcome
	err      *ExecutionError
}

// Run invokes the updater for every update directive and the creator for
// every creation directive. Tasks never cancel each other: each one records
// its own result or failure and Run waits for all of them.
func (c *Coordinator) Run(ctx context.Context, snap *backlog.Snapshot, plan planning.Plan, opts Options) Outcome {
	total := len(plan.Updates) + len(plan.Creations)
	slots := make([]slot, total)
	if total == 0 {
		return Outcome{}
	}

	var g errgroup.Group
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}

	start := time.Now()
	for i, d := range plan.Updates {
		g.Go(func() error {
			c.runTask(ctx, &slots[i], d.ChallengeID, func(callCtx context.Context) error {
				out, err := c.update(callCtx, snap, d, opts)
				if err != nil {
					return err
				}
				slots[i].update = &out
				return nil
			})
			return nil
		})
	}
	offset := len(plan.Updates)
	for i, d := range plan.Creations {
		g.Go(func() error {
			c.runTask(ctx, &slots[offset+i], d.ReferenceID, func(callCtx context.Context) error {
				out, err := c.create(callCtx, snap, d, opts)
				if err != nil {
					return err
				}
				slots[offset+i].creation = &out
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	var out Outcome
	for _, s := range slots {
		switch {
		case s.err != nil:
			out.Errors = append(out.Errors, *s.err)
		case s.update != nil:
			out.Updates = append(out.Updates, *s.update)
		case s.creation != nil:
			out.Creations = append(out.Creations, *s.creation)
		}
	}
	log.Info().
		Int("tasks", total).
		Int("updates", len(out.Updates)).
		Int("creations", len(out.Creations)).
		Int("errors", len(out.Errors)).
		Dur("duration", time.Since(start)).
		Msg("execution finished")
	return out
}

func (c *Coordinator) runTask(ctx context.Context, s *slot, directiveID string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("directive_id", directiveID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("execution task panicked")
			s.update, s.creation = nil, nil
			s.err = newError(directiveID, KindPanic, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		s.err = newError(directiveID, KindCanceled, fmt.Errorf("not started: %w", err))
		return
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	if err := fn(callCtx); err != nil {
		kind := classify(callCtx, err)
		log.Warn().Err(err).Str("directive_id", directiveID).Str("kind", string(kind)).Msg("execution task failed")
		s.update, s.creation = nil, nil
		s.err = newError(directiveID, kind, err)
	}
}

func (c *Coordinator) update(ctx context.Context, snap *backlog.Snapshot, d planning.UpdateDirective, opts Options) (UpdateOutcome, error) {
	scoped, err := snap.Scoped(d.ChallengeID)
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("%w: %w", errContext, err)
	}
	vars, err := encodeVars(map[string]any{
		"project":       snap.Project(),
		"directive":     d,
		"challenge":     scoped.Challenge,
		"children":      scoped.Children,
		"insights":      scoped.Insights,
		"conversations": scoped.ConversationIDs,
		"owners":        snap.Owners(),
	})
	if err != nil {
		return UpdateOutcome{}, fmt.Errorf("%w: %w", errContext, err)
	}

	resp, err := c.invoker.Invoke(ctx, agent.Invocation{
		AgentID:         opts.UpdaterID,
		InteractionType: agent.InteractionUpdate,
		Variables:       vars,
		OutputSchema:    UpdateSchema.String(),
		Temperature:     opts.Temperature,
		MaxTokens:       opts.MaxTokens,
	})
	if err != nil {
		return UpdateOutcome{}, err
	}
	raw, err := decode.Decode[RawUpdate](resp.Text, UpdateSchema)
	if err != nil {
		return UpdateOutcome{}, err
	}
	return UpdateOutcome{Directive: d, Suggestion: raw, Response: resp}, nil
}

func (c *Coordinator) create(ctx context.Context, snap *backlog.Snapshot, d planning.CreationDirective, opts Options) (CreationOutcome, error) {
	global := snap.Global()
	vars, err := encodeVars(map[string]any{
		"project":    global.Project,
		"directive":  d,
		"evidence":   snap.Insights(d.InsightIDs),
		"challenges": global.Challenges,
		"owners":     global.Owners,
	})
	if err != nil {
		return CreationOutcome{}, fmt.Errorf("%w: %w", errContext, err)
	}

	resp, err := c.invoker.Invoke(ctx, agent.Invocation{
		AgentID:         opts.CreatorID,
		InteractionType: agent.InteractionCreation,
		Variables:       vars,
		OutputSchema:    CreationSchema.String(),
		Temperature:     opts.Temperature,
		MaxTokens:       opts.MaxTokens,
	})
	if err != nil {
		return CreationOutcome{}, err
	}
	raw, err := decode.Decode[RawCreation](resp.Text, CreationSchema)
	if err != nil {
		return CreationOutcome{}, err
	}
	return CreationOutcome{Directive: d, Suggestion: raw, Response: resp}, nil
}

func encodeVars(fields map[string]any) (map[string]string, error) {
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
