// Package review runs the backlog review pipeline: load context, plan,
// execute directives concurrently and map the results into a report.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/execution"
	"github.com/metalagman/refiner/internal/planning"
	"github.com/metalagman/refiner/internal/report"
	"github.com/metalagman/refiner/internal/source"
	"github.com/rs/zerolog/log"
)

// AgentOverrides replaces the profile's agent for a role when set.
type AgentOverrides struct {
	Planner string `json:"planner,omitempty"`
	Updater string `json:"updater,omitempty"`
	Creator string `json:"creator,omitempty"`
}

// Request is one review request.
type Request struct {
	ProjectID   string         `json:"projectId"`
	Profile     string         `json:"profile,omitempty"`
	Agents      AgentOverrides `json:"agents,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"maxTokens,omitempty"`
}

// Service runs reviews.
type Service struct {
	cfg     config.Config
	source  source.Source
	invoker agent.Invoker
	store   *db.Store
	newID   func() string
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStore records every run in the store.
func WithStore(store *db.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithIDGenerator replaces uuid.NewString for run and challenge ids.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithClock replaces time.Now.
func WithClock(f func() time.Time) Option {
	return func(s *Service) { s.now = f }
}

// NewService creates a review service.
func NewService(cfg config.Config, src source.Source, invoker agent.Invoker, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		source:  src,
		invoker: invoker,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one review. It returns ErrInvalidRequest for bad input,
// source.ErrProjectNotFound for unknown projects and ErrPlanning when the
// planner output is unusable. Execution failures never fail the run; they
// are reported in Report.Errors next to the successful suggestions.
func (s *Service) Run(ctx context.Context, req Request) (report.Report, error) {
	roles, err := s.validate(req)
	if err != nil {
		return report.Report{}, err
	}

	rows, err := s.source.Load(ctx, req.ProjectID)
	if err != nil {
		return report.Report{}, fmt.Errorf("load context: %w", err)
	}

	runID := s.newID()
	started := s.now().UTC()
	logger := log.With().Str("run_id", runID).Str("project_id", req.ProjectID).Logger()
	s.recordStart(ctx, runID, req.ProjectID, started)

	snap := backlog.NewSnapshot(rows)
	for _, w := range snap.Warnings() {
		logger.Warn().Str("challenge_id", w.ChallengeID).Msg(w.Message)
	}

	planned, err := planning.New(s.invoker).Plan(ctx, snap, planning.Options{
		AgentID:     roles.Planner,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		perr := planningError(err)
		logger.Error().Err(err).Str("stage", perr.Stage).Msg("review aborted")
		s.recordFinish(ctx, runID, db.RunResult{Status: db.RunFailed, FinishedAt: s.now().UTC(), Error: perr.Error()})
		return report.Report{}, perr
	}
	for _, w := range planned.Warnings {
		logger.Warn().Str("list", w.List).Str("directive_id", w.DirectiveID).Msg(w.Message)
	}

	outcome := execution.New(s.invoker,
		execution.WithMaxConcurrency(s.cfg.Execution.MaxConcurrency),
		execution.WithCallTimeout(s.cfg.Execution.CallTimeout()),
	).Run(ctx, snap, planned.Plan, execution.Options{
		UpdaterID:   roles.Updater,
		CreatorID:   roles.Creator,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})

	rep := report.NewMapper(snap, report.WithIDGenerator(s.newID), report.WithClock(s.now)).Build(report.Input{
		RunID:   runID,
		Plan:    planned,
		Outcome: outcome,
		Metadata: report.Metadata{
			PlannerAgent: roles.Planner,
			UpdaterAgent: roles.Updater,
			CreatorAgent: roles.Creator,
			StartedAt:    started,
		},
	})

	s.recordFinish(ctx, runID, db.RunResult{
		Status:     db.RunSucceeded,
		FinishedAt: rep.Metadata.FinishedAt,
		Summary:    rep.Summary,
		PlanJSON:   encodeJSON(planned.Plan),
		ReportJSON: encodeJSON(rep),
	})
	logger.Info().
		Int("updates", len(rep.Updates)).
		Int("new_challenges", len(rep.NewChallenges)).
		Int("errors", len(rep.Errors)).
		Int("warnings", len(rep.Warnings)).
		Dur("duration", rep.Metadata.FinishedAt.Sub(started)).
		Msg("review finished")
	return rep, nil
}

func (s *Service) validate(req Request) (config.RoleRefs, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return config.RoleRefs{}, invalid("project id is required")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return config.RoleRefs{}, invalid("temperature %.2f out of range [0, 2]", *req.Temperature)
	}
	if req.MaxTokens != nil && (*req.MaxTokens <= 0 || *req.MaxTokens > agent.MaxTokensLimit) {
		return config.RoleRefs{}, invalid("maxTokens must be in [1, %d]", agent.MaxTokensLimit)
	}

	_, roles, err := s.cfg.ResolveRoles(req.Profile)
	if err != nil {
		return config.RoleRefs{}, invalid("%v", err)
	}
	overrides := []struct {
		name string
		dst  *string
	}{
		{req.Agents.Planner, &roles.Planner},
		{req.Agents.Updater, &roles.Updater},
		{req.Agents.Creator, &roles.Creator},
	}
	var errs []error
	for _, o := range overrides {
		if o.name == "" {
			continue
		}
		if _, err := s.cfg.Agent(o.name); err != nil {
			errs = append(errs, err)
			continue
		}
		*o.dst = o.name
	}
	if err := errors.Join(errs...); err != nil {
		return config.RoleRefs{}, invalid("%v", err)
	}
	return roles, nil
}

func (s *Service) recordStart(ctx context.Context, runID, projectID string, started time.Time) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateRun(ctx, runID, projectID, started); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("run not recorded")
	}
}

func (s *Service) recordFinish(ctx context.Context, runID string, res db.RunResult) {
	if s.store == nil {
		return
	}
	// The run is recorded even when the request context is already done.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.FinishRun(ctx, runID, res); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("run result not recorded")
	}
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
