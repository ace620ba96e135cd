package review

import (
	"errors"
	"fmt"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/decode"
)

var (
	// ErrInvalidRequest matches requests rejected before any agent is called.
	ErrInvalidRequest = errors.New("invalid review request")
	// ErrPlanning matches hard planning failures. No partial report exists.
	ErrPlanning = errors.New("planning failed")
)

// Planning failure stages.
const (
	StageInvocation = "invocation"
	StageDecode     = "decode"
	StageSchema     = "schema"
	StageContext    = "context"
)

// PlanningError is a hard planning failure with the stage that gave up.
type PlanningError struct {
	Stage string
	Err   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed at %s stage: %v", e.Stage, e.Err)
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}

func (e *PlanningError) Is(target error) bool {
	return target == ErrPlanning
}

func planningError(err error) *PlanningError {
	stage := StageContext
	switch {
	case errors.Is(err, decode.ErrSchema):
		stage = StageSchema
	case errors.Is(err, decode.ErrDecode):
		stage = StageDecode
	case errors.Is(err, agent.ErrInvocation):
		stage = StageInvocation
	}
	return &PlanningError{Stage: stage, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
