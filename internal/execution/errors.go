package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/decode"
)

// Kind classifies a failed fan-out task.
type Kind string

const (
	KindDecode     Kind = "decode"
	KindSchema     Kind = "schema"
	KindInvocation Kind = "invocation"
	KindContext    Kind = "context"
	KindPanic      Kind = "panic"
	KindTimeout    Kind = "timeout"
	KindCanceled   Kind = "canceled"
)

// ExecutionError is a failure recorded against one directive. DirectiveID is
// nil when the failure cannot be attributed to a directive.
type ExecutionError struct {
	DirectiveID *string `json:"directiveId"`
	Kind        Kind    `json:"kind"`
	Message     string  `json:"message"`
}

func (e *ExecutionError) Error() string {
	id := "<unattributed>"
	if e.DirectiveID != nil {
		id = *e.DirectiveID
	}
	return fmt.Sprintf("directive %s: %s: %s", id, e.Kind, e.Message)
}

func newError(directiveID string, kind Kind, err error) *ExecutionError {
	e := &ExecutionError{Kind: kind, Message: err.Error()}
	if directiveID != "" {
		e.DirectiveID = &directiveID
	}
	return e
}

// classify maps a task error onto a Kind. callCtx is the per-call context so
// that a call timeout is told apart from cancellation of the whole batch.
func classify(callCtx context.Context, err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, decode.ErrSchema):
		return KindSchema
	case errors.Is(err, decode.ErrDecode):
		return KindDecode
	case errors.Is(err, errContext):
		return KindContext
	case errors.Is(err, agent.ErrInvocation):
		return KindInvocation
	default:
		return KindInvocation
	}
}

var errContext = errors.New("context unavailable")
