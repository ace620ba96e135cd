// Package agent invokes named, templated language-model agents and returns
// their raw text output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Interaction types understood by the built-in prompts.
const (
	InteractionPlanning = "planning"
	InteractionUpdate   = "update"
	InteractionCreation = "creation"
)

// MaxTokensLimit is the largest output cap every transport can carry.
const MaxTokensLimit = math.MaxInt32

// ErrInvocation matches every failure of the remote agent call itself.
var ErrInvocation = errors.New("agent invocation failed")

// Invocation is one request to a named agent. Variables are rendered into the
// agent's prompt template. Nil sampling fields defer to the agent definition.
type Invocation struct {
	AgentID         string
	InteractionType string
	Variables       map[string]string
	OutputSchema    string
	Temperature     *float64
	MaxTokens       *int
}

// Response is the raw agent output plus invocation metadata.
type Response struct {
	Text    string
	LogID   string
	AgentID string
	Model   string
}

// Invoker calls an agent.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Response, error)
}

// Func adapts a function to Invoker.
type Func func(ctx context.Context, inv Invocation) (Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, inv Invocation) (Response, error) {
	return f(ctx, inv)
}

// InvocationError describes a failed call to a named agent.
type InvocationError struct {
	AgentID         string
	InteractionType string
	Err             error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke agent %q (%s): %v", e.AgentID, e.InteractionType, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvocation.
func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocation
}
