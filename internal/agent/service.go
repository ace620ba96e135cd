package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/metalagman/refiner/internal/config"
	"github.com/rs/zerolog/log"
)

// Service resolves named agent definitions, renders their prompts and calls
// the matching transport. It is safe for concurrent use.
type Service struct {
	agents  map[string]config.AgentConfig
	factory TransportFactory

	mu         sync.Mutex
	transports map[string]Transport
}

// Option configures a Service.
type Option func(*Service)

// WithTransportFactory replaces the default transport factory.
func WithTransportFactory(f TransportFactory) Option {
	return func(s *Service) { s.factory = f }
}

// WithHTTPClient sets the HTTP client used by the API transports.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.factory = NewTransport(c) }
}

// NewService returns a Service over the given agent definitions.
func NewService(agents map[string]config.AgentConfig, opts ...Option) *Service {
	s := &Service{
		agents:     agents,
		factory:    NewTransport(nil),
		transports: make(map[string]Transport, len(agents)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invoke renders the agent's prompts and returns its raw output. Any failure
// is an *InvocationError.
func (s *Service) Invoke(ctx context.Context, inv Invocation) (Response, error) {
	fail := func(err error) (Response, error) {
		return Response{}, &InvocationError{AgentID: inv.AgentID, InteractionType: inv.InteractionType, Err: err}
	}

	cfg, ok := s.agents[inv.AgentID]
	if !ok {
		return fail(fmt.Errorf("agent is not configured"))
	}

	data, err := newPromptData(inv)
	if err != nil {
		return fail(err)
	}
	instructions, err := renderInstructions(cfg.SystemPrompt, data)
	if err != nil {
		return fail(err)
	}
	input, err := renderInput(cfg.Template, data)
	if err != nil {
		return fail(err)
	}

	transport, err := s.transport(ctx, inv.AgentID, cfg)
	if err != nil {
		return fail(err)
	}

	req := Request{
		Interaction:  inv.InteractionType,
		Instructions: instructions,
		Input:        input,
		OutputSchema: inv.OutputSchema,
		Variables:    inv.Variables,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}
	if inv.Temperature != nil {
		req.Temperature = inv.Temperature
	}
	if inv.MaxTokens != nil {
		req.MaxTokens = inv.MaxTokens
	}

	start := time.Now()
	log.Debug().
		Str("agent", inv.AgentID).
		Str("interaction", inv.InteractionType).
		Str("type", cfg.Type).
		Int("input_bytes", len(input)).
		Msg("invoking agent")

	reply, err := transport.Complete(ctx, req)
	if err != nil {
		return fail(err)
	}

	model := reply.Model
	if model == "" {
		model = cfg.Model
	}
	log.Debug().
		Str("agent", inv.AgentID).
		Str("interaction", inv.InteractionType).
		Str("log_id", reply.LogID).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("output_bytes", len(reply.Text)).
		Msg("agent replied")

	return Response{Text: reply.Text, LogID: reply.LogID, AgentID: inv.AgentID, Model: model}, nil
}

func (s *Service) transport(ctx context.Context, name string, cfg config.AgentConfig) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.transports[name]; ok {
		return t, nil
	}
	t, err := s.factory(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	s.transports[name] = t
	return t, nil
}
