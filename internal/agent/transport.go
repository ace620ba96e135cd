package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/metalagman/refiner/internal/agent/geminiapi"
	"github.com/metalagman/refiner/internal/agent/openaiapi"
	"github.com/metalagman/refiner/internal/config"
)

// Request is what a transport sends for one invocation.
type Request struct {
	Interaction  string
	Instructions string
	Input        string
	OutputSchema string
	Variables    map[string]string
	Temperature  *float64
	MaxTokens    *int
}

// Reply is a transport's raw result.
type Reply struct {
	Text  string
	LogID string
	Model string
}

// Transport delivers a rendered request to a model and returns its text.
type Transport interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// TransportFactory builds the transport for a named agent definition.
type TransportFactory func(ctx context.Context, name string, cfg config.AgentConfig) (Transport, error)

// NewTransport is the default TransportFactory.
func NewTransport(httpClient *http.Client) TransportFactory {
	return func(ctx context.Context, name string, cfg config.AgentConfig) (Transport, error) {
		timeout := time.Duration(cfg.Timeout) * time.Second
		switch cfg.Type {
		case config.AgentTypeOpenAI:
			c, err := openaiapi.NewClient(openaiapi.Config{
				Model:     cfg.Model,
				BaseURL:   cfg.BaseURL,
				APIKey:    cfg.APIKey,
				APIKeyEnv: cfg.APIKeyEnv,
				Timeout:   timeout,
			}, httpClient)
			if err != nil {
				return nil, err
			}
			return openaiTransport{client: c}, nil
		case config.AgentTypeGenAI:
			c, err := geminiapi.NewClient(ctx, geminiapi.Config{
				Model:     cfg.Model,
				BaseURL:   cfg.BaseURL,
				APIKey:    cfg.APIKey,
				APIKeyEnv: cfg.APIKeyEnv,
				Timeout:   timeout,
			}, httpClient)
			if err != nil {
				return nil, err
			}
			return geminiTransport{client: c}, nil
		default:
			if _, ok := execTypes[cfg.Type]; ok {
				return NewExecTransport(cfg)
			}
			return nil, fmt.Errorf("agent %q: unknown agent type %q", name, cfg.Type)
		}
	}
}

type openaiTransport struct {
	client *openaiapi.Client
}

func (t openaiTransport) Complete(ctx context.Context, req Request) (Reply, error) {
	resp, err := t.client.Complete(ctx, openaiapi.CompletionRequest{
		Instructions:    req.Instructions,
		Input:           req.Input,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: resp.OutputText, LogID: resp.ID, Model: resp.Model}, nil
}

type geminiTransport struct {
	client *geminiapi.Client
}

func (t geminiTransport) Complete(ctx context.Context, req Request) (Reply, error) {
	resp, err := t.client.Complete(ctx, geminiapi.CompletionRequest{
		Instructions:    req.Instructions,
		Input:           req.Input,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: resp.OutputText, LogID: resp.ID, Model: resp.Model}, nil
}
