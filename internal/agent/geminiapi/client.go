// Package geminiapi is a thin client over the Gemini generateContent API.
package geminiapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"
)

// ErrEmptyOutput is returned when a response carries no text parts.
var ErrEmptyOutput = errors.New("gemini response did not contain output text")

// Client issues single-shot completions.
type Client struct {
	cfg    Config
	client *genai.Client
}

// NewClient constructs a Gemini API client.
func NewClient(ctx context.Context, cfg Config, httpClient *http.Client) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		envKey := strings.TrimSpace(cfg.APIKeyEnv)
		if envKey == "" {
			envKey = defaultAPIKeyEnv
		}
		apiKey = strings.TrimSpace(os.Getenv(envKey))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required (set api_key or api_key_env)")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Timeout: &timeout,
		},
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		cfg:    Config{Model: model, BaseURL: cfg.BaseURL, Timeout: timeout},
		client: client,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete executes a single generateContent request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	gc := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxOutputTokens != nil {
		gc.MaxOutputTokens = clampInt32(*req.MaxOutputTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.Input), gc)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("gemini generateContent: %w", err)
	}

	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return CompletionResponse{}, ErrEmptyOutput
	}

	model := resp.ModelVersion
	if model == "" {
		model = c.cfg.Model
	}
	return CompletionResponse{ID: resp.ResponseID, Model: model, OutputText: output}, nil
}

func clampInt32(n int) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < 0:
		return 0
	}
	return int32(n)
}
