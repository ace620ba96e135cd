package openaiapi

import "time"

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultTimeout   = 120 * time.Second
)

// Config is OpenAI API client configuration.
type Config struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// CompletionRequest is a single Responses API request. Nil sampling fields
// are left to the provider default.
type CompletionRequest struct {
	Instructions    string
	Input           string
	Temperature     *float64
	MaxOutputTokens *int
}

// CompletionResponse carries the output text and the provider identifiers
// used for log correlation.
type CompletionResponse struct {
	ID         string
	Model      string
	OutputText string
}
