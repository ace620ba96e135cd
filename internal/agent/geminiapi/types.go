package geminiapi

import "time"

const (
	defaultAPIKeyEnv = "GEMINI_API_KEY"
	defaultTimeout   = 120 * time.Second
)

// Config is Gemini API client configuration.
type Config struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// CompletionRequest is a single generateContent request.
type CompletionRequest struct {
	Instructions    string
	Input           string
	Temperature     *float64
	MaxOutputTokens *int
}

// CompletionResponse carries the output text and provider identifiers.
type CompletionResponse struct {
	ID         string
	Model      string
	OutputText string
}
