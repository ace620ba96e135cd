package openaiapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `{
	"id": "resp_123",
	"model": "gpt-5-2025-08-07",
	"error": {"code": "", "message": ""},
	"output": [
		{
			"type": "message",
			"role": "assistant",
			"content": [
				{"type": "output_text", "text": "{\"summary\":\"ok\"}", "annotations": []}
			]
		}
	]
}`

func newTestServer(t *testing.T, body string, got *map[string]any, auth *string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if got != nil {
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				t.Errorf("read request body: %v", err)
			}
			if err := json.Unmarshal(raw, got); err != nil {
				t.Errorf("unmarshal request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientComplete_SendsSamplingParameters(t *testing.T) {
	const envKey = "REFINER_OPENAI_TEST_KEY"
	t.Setenv(envKey, "test-api-key")

	var body map[string]any
	var auth string
	srv := newTestServer(t, okResponse, &body, &auth)

	client, err := NewClient(Config{Model: "gpt-5", BaseURL: srv.URL, APIKeyEnv: envKey}, srv.Client())
	require.NoError(t, err)

	temp := 0.2
	maxTokens := 2048
	out, err := client.Complete(context.Background(), CompletionRequest{
		Instructions:    "Output only JSON.",
		Input:           `{"project":"demo"}`,
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	})
	require.NoError(t, err)

	assert.Equal(t, CompletionResponse{ID: "resp_123", Model: "gpt-5-2025-08-07", OutputText: `{"summary":"ok"}`}, out)
	assert.Equal(t, "Bearer test-api-key", auth)
	assert.Equal(t, "gpt-5", body["model"])
	assert.Equal(t, "Output only JSON.", body["instructions"])
	assert.Equal(t, `{"project":"demo"}`, body["input"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	assert.InDelta(t, 2048, body["max_output_tokens"], 1e-9)
}

func TestClientComplete_OmitsUnsetSamplingParameters(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := newTestServer(t, okResponse, &body, nil)

	client, err := NewClient(Config{Model: "gpt-5", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Input: "{}"})
	require.NoError(t, err)

	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "max_output_tokens")
	assert.NotContains(t, body, "instructions")
}

func TestNewClient_ReturnsErrorWhenAPIKeyMissing(t *testing.T) {
	t.Setenv("REFINER_OPENAI_MISSING_KEY", "")

	_, err := NewClient(Config{Model: "gpt-5", BaseURL: "http://127.0.0.1", APIKeyEnv: "REFINER_OPENAI_MISSING_KEY"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestNewClient_ReturnsErrorWhenModelMissing(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{APIKey: "k"}, nil)
	require.Error(t, err)
}

func TestClientComplete_ReturnsErrorWhenOutputTextMissing(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, `{"id": "resp_1", "error": {"code": "", "message": ""}, "output": []}`, nil, nil)
	client, err := NewClient(Config{Model: "gpt-5", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Input: "{}"})
	require.ErrorIs(t, err, ErrEmptyOutput)
}

func TestClientComplete_ReturnsProviderError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, `{"id": "resp_9", "error": {"code": "server_error", "message": "overloaded"}, "output": []}`, nil, nil)
	client, err := NewClient(Config{Model: "gpt-5", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Input: "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resp_9")
	assert.Contains(t, err.Error(), "overloaded")
}
