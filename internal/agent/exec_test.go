package agent

import (
	"context"
	"testing"

	"github.com/metalagman/refiner/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   string
		model string
		want  []string
	}{
		{name: "codex", typ: config.AgentTypeCodex, model: "gpt-5", want: []string{"codex", "exec", "--model", "gpt-5", "--skip-git-repo-check", "--sandbox", "read-only"}},
		{name: "opencode without model", typ: config.AgentTypeOpenCode, want: []string{"opencode", "run"}},
		{name: "gemini", typ: config.AgentTypeGemini, model: "gemini-2.5-pro", want: []string{"gemini", "--model", "gemini-2.5-pro", "--output-format", "text"}},
		{name: "claude", typ: config.AgentTypeClaude, want: []string{"claude", "--output-format", "text", "--print"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			spec := execTypes[tt.typ]
			require.NotNil(t, spec)
			assert.Equal(t, tt.want, prepareCmd(tt.typ, *spec, tt.model))
		})
	}
}

func TestNewExecTransport_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewExecTransport(config.AgentConfig{Type: config.AgentTypeExec})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires cmd")

	_, err = NewExecTransport(config.AgentConfig{Type: config.AgentTypeOpenAI})
	require.Error(t, err)
}

func TestNewTransport_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(nil)(context.Background(), "x", config.AgentConfig{Type: "llama"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent type "llama"`)
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", tail("  abc \n", 10))
	assert.Equal(t, "...def", tail("abcdef", 3))
}
