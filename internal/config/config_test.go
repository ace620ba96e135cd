package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoles_UsesSelectedProfile(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{
			"big":   {Type: AgentTypeOpenAI, Model: "gpt-5"},
			"small": {Type: AgentTypeGenAI, Model: "gemini-2.5-flash"},
		},
		Profiles: map[string]ProfileConfig{
			"default": {Roles: RoleRefs{Planner: "big", Updater: "big", Creator: "big"}},
			"cheap":   {Roles: RoleRefs{Planner: "big", Updater: "small", Creator: "small"}},
		},
	}

	profile, refs, err := cfg.ResolveRoles("cheap")
	require.NoError(t, err)
	assert.Equal(t, "cheap", profile)
	assert.Equal(t, RoleRefs{Planner: "big", Updater: "small", Creator: "small"}, refs)

	profile, refs, err = cfg.ResolveRoles("")
	require.NoError(t, err)
	assert.Equal(t, "default", profile)
	assert.Equal(t, "big", refs.Updater)
}

func TestResolveRoles_FallsBackToRoleNamedAgents(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{
			RolePlanner: {Type: AgentTypeCodex},
			RoleUpdater: {Type: AgentTypeCodex},
			RoleCreator: {Type: AgentTypeCodex},
		},
	}

	profile, refs, err := cfg.ResolveRoles("")
	require.NoError(t, err)
	assert.Equal(t, "default", profile)
	assert.Equal(t, RoleRefs{Planner: RolePlanner, Updater: RoleUpdater, Creator: RoleCreator}, refs)
}

func TestResolveRoles_Errors(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Agents: map[string]AgentConfig{"a": {Type: AgentTypeClaude}},
		Profiles: map[string]ProfileConfig{
			"default": {Roles: RoleRefs{Planner: "a", Updater: "a", Creator: "missing"}},
		},
	}

	_, _, err := cfg.ResolveRoles("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent "missing"`)

	_, _, err = cfg.ResolveRoles("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile "nope" not found`)
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	temp := 3.5
	cfg := Default()
	cfg.Agents["planner"] = AgentConfig{Type: AgentTypeOpenAI}
	cfg.Agents["updater"] = AgentConfig{Type: AgentTypeExec}
	cfg.Agents["creator"] = AgentConfig{Type: AgentTypeGenAI, Model: "m", Temperature: &temp}
	cfg.Source = SourceConfig{Driver: SourcePostgres}
	tokens := math.MaxInt32 + 1
	cfg.Agents["wide"] = AgentConfig{Type: AgentTypeOpenAI, Model: "m", MaxTokens: &tokens}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"agents.planner: model is required",
		"agents.updater: cmd is required",
		"agents.creator: temperature 3.50 out of range",
		"source.dsn is required",
		"agents.wide: max_tokens must be in [1, 2147483647]",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      map[string]any
		wantErr string
	}{
		{
			name: "valid",
			in: map[string]any{
				"agents": map[string]any{
					"planner": map[string]any{"type": "openai", "model": "gpt-5", "temperature": 0.2},
				},
				"execution": map[string]any{"max_concurrency": 4},
				"source":    map[string]any{"driver": "yaml", "path": "backlog.yaml"},
			},
		},
		{
			name:    "missing agents",
			in:      map[string]any{"profile": "default"},
			wantErr: "agents is required",
		},
		{
			name: "unknown agent type",
			in: map[string]any{
				"agents": map[string]any{"x": map[string]any{"type": "llama"}},
			},
			wantErr: "agents.x.type",
		},
		{
			name: "unknown source driver",
			in: map[string]any{
				"agents": map[string]any{"x": map[string]any{"type": "codex"}},
				"source": map[string]any{"driver": "mysql"},
			},
			wantErr: "source.driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateSettings(tt.in)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()

	assert.Zero(t, ExecutionConfig{}.CallTimeout())
	assert.Equal(t, "30s", ExecutionConfig{CallTimeoutSeconds: 30}.CallTimeout().String())
}
