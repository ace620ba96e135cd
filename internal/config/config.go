// Package config provides configuration loading and management for refiner.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	AgentTypeOpenAI   = "openai"
	AgentTypeGenAI    = "genai"
	AgentTypeExec     = "exec"
	AgentTypeCodex    = "codex"
	AgentTypeClaude   = "claude"
	AgentTypeGemini   = "gemini"
	AgentTypeOpenCode = "opencode"
)

const (
	RolePlanner = "planner"
	RoleUpdater = "updater"
	RoleCreator = "creator"
)

const (
	SourceSQLite   = "sqlite"
	SourceYAML     = "yaml"
	SourcePostgres = "postgres"
)

const defaultProfile = "default"

// Config is the root configuration.
type Config struct {
	Profile   string                   `json:"profile,omitempty"   mapstructure:"profile"`
	Agents    map[string]AgentConfig   `json:"agents"              mapstructure:"agents"`
	Profiles  map[string]ProfileConfig `json:"profiles,omitempty"  mapstructure:"profiles"`
	Execution ExecutionConfig          `json:"execution"           mapstructure:"execution"`
	Source    SourceConfig             `json:"source"              mapstructure:"source"`
	Server    ServerConfig             `json:"server"              mapstructure:"server"`
	Retention RetentionConfig          `json:"retention"           mapstructure:"retention"`
	DBPath    string                   `json:"db_path,omitempty"   mapstructure:"db_path"`
}

// AgentConfig describes how to reach one named agent.
type AgentConfig struct {
	Type         string   `json:"type"                    mapstructure:"type"`
	Cmd          []string `json:"cmd,omitempty"           mapstructure:"cmd"`
	Model        string   `json:"model,omitempty"         mapstructure:"model"`
	BaseURL      string   `json:"base_url,omitempty"      mapstructure:"base_url"`
	APIKey       string   `json:"api_key,omitempty"       mapstructure:"api_key"`
	APIKeyEnv    string   `json:"api_key_env,omitempty"   mapstructure:"api_key_env"`
	UseTTY       *bool    `json:"use_tty,omitempty"       mapstructure:"use_tty"`
	Timeout      int      `json:"timeout,omitempty"       mapstructure:"timeout"`
	Temperature  *float64 `json:"temperature,omitempty"   mapstructure:"temperature"`
	MaxTokens    *int     `json:"max_tokens,omitempty"    mapstructure:"max_tokens"`
	SystemPrompt string   `json:"system_prompt,omitempty" mapstructure:"system_prompt"`
	Template     string   `json:"template,omitempty"      mapstructure:"template"`
	WorkDir      string   `json:"work_dir,omitempty"      mapstructure:"work_dir"`
}

// ProfileConfig maps pipeline roles onto named agents.
type ProfileConfig struct {
	Roles RoleRefs `json:"roles" mapstructure:"roles"`
}

// RoleRefs names the agent used for each pipeline role.
type RoleRefs struct {
	Planner string `json:"planner,omitempty" mapstructure:"planner"`
	Updater string `json:"updater,omitempty" mapstructure:"updater"`
	Creator string `json:"creator,omitempty" mapstructure:"creator"`
}

// ExecutionConfig bounds the execution fan-out.
type ExecutionConfig struct {
	MaxConcurrency     int `json:"max_concurrency,omitempty"      mapstructure:"max_concurrency"`
	CallTimeoutSeconds int `json:"call_timeout_seconds,omitempty" mapstructure:"call_timeout_seconds"`
}

// CallTimeout returns the per-invocation timeout, or zero when unbounded.
func (e ExecutionConfig) CallTimeout() time.Duration {
	if e.CallTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(e.CallTimeoutSeconds) * time.Second
}

// SourceConfig selects where challenges and insights are read from.
type SourceConfig struct {
	Driver string `json:"driver"         mapstructure:"driver"`
	Path   string `json:"path,omitempty" mapstructure:"path"`
	DSN    string `json:"dsn,omitempty"  mapstructure:"dsn"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// RetentionConfig bounds the stored run history. Zero values disable the rule.
type RetentionConfig struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Default returns a configuration with every role pointing at an agent of
// the same name, backed by the OpenAI transport.
func Default() Config {
	return Config{
		Profile: defaultProfile,
		Agents: map[string]AgentConfig{
			RolePlanner: {Type: AgentTypeOpenAI, Model: "gpt-5"},
			RoleUpdater: {Type: AgentTypeOpenAI, Model: "gpt-5-mini"},
			RoleCreator: {Type: AgentTypeOpenAI, Model: "gpt-5-mini"},
		},
		Profiles: map[string]ProfileConfig{
			defaultProfile: {Roles: RoleRefs{Planner: RolePlanner, Updater: RoleUpdater, Creator: RoleCreator}},
		},
		Execution: ExecutionConfig{MaxConcurrency: 8, CallTimeoutSeconds: 180},
		Source:    SourceConfig{Driver: SourceSQLite},
		Server:    ServerConfig{Addr: ":8080"},
		Retention: RetentionConfig{KeepLast: 200},
		DBPath:    ".refiner/refiner.db",
	}
}

// ResolveRoles returns the selected profile name and the agent name bound
// to each role. Roles missing from the profile fall back to an agent named
// after the role.
func (c Config) ResolveRoles(profile string) (string, RoleRefs, error) {
	selected := strings.TrimSpace(profile)
	if selected == "" {
		selected = strings.TrimSpace(c.Profile)
	}
	if selected == "" {
		selected = defaultProfile
	}

	refs := RoleRefs{}
	if p, ok := c.Profiles[selected]; ok {
		refs = p.Roles
	} else if len(c.Profiles) > 0 {
		return "", RoleRefs{}, fmt.Errorf("profile %q not found (available: %s)", selected, strings.Join(sortedKeys(c.Profiles), ", "))
	}
	if refs.Planner == "" {
		refs.Planner = RolePlanner
	}
	if refs.Updater == "" {
		refs.Updater = RoleUpdater
	}
	if refs.Creator == "" {
		refs.Creator = RoleCreator
	}

	for role, name := range map[string]string{RolePlanner: refs.Planner, RoleUpdater: refs.Updater, RoleCreator: refs.Creator} {
		if _, ok := c.Agents[name]; !ok {
			return "", RoleRefs{}, fmt.Errorf("profile %q role %s references unknown agent %q", selected, role, name)
		}
	}
	return selected, refs, nil
}

// Agent returns the named agent definition.
func (c Config) Agent(name string) (AgentConfig, error) {
	a, ok := c.Agents[name]
	if !ok {
		return AgentConfig{}, fmt.Errorf("agent %q is not configured", name)
	}
	return a, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
