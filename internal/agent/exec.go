package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/ainvoke"
	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/logging"
)

type agentSpec struct {
	defaultSubcommand string
	extraFlags        []string
}

// execTypes lists the local CLI agents. A nil spec means the command comes
// from the agent's cmd setting.
var execTypes = map[string]*agentSpec{
	config.AgentTypeExec: nil,
	config.AgentTypeCodex: {
		defaultSubcommand: "exec",
		extraFlags:        []string{"--skip-git-repo-check", "--sandbox", "read-only"},
	},
	config.AgentTypeOpenCode: {
		defaultSubcommand: "run",
	},
	config.AgentTypeGemini: {
		extraFlags: []string{"--output-format", "text"},
	},
	config.AgentTypeClaude: {
		extraFlags: []string{"--output-format", "text", "--print"},
	},
}

const execInputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "interaction": {"type": "string"},
    "prompt": {"type": "string"},
    "variables": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "required": ["prompt", "variables"]
}`

const anyObjectSchema = `{"type": "object"}`

type execInput struct {
	Interaction string            `json:"interaction,omitempty"`
	Prompt      string            `json:"prompt"`
	Variables   map[string]string `json:"variables"`
}

// ExecTransport runs a local agent CLI through ainvoke. Each call gets its
// own run directory holding input.json and the agent's output.
type ExecTransport struct {
	cmd     []string
	model   string
	workDir string
	runner  ainvoke.Runner
}

// NewExecTransport builds the command line for an exec or CLI preset agent.
func NewExecTransport(cfg config.AgentConfig) (*ExecTransport, error) {
	spec, ok := execTypes[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("agent type %q is not a local CLI agent", cfg.Type)
	}

	var cmd []string
	if spec == nil {
		if len(cfg.Cmd) == 0 {
			return nil, fmt.Errorf("exec agent requires cmd")
		}
		cmd = cfg.Cmd
	} else {
		cmd = prepareCmd(cfg.Type, *spec, cfg.Model)
	}

	useTTY := cfg.UseTTY != nil && *cfg.UseTTY
	runner, err := ainvoke.NewRunner(ainvoke.AgentConfig{Cmd: cmd, UseTTY: useTTY})
	if err != nil {
		return nil, fmt.Errorf("create %s runner: %w", cfg.Type, err)
	}
	return &ExecTransport{cmd: cmd, model: cfg.Model, workDir: cfg.WorkDir, runner: runner}, nil
}

func prepareCmd(base string, spec agentSpec, model string) []string {
	out := []string{base}
	if spec.defaultSubcommand != "" {
		out = append(out, spec.defaultSubcommand)
	}
	if model != "" {
		out = append(out, "--model", model)
	}
	return append(out, spec.extraFlags...)
}

// Command returns the resolved command line.
func (t *ExecTransport) Command() []string {
	return append([]string(nil), t.cmd...)
}

func (t *ExecTransport) Complete(ctx context.Context, req Request) (Reply, error) {
	runDir, err := os.MkdirTemp(t.workDir, "refiner-agent-")
	if err != nil {
		return Reply{}, fmt.Errorf("create run dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(runDir) }()

	outputSchema := req.OutputSchema
	if strings.TrimSpace(outputSchema) == "" {
		outputSchema = anyObjectSchema
	}

	var tee io.Writer = io.Discard
	if logging.DebugEnabled() {
		tee = os.Stderr
	}

	inv := ainvoke.Invocation{
		RunDir:       runDir,
		SystemPrompt: req.Instructions,
		Input:        execInput{Interaction: req.Interaction, Prompt: req.Input, Variables: req.Variables},
		InputSchema:  execInputSchema,
		OutputSchema: outputSchema,
	}
	out, errOut, exitCode, err := t.runner.Run(ctx, inv, ainvoke.WithStdout(tee), ainvoke.WithStderr(tee))
	if err != nil {
		return Reply{}, fmt.Errorf("run %s: %w", t.cmd[0], err)
	}
	if exitCode != 0 {
		return Reply{}, fmt.Errorf("%s exited with code %d: %s", t.cmd[0], exitCode, tail(string(errOut), 512))
	}
	return Reply{Text: string(out), LogID: filepath.Base(runDir), Model: t.model}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
