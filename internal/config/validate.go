package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ValidateSettings validates raw config settings against the JSON schema.
func ValidateSettings(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	for _, name := range sortedKeys(c.Agents) {
		if err := c.Agents[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("agents.%s: %w", name, err))
		}
	}
	if _, _, err := c.ResolveRoles(""); err != nil {
		errs = append(errs, err)
	}
	if c.Execution.MaxConcurrency < 0 {
		errs = append(errs, errors.New("execution.max_concurrency must be >= 0"))
	}
	if c.Execution.CallTimeoutSeconds < 0 {
		errs = append(errs, errors.New("execution.call_timeout_seconds must be >= 0"))
	}
	if c.Retention.KeepLast < 0 || c.Retention.KeepDays < 0 {
		errs = append(errs, errors.New("retention values must be >= 0"))
	}
	switch c.Source.Driver {
	case "", SourceSQLite:
	case SourceYAML:
		if strings.TrimSpace(c.Source.Path) == "" {
			errs = append(errs, errors.New("source.path is required for the yaml driver"))
		}
	case SourcePostgres:
		if strings.TrimSpace(c.Source.DSN) == "" {
			errs = append(errs, errors.New("source.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.driver %q is not supported", c.Source.Driver))
	}
	return errors.Join(errs...)
}

func (a AgentConfig) validate() error {
	switch a.Type {
	case AgentTypeOpenAI, AgentTypeGenAI:
		if strings.TrimSpace(a.Model) == "" {
			return fmt.Errorf("model is required for %s agents", a.Type)
		}
	case AgentTypeExec:
		if len(a.Cmd) == 0 {
			return errors.New("cmd is required for exec agents")
		}
	case AgentTypeCodex, AgentTypeClaude, AgentTypeGemini, AgentTypeOpenCode:
	default:
		return fmt.Errorf("unsupported agent type %q", a.Type)
	}
	if a.Temperature != nil && (*a.Temperature < 0 || *a.Temperature > 2) {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", *a.Temperature)
	}
	if a.MaxTokens != nil && (*a.MaxTokens <= 0 || *a.MaxTokens > math.MaxInt32) {
		return fmt.Errorf("max_tokens must be in [1, %d]", math.MaxInt32)
	}
	return nil
}
