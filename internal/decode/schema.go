package decode

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema describing an expected agent response.
type Schema struct {
	name   string
	raw    string
	schema *gojsonschema.Schema
}

// NewSchema compiles a JSON schema document.
func NewSchema(name, document string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, raw: document, schema: compiled}, nil
}

// MustSchema is like NewSchema but panics on an invalid document. It is meant
// for package-level schema constants.
func MustSchema(name, document string) *Schema {
	s, err := NewSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name used in diagnostics.
func (s *Schema) Name() string {
	return s.name
}

// String returns the raw schema document, suitable for prompts.
func (s *Schema) String() string {
	return s.raw
}

// Validate checks a parsed value against the schema and reports every
// violation in a stable order.
func (s *Schema) Validate(value any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("validate %s: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)
	return fmt.Errorf("%s schema validation failed: %s", s.name, strings.Join(errs, "; "))
}
