// Package decode turns free-form agent text into schema-validated values.
//
// Decoding runs in three stages. Candidate objects are extracted from the
// text, every sanitization pass is applied to each candidate independently,
// and the first attempt that parses as a JSON object is validated against the
// caller's schema and mapped into the target type. Nothing is coerced: a parse
// that does not match the schema is reported as a schema failure.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var (
	// ErrDecode matches failures where no attempt produced well-formed data.
	ErrDecode = errors.New("decode failure")
	// ErrSchema matches failures where data parsed but did not fit the schema.
	ErrSchema = errors.New("schema failure")
)

// Stage names the decoding stage that could not recover.
type Stage string

const (
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageSchema  Stage = "schema"
	StageMap     Stage = "map"
)

// Attempt records one sanitization pass and its parser outcome.
type Attempt struct {
	Pass string
	Text string
	Err  error
}

// Failure is the typed decode failure. It carries every attempt that was
// tried and the error of the stage that gave up.
type Failure struct {
	Stage    Stage
	Schema   string
	Attempts []Attempt
	Err      error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "decode %s: %s stage failed", f.schemaName(), f.Stage)
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	if len(f.Attempts) > 0 {
		passes := make([]string, 0, len(f.Attempts))
		for _, a := range f.Attempts {
			passes = append(passes, a.Pass)
		}
		fmt.Fprintf(&b, " (attempts: %s)", strings.Join(passes, ", "))
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is reports ErrDecode for extract/parse failures and ErrSchema for schema/map failures.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrDecode:
		return f.Stage == StageExtract || f.Stage == StageParse
	case ErrSchema:
		return f.Stage == StageSchema || f.Stage == StageMap
	}
	return false
}

func (f *Failure) schemaName() string {
	if f.Schema == "" {
		return "output"
	}
	return f.Schema
}

// Parsed is a successfully parsed JSON object and the pass that produced it.
type Parsed struct {
	Value    map[string]any
	Pass     string
	Attempts []Attempt
}

// Decoder holds the ordered sanitization passes.
type Decoder struct {
	passes []Pass
}

// New returns a decoder using the given passes, or DefaultPasses when none are given.
func New(passes ...Pass) *Decoder {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Decoder{passes: passes}
}

var defaultDecoder = New()

// Parse extracts candidates and returns the first attempt that parses as a
// JSON object. Every pass is applied to a candidate before the next candidate
// is tried. Byte-identical attempts are tried once.
func (d *Decoder) Parse(text string) (Parsed, error) {
	candidates := ExtractCandidates(text)
	if len(candidates) == 0 {
		return Parsed{}, &Failure{Stage: StageExtract, Err: errors.New("no object boundary found in output")}
	}

	seen := make(map[string]bool, len(d.passes)*len(candidates))
	attempts := make([]Attempt, 0, len(d.passes)*len(candidates))
	for _, candidate := range candidates {
		for _, pass := range d.passes {
			out, err := pass.Transform(candidate)
			if err != nil {
				attempts = append(attempts, Attempt{Pass: pass.Name, Err: fmt.Errorf("transform: %w", err)})
				continue
			}
			if seen[out] {
				continue
			}
			seen[out] = true

			value, err := parseObject(out)
			attempts = append(attempts, Attempt{Pass: pass.Name, Text: out, Err: err})
			if err == nil {
				return Parsed{Value: value, Pass: pass.Name, Attempts: attempts}, nil
			}
		}
	}

	var last error
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Err != nil {
			last = attempts[i].Err
			break
		}
	}
	return Parsed{}, &Failure{Stage: StageParse, Attempts: attempts, Err: last}
}

func parseObject(text string) (map[string]any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value is %T, want object", value)
	}
	return obj, nil
}

// Decode parses text with the default decoder, validates it against schema
// and maps it into T.
func Decode[T any](text string, schema *Schema) (T, error) {
	return DecodeWith[T](defaultDecoder, text, schema)
}

// DecodeWith is Decode with an explicit decoder.
func DecodeWith[T any](d *Decoder, text string, schema *Schema) (T, error) {
	var zero T
	parsed, err := d.Parse(text)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) && schema != nil {
			f.Schema = schema.Name()
		}
		return zero, err
	}
	if schema != nil {
		if err := schema.Validate(parsed.Value); err != nil {
			return zero, &Failure{Stage: StageSchema, Schema: schema.Name(), Attempts: parsed.Attempts, Err: err}
		}
	}
	out, err := Into[T](parsed.Value)
	if err != nil {
		f := &Failure{Stage: StageMap, Attempts: parsed.Attempts, Err: err}
		if schema != nil {
			f.Schema = schema.Name()
		}
		return zero, f
	}
	return out, nil
}

// Into maps a parsed object onto T using its json field tags.
func Into[T any](value map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return out, fmt.Errorf("create mapper: %w", err)
	}
	if err := dec.Decode(value); err != nil {
		return out, fmt.Errorf("map into %T: %w", out, err)
	}
	return out, nil
}
