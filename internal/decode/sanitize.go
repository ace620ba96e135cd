package decode

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kaptinlin/jsonrepair"
)

// Pass is a pure text transform applied to an extracted candidate.
type Pass struct {
	Name      string
	Transform func(string) (string, error)
}

// DefaultPasses are the sanitization passes in the order they are tried.
// Each pass receives the raw candidate, not the output of the previous pass.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "raw", Transform: func(s string) (string, error) { return s, nil }},
		{Name: "strip_control", Transform: wrap(StripControl)},
		{Name: "collapse_whitespace", Transform: wrap(CollapseWhitespace)},
		{Name: "rule_cleanup", Transform: wrap(Cleanup)},
		{Name: "repair", Transform: Repair},
		{Name: "cleanup_then_repair", Transform: func(s string) (string, error) { return Repair(Cleanup(s)) }},
	}
}

func wrap(fn func(string) string) func(string) (string, error) {
	return func(s string) (string, error) { return fn(s), nil }
}

// StripControl removes control characters other than tab, newline and carriage return.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CollapseWhitespace folds every whitespace run, newlines included, into one space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// Repair runs the generic structural JSON repair utility.
func Repair(s string) (string, error) {
	return jsonrepair.JSONRepair(s)
}

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'",
)

// Cleanup applies rule-based fixes outside string literals: quote
// normalization, single-quoted strings, unquoted keys and bare-word values,
// trailing commas, and missing commas between adjacent objects or arrays.
func Cleanup(s string) string {
	s = smartQuotes.Replace(StripControl(s))

	var out strings.Builder
	out.Grow(len(s) + 16)
	rs := []rune(s)

	// last significant rune written outside a string literal
	var prev rune
	emit := func(r rune) {
		out.WriteRune(r)
		if !unicode.IsSpace(r) {
			prev = r
		}
	}
	needsComma := func(next rune) bool {
		return (prev == '}' || prev == ']') && (next == '{' || next == '[' || next == '"')
	}

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '"' || r == '\'':
			if needsComma('"') {
				emit(',')
			}
			end := writeString(&out, rs, i, r)
			prev = '"'
			i = end
		case r == ',':
			j := skipSpace(rs, i+1)
			if j < len(rs) && (rs[j] == '}' || rs[j] == ']') {
				continue
			}
			if j < len(rs) && rs[j] == ',' {
				continue
			}
			emit(r)
		case r == '{' || r == '[':
			if needsComma(r) {
				emit(',')
			}
			emit(r)
		case isWordStart(r) && !(i > 0 && isNumberPart(rs[i-1])):
			j := i
			for j < len(rs) && isWordPart(rs[j]) {
				j++
			}
			word := string(rs[i:j])
			k := skipSpace(rs, j)
			isKey := k < len(rs) && rs[k] == ':'
			if needsComma('"') {
				emit(',')
			}
			switch {
			case isKey:
				out.WriteString(quote(word))
				prev = '"'
			case literal(word) != "":
				out.WriteString(literal(word))
				prev = 'l'
			default:
				out.WriteString(quote(word))
				prev = '"'
			}
			i = j - 1
		default:
			emit(r)
		}
	}
	return out.String()
}

// writeString copies the string literal starting at rs[start] as a
// double-quoted JSON string and returns the index of its closing quote.
func writeString(out *strings.Builder, rs []rune, start int, q rune) int {
	out.WriteByte('"')
	for i := start + 1; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\\' && i+1 < len(rs):
			next := rs[i+1]
			if q == '\'' && next == '\'' {
				out.WriteRune('\'')
			} else {
				out.WriteRune('\\')
				out.WriteRune(next)
			}
			i++
		case r == q:
			out.WriteByte('"')
			return i
		case r == '"':
			out.WriteString(`\"`)
		case r == '\n':
			out.WriteString(`\n`)
		case r == '\r':
			out.WriteString(`\r`)
		case r == '\t':
			out.WriteString(`\t`)
		default:
			out.WriteRune(r)
		}
	}
	out.WriteByte('"')
	return len(rs)
}

func skipSpace(rs []rune, i int) int {
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	return i
}

func isWordStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isNumberPart(r rune) bool {
	return unicode.IsDigit(r) || r == '.'
}

func isWordPart(r rune) bool {
	return r == '_' || r == '$' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func literal(word string) string {
	switch word {
	case "true", "True", "TRUE":
		return "true"
	case "false", "False", "FALSE":
		return "false"
	case "null", "None", "nil", "NULL", "undefined":
		return "null"
	}
	return ""
}

func quote(word string) string {
	return `"` + strings.ReplaceAll(word, `"`, `\"`) + `"`
}
