package decode

import (
	"encoding/json"
	"regexp"
	"strings"
)

var greedyObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractCandidate returns the first candidate of ExtractCandidates.
func ExtractCandidate(text string) (string, bool) {
	candidates := ExtractCandidates(text)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}

// ExtractCandidates isolates JSON-like objects inside free-form model text,
// most specific first:
//
//   - the whole text, when it already is a well-formed JSON object;
//   - the object inside each fenced block, cut from the first line that
//     starts an object to the last line that ends one within the fence;
//   - the first '{' matched by counting braces outside double-quoted strings;
//   - a greedy first-'{'-to-last-'}' match.
//
// Identical candidates are returned once.
func ExtractCandidates(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	if whole := strings.TrimSpace(text); strings.HasPrefix(whole, "{") && json.Valid([]byte(whole)) {
		add(whole)
	}
	if strings.Contains(text, "```") {
		for _, c := range fencedCandidates(text) {
			add(c)
		}
	}
	if c, ok := balancedCandidate(text); ok {
		add(c)
	}
	add(greedyObject.FindString(text))
	return out
}

func fencedCandidates(text string) []string {
	lines := strings.Split(text, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), "```") {
				end = j
				break
			}
		}
		if c, ok := objectLines(lines[i+1 : end]); ok {
			out = append(out, c)
		}
		i = end
	}
	return out
}

func objectLines(lines []string) (string, bool) {
	first, last := -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if first == -1 && strings.HasPrefix(trimmed, "{") {
			first = i
		}
		if strings.HasSuffix(trimmed, "}") {
			last = i
		}
	}
	if first == -1 || last < first {
		return "", false
	}
	return strings.TrimSpace(strings.Join(lines[first:last+1], "\n")), true
}

// balancedCandidate skips braces inside double-quoted strings. Single-quoted
// strings are not tracked.
func balancedCandidate(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
