package backlog

import (
	"strings"
)

var statusSynonyms = map[string]Status{
	"new":         StatusIdentified,
	"open":        StatusIdentified,
	"todo":        StatusIdentified,
	"active":      StatusInProgress,
	"in_work":     StatusInProgress,
	"started":     StatusInProgress,
	"ongoing":     StatusInProgress,
	"on_hold":     StatusBlocked,
	"stuck":       StatusBlocked,
	"done":        StatusResolved,
	"closed":      StatusResolved,
	"solved":      StatusResolved,
	"complete":    StatusResolved,
	"completed":   StatusResolved,
	"obsolete":    StatusArchived,
	"deprecated":  StatusArchived,
	"won't_fix":   StatusArchived,
	"wont_fix":    StatusArchived,
	"not_planned": StatusArchived,
}

var impactSynonyms = map[string]Impact{
	"minor":    ImpactLow,
	"small":    ImpactLow,
	"moderate": ImpactMedium,
	"med":      ImpactMedium,
	"normal":   ImpactMedium,
	"major":    ImpactHigh,
	"large":    ImpactHigh,
	"severe":   ImpactCritical,
	"blocker":  ImpactCritical,
	"highest":  ImpactCritical,
}

var prioritySynonyms = map[string]Priority{
	"med":       PriorityMedium,
	"normal":    PriorityMedium,
	"critical":  PriorityUrgent,
	"immediate": PriorityUrgent,
	"asap":      PriorityUrgent,
}

var scopeSynonyms = map[string]ChangeScope{
	"small":  ScopeMinor,
	"medium": ScopeModerate,
	"large":  ScopeMajor,
	"full":   ScopeMajor,
}

// canonical lowercases, trims and folds spaces/dashes into underscores.
func canonical(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `"'.`)
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	return s
}

// NormalizeStatus maps free text onto a known status. The second result is
// false when the value is unknown and should be treated as unspecified.
func NormalizeStatus(raw string) (Status, bool) {
	key := canonical(raw)
	for _, s := range Statuses {
		if string(s) == key {
			return s, true
		}
	}
	s, ok := statusSynonyms[key]
	return s, ok
}

// NormalizeImpact maps free text onto a known impact.
func NormalizeImpact(raw string) (Impact, bool) {
	key := canonical(raw)
	for _, i := range Impacts {
		if string(i) == key {
			return i, true
		}
	}
	i, ok := impactSynonyms[key]
	return i, ok
}

// NormalizePriority maps free text onto a known priority.
func NormalizePriority(raw string) (Priority, bool) {
	key := canonical(raw)
	for _, p := range Priorities {
		if string(p) == key {
			return p, true
		}
	}
	p, ok := prioritySynonyms[key]
	return p, ok
}

// NormalizeChangeScope maps free text onto a known change scope.
func NormalizeChangeScope(raw string) (ChangeScope, bool) {
	key := canonical(raw)
	for _, s := range ChangeScopes {
		if string(s) == key {
			return s, true
		}
	}
	s, ok := scopeSynonyms[key]
	return s, ok
}

// StatusPtr returns a pointer to the normalized status or nil when unknown.
func StatusPtr(raw string) *Status {
	if s, ok := NormalizeStatus(raw); ok {
		return &s
	}
	return nil
}

// ImpactPtr returns a pointer to the normalized impact or nil when unknown.
func ImpactPtr(raw string) *Impact {
	if i, ok := NormalizeImpact(raw); ok {
		return &i
	}
	return nil
}

// PriorityPtr returns a pointer to the normalized priority or nil when unknown.
func PriorityPtr(raw string) *Priority {
	if p, ok := NormalizePriority(raw); ok {
		return &p
	}
	return nil
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

// StatusValues returns the known statuses as plain strings.
func StatusValues() []string { return enumStrings(Statuses) }

// ImpactValues returns the known impacts as plain strings.
func ImpactValues() []string { return enumStrings(Impacts) }

// PriorityValues returns the known priorities as plain strings.
func PriorityValues() []string { return enumStrings(Priorities) }

// ChangeScopeValues returns the known change scopes as plain strings.
func ChangeScopeValues() []string { return enumStrings(ChangeScopes) }
