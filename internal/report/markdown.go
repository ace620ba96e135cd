package report

import (
	"fmt"
	"strings"
)

// Markdown renders the report for terminals and MCP clients.
func Markdown(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Backlog review %s\n\n", r.ProjectID)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", r.RunID)
	}
	if r.Summary != "" {
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "## Updates (%d)\n\n", len(r.Updates))
	for _, u := range r.Updates {
		fmt.Fprintf(&b, "### %s `%s`\n\n", title(u.CurrentTitle, u.ChallengeID), u.ChallengeID)
		fmt.Fprintf(&b, "- Priority: **%s**, scope: %s\n", u.Priority, u.ChangeScope)
		if u.PlannerReason != "" {
			fmt.Fprintf(&b, "- Why: %s\n", u.PlannerReason)
		}
		writeChanges(&b, u.Changes)
		if u.Rationale != "" {
			fmt.Fprintf(&b, "\n%s\n", u.Rationale)
		}
		writeEvidence(&b, u.FoundationInsights)
		if len(u.SubChallengeUpdates) > 0 {
			b.WriteString("\nSub-challenge updates:\n\n")
			for _, s := range u.SubChallengeUpdates {
				fmt.Fprintf(&b, "- `%s`%s\n", s.ChallengeID, reason(s.Reason))
			}
		}
		writeSubChallenges(&b, u.NewSubChallenges)
		writeOwners(&b, u.Owners)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## New challenges (%d)\n\n", len(r.NewChallenges))
	for _, c := range r.NewChallenges {
		fmt.Fprintf(&b, "### %s\n\n", title(c.Title, c.ReferenceID))
		fmt.Fprintf(&b, "- Id: `%s` (ref `%s`)\n", c.ID, c.ReferenceID)
		if c.ParentID != nil {
			fmt.Fprintf(&b, "- Parent: `%s`\n", *c.ParentID)
		}
		if c.Impact != nil {
			fmt.Fprintf(&b, "- Impact: **%s**\n", *c.Impact)
		}
		if c.Status != nil {
			fmt.Fprintf(&b, "- Status: %s\n", *c.Status)
		}
		if c.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", c.Description)
		}
		writeEvidence(&b, c.FoundationInsights)
		writeSubChallenges(&b, c.SubChallenges)
		writeOwners(&b, c.Owners)
		b.WriteString("\n")
	}

	if len(r.NoChange) > 0 {
		fmt.Fprintf(&b, "## No change needed (%d)\n\n", len(r.NoChange))
		for _, n := range r.NoChange {
			fmt.Fprintf(&b, "- `%s`%s\n", n.ChallengeID, reason(n.Reason))
		}
		b.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "## Errors (%d)\n\n", len(r.Errors))
		for _, e := range r.Errors {
			id := "unattributed"
			if e.DirectiveID != nil {
				id = *e.DirectiveID
			}
			fmt.Fprintf(&b, "- `%s` %s: %s\n", id, e.Kind, e.Message)
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "## Warnings (%d)\n\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- [%s] %s\n", w.Source, w.Message)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeChanges(b *strings.Builder, c Changes) {
	if c.Title != nil {
		fmt.Fprintf(b, "- Title -> %s\n", *c.Title)
	}
	if c.Description != nil {
		fmt.Fprintf(b, "- Description -> %s\n", oneLine(*c.Description))
	}
	if c.Status != nil {
		fmt.Fprintf(b, "- Status -> %s\n", *c.Status)
	}
	if c.Impact != nil {
		fmt.Fprintf(b, "- Impact -> %s\n", *c.Impact)
	}
}

func writeEvidence(b *strings.Builder, items []Evidence) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\nEvidence:\n\n")
	for _, e := range items {
		p := ""
		if e.Priority != nil {
			p = fmt.Sprintf(" (%s)", *e.Priority)
		}
		fmt.Fprintf(b, "- `%s` %s%s: %s\n", e.InsightID, e.Title, p, e.Justification)
	}
}

func writeSubChallenges(b *strings.Builder, items []SubChallenge) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\nProposed sub-challenges:\n\n")
	for _, s := range items {
		fmt.Fprintf(b, "- %s%s\n", s.Title, reason(s.Reason))
	}
}

func writeOwners(b *strings.Builder, owners []OwnerSuggestion) {
	if len(owners) == 0 {
		return
	}
	names := make([]string, 0, len(owners))
	for _, o := range owners {
		if o.Resolved {
			names = append(names, o.Name)
		} else {
			names = append(names, o.Name+" (unresolved)")
		}
	}
	fmt.Fprintf(b, "\nOwners: %s\n", strings.Join(names, ", "))
}

func title(t, fallback string) string {
	if strings.TrimSpace(t) == "" {
		return fallback
	}
	return t
}

func reason(r string) string {
	if r == "" {
		return ""
	}
	return ": " + oneLine(r)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
