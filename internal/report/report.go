// Package report maps execution output onto normalized suggestions and
// assembles the final review report.
package report

import (
	"time"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/execution"
	"github.com/metalagman/refiner/internal/planning"
)

// Warning sources.
const (
	SourceContext = "context"
	SourcePlan    = "plan"
	SourceMapper  = "mapper"
)

// Report is the result of one review run.
type Report struct {
	RunID         string                     `json:"runId"`
	ProjectID     string                     `json:"projectId"`
	Summary       string                     `json:"summary"`
	Updates       []UpdateSuggestion         `json:"updates"`
	NewChallenges []NewChallengeSuggestion   `json:"newChallenges"`
	NoChange      []planning.NoChangeRecord  `json:"noChange"`
	Warnings      []Warning                  `json:"warnings"`
	Errors        []execution.ExecutionError `json:"errors,omitempty"`
	Metadata      Metadata                   `json:"metadata"`
}

// Warning is a data-quality note surfaced to the reviewer.
type Warning struct {
	Source  string `json:"source"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Metadata records which agents produced the report.
type Metadata struct {
	PlannerAgent string            `json:"plannerAgent"`
	UpdaterAgent string            `json:"updaterAgent"`
	CreatorAgent string            `json:"creatorAgent"`
	PlannerLogID string            `json:"plannerLogId,omitempty"`
	LogIDs       map[string]string `json:"logIds,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	FinishedAt   time.Time         `json:"finishedAt"`
}

// Changes are normalized field edits. Nil means unchanged or unrecognized.
type Changes struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *backlog.Status `json:"status,omitempty"`
	Impact      *backlog.Impact `json:"impact,omitempty"`
}

// Evidence is a foundation insight with the agent's justification.
type Evidence struct {
	InsightID     string            `json:"insightId"`
	Title         string            `json:"title"`
	Justification string            `json:"justification"`
	Priority      *backlog.Priority `json:"priority,omitempty"`
}

// OwnerSuggestion is an owner proposed by an agent. Unresolved suggestions
// keep the agent's text in Name for manual mapping.
type OwnerSuggestion struct {
	OwnerID  string `json:"ownerId,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Resolved bool   `json:"resolved"`
	Reason   string `json:"reason,omitempty"`
}

// SubUpdate is a proposed edit to a direct child challenge.
type SubUpdate struct {
	ChallengeID string  `json:"challengeId"`
	Changes     Changes `json:"changes"`
	Reason      string  `json:"reason,omitempty"`
}

// SubChallenge is a proposed new child challenge.
type SubChallenge struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Impact      *backlog.Impact `json:"impact,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// UpdateSuggestion is the reviewed proposal for an existing challenge.
type UpdateSuggestion struct {
	ChallengeID         string              `json:"challengeId"`
	CurrentTitle        string              `json:"currentTitle"`
	Priority            backlog.Priority    `json:"priority"`
	ChangeScope         backlog.ChangeScope `json:"changeScope"`
	PlannerReason       string              `json:"plannerReason"`
	Changes             Changes             `json:"changes"`
	Rationale           string              `json:"rationale"`
	FoundationInsights  []Evidence          `json:"foundationInsights"`
	SubChallengeUpdates []SubUpdate         `json:"subChallengeUpdates"`
	NewSubChallenges    []SubChallenge      `json:"newSubChallenges"`
	Owners              []OwnerSuggestion   `json:"owners"`
}

// NewChallengeSuggestion is the reviewed proposal for a new challenge.
type NewChallengeSuggestion struct {
	ID                 string            `json:"id"`
	ReferenceID        string            `json:"referenceId"`
	ParentID           *string           `json:"parentId,omitempty"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Status             *backlog.Status   `json:"status,omitempty"`
	Impact             *backlog.Impact   `json:"impact,omitempty"`
	Rationale          string            `json:"rationale,omitempty"`
	FoundationInsights []Evidence        `json:"foundationInsights"`
	SubChallenges      []SubChallenge    `json:"subChallenges"`
	Owners             []OwnerSuggestion `json:"owners"`
}
