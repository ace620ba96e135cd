package planning

import (
	_ "embed"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/decode"
)

//go:embed plan.schema.json
var planSchemaJSON string

// Schema validates a revision plan as produced by the planner agent.
var Schema = decode.MustSchema("revision plan", planSchemaJSON)

// Plan is the global revision plan. A challenge id appears in at most one of
// Updates and NoChangeNeeded once the plan has been reconciled.
type Plan struct {
	Summary        string              `json:"summary"`
	Updates        []UpdateDirective   `json:"updates"`
	Creations      []CreationDirective `json:"creations"`
	NoChangeNeeded []NoChangeRecord    `json:"noChangeNeeded"`
}

// UpdateDirective asks for an existing challenge to be revised.
type UpdateDirective struct {
	ChallengeID string              `json:"challengeId"`
	Priority    backlog.Priority    `json:"priority"`
	Reason      string              `json:"reason"`
	InsightIDs  []string            `json:"insightIds"`
	ChangeScope backlog.ChangeScope `json:"changeScope"`
}

// CreationDirective asks for a new challenge. ReferenceID is the planner's
// handle for it until a real id is minted.
type CreationDirective struct {
	ReferenceID       string         `json:"referenceId"`
	Title             string         `json:"title,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	SuggestedParentID *string        `json:"suggestedParentId,omitempty"`
	InsightIDs        []string       `json:"insightIds"`
	SuggestedImpact   backlog.Impact `json:"suggestedImpact"`
}

// ParentID returns the suggested parent or "".
func (c CreationDirective) ParentID() string {
	if c.SuggestedParentID == nil {
		return ""
	}
	return *c.SuggestedParentID
}

// NoChangeRecord marks a reviewed challenge that needs no revision.
type NoChangeRecord struct {
	ChallengeID string `json:"challengeId"`
	Reason      string `json:"reason,omitempty"`
}

// Empty reports whether the plan has no directives to execute.
func (p Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Creations) == 0
}

// Warning is a referential problem that caused part of a plan to be dropped.
type Warning struct {
	List        string `json:"list"`
	DirectiveID string `json:"directiveId,omitempty"`
	Message     string `json:"message"`
}

const (
	ListUpdates   = "updates"
	ListCreations = "creations"
	ListNoChange  = "noChangeNeeded"
)
