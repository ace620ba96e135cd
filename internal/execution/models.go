package execution

import (
	_ "embed"

	"github.com/metalagman/refiner/internal/decode"
)

//go:embed update.schema.json
var updateSchemaJSON string

//go:embed creation.schema.json
var creationSchemaJSON string

var (
	// UpdateSchema validates updater agent output.
	UpdateSchema = decode.MustSchema("update suggestion", updateSchemaJSON)
	// CreationSchema validates creator agent output.
	CreationSchema = decode.MustSchema("new challenge suggestion", creationSchemaJSON)
)

// Enum-like fields stay free text here; the result mapper normalizes them.

// FieldChanges are proposed edits to a challenge. Nil means unchanged.
type FieldChanges struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Impact      *string `json:"impact,omitempty"`
}

// Foundation cites an insight in support of a suggestion.
type Foundation struct {
	InsightID     string  `json:"insightId"`
	Justification string  `json:"justification"`
	Priority      *string `json:"priority,omitempty"`
}

// OwnerRef is an owner named by the agent, by id, name or email.
type OwnerRef struct {
	Owner  string `json:"owner"`
	Reason string `json:"reason,omitempty"`
}

// SubUpdate proposes changes to a direct child of the updated challenge.
type SubUpdate struct {
	ChallengeID string       `json:"challengeId"`
	Changes     FieldChanges `json:"changes"`
	Reason      string       `json:"reason,omitempty"`
}

// SubChallenge proposes a new child challenge.
type SubChallenge struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Impact      *string `json:"impact,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// RawUpdate is the decoded updater output.
type RawUpdate struct {
	Changes             FieldChanges   `json:"changes"`
	Rationale           string         `json:"rationale"`
	FoundationInsights  []Foundation   `json:"foundationInsights,omitempty"`
	SubChallengeUpdates []SubUpdate    `json:"subChallengeUpdates,omitempty"`
	NewSubChallenges    []SubChallenge `json:"newSubChallenges,omitempty"`
	OwnerSuggestions    []OwnerRef     `json:"ownerSuggestions,omitempty"`
}

// RawCreation is the decoded creator output.
type RawCreation struct {
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Status             *string        `json:"status,omitempty"`
	Impact             *string        `json:"impact,omitempty"`
	Rationale          string         `json:"rationale,omitempty"`
	FoundationInsights []Foundation   `json:"foundationInsights,omitempty"`
	SubChallenges      []SubChallenge `json:"subChallenges,omitempty"`
	OwnerSuggestions   []OwnerRef     `json:"ownerSuggestions,omitempty"`
}
