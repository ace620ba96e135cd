// Package backlog holds the challenge/insight data model and builds the
// planning and execution contexts handed to agents.
package backlog

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusIdentified Status = "identified"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusResolved   Status = "resolved"
	StatusArchived   Status = "archived"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusIdentified, StatusInProgress, StatusBlocked, StatusResolved, StatusArchived}

// Impact is the ordered severity of a challenge.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// Impacts lists every known impact from lowest to highest.
var Impacts = []Impact{ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical}

// Rank returns the position of the impact in the ordering, or -1 if unknown.
func (i Impact) Rank() int {
	for n, v := range Impacts {
		if v == i {
			return n
		}
	}
	return -1
}

// Priority is the urgency a planner attaches to a directive or a piece of evidence.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every known priority.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ChangeScope is the coarse size of a revision.
type ChangeScope string

const (
	ScopeMinor    ChangeScope = "minor"
	ScopeModerate ChangeScope = "moderate"
	ScopeMajor    ChangeScope = "major"
)

// ChangeScopes lists every known change scope.
var ChangeScopes = []ChangeScope{ScopeMinor, ScopeModerate, ScopeMajor}

// Project carries the project-level descriptive fields given to the planner.
type Project struct {
	ID          string `json:"id"                    yaml:"id"`
	Name        string `json:"name"                  yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Goals       string `json:"goals,omitempty"       yaml:"goals"`
}

// Owner is a person that can be assigned to a challenge.
type Owner struct {
	ID    string `json:"id"              yaml:"id"`
	Name  string `json:"name"            yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email"`
}

// ChallengeRow is a raw challenge record as returned by a context source.
type ChallengeRow struct {
	ID          string   `yaml:"id"`
	ParentID    string   `yaml:"parent_id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Status      string   `yaml:"status"`
	Impact      string   `yaml:"impact"`
	InsightIDs  []string `yaml:"insight_ids"`
}

// InsightRow is a raw evidence record as returned by a context source.
type InsightRow struct {
	ID             string   `yaml:"id"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Category       string   `yaml:"category"`
	Completed      bool     `yaml:"completed"`
	ConversationID string   `yaml:"conversation_id"`
	ChallengeIDs   []string `yaml:"challenge_ids"`
}

// Ownership links an owner to a challenge.
type Ownership struct {
	ChallengeID string `yaml:"challenge_id"`
	OwnerID     string `yaml:"owner_id"`
}

// Rows is everything a context source returns for one project.
type Rows struct {
	Project    Project
	Challenges []ChallengeRow
	Insights   []InsightRow
	Owners     []Owner
	Ownerships []Ownership
}

// ChallengeNode is a challenge resolved into the hierarchy.
type ChallengeNode struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Impact      Impact   `json:"impact,omitempty"`
	OwnerIDs    []string `json:"ownerIds,omitempty"`
	InsightIDs  []string `json:"insightIds,omitempty"`
	ParentID    string   `json:"parentId,omitempty"`
	ChildIDs    []string `json:"childIds,omitempty"`
	Depth       int      `json:"depth"`
}

// EvidenceItem is an insight attached to one or more challenges.
type EvidenceItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	Completed      bool     `json:"completed"`
	ConversationID string   `json:"conversationId,omitempty"`
	ChallengeIDs   []string `json:"challengeIds,omitempty"`
}

// GlobalContext is the whole-project view handed to the planner.
type GlobalContext struct {
	Project    Project         `json:"project"`
	Challenges []ChallengeNode `json:"challenges"`
	Insights   []EvidenceItem  `json:"insights"`
	Owners     []Owner         `json:"owners"`
}

// ScopedContext is the per-challenge view handed to an updater agent.
type ScopedContext struct {
	Challenge       ChallengeNode   `json:"challenge"`
	Children        []ChallengeNode `json:"children"`
	Insights        []EvidenceItem  `json:"insights"`
	ConversationIDs []string        `json:"conversationIds"`
}

// Warning is a data-quality note raised while building contexts.
type Warning struct {
	ChallengeID string `json:"challengeId,omitempty"`
	Message     string `json:"message"`
}
