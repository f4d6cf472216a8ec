package models

import "time"

// SessionState is the query session state machine position.
type SessionState string

// Session states.
const (
	SessionReceived     SessionState = "received"
	SessionClassified   SessionState = "classified"
	SessionSynthesizing SessionState = "synthesizing"
	SessionDone         SessionState = "done"
	SessionFailed       SessionState = "failed"
)

// QueryMode is the classification outcome for a question.
type QueryMode string

// Query modes.
const (
	ModeDirect         QueryMode = "direct"
	ModeSingleDelegate QueryMode = "single_delegate"
	ModePlanned        QueryMode = "planned"
)

// SubAgentKind selects the sub-agent a plan item is delegated to.
type SubAgentKind string

// Sub-agent kinds.
const (
	SubAgentQuery    SubAgentKind = "query"
	SubAgentAnalysis SubAgentKind = "analysis"
)

// TodoStatus is the lifecycle state of one plan item.
type TodoStatus string

// Todo statuses. Terminal statuses are completed, failed, and skipped.
const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
	TodoSkipped    TodoStatus = "skipped"
)

// TodoItem is one step in the supervisor's plan. Items are never removed
// from a plan; terminal statuses remain visible for synthesis.
type TodoItem struct {
	ID          string
	Description string
	Agent       SubAgentKind
	Status      TodoStatus
	// Summary is the sub-agent's bounded result (≤500 words), set when
	// the item completes.
	Summary string
}

// ConversationTurn is one prior user/assistant exchange supplied to the
// supervisor for continuity. Sub-agents never receive history.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Citation identifies a source referenced in a synthesized answer.
type Citation struct {
	Title           string
	Date            time.Time
	Confidentiality ConfidentialityLevel
}

// Answer is the supervisor's synthesized reply.
type Answer struct {
	Text      string
	Citations []Citation
	Truncated bool
}
