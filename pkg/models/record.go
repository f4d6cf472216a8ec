package models

import "time"

// DecisionStatus tracks the lifecycle of a recorded decision.
type DecisionStatus string

// Decision statuses.
const (
	DecisionProposed    DecisionStatus = "Proposed"
	DecisionApproved    DecisionStatus = "Approved"
	DecisionImplemented DecisionStatus = "Implemented"
	DecisionReversed    DecisionStatus = "Reversed"
)

// Decision is a recorded choice extracted from one or more chunks.
type Decision struct {
	ID          string
	Description string
	Rationale   string
	DateMade    time.Time
	Status      DecisionStatus
	// ChunkIDs are the chunks this decision resulted from (RESULTED_IN).
	ChunkIDs []string
}

// ActionStatus tracks an assigned task.
type ActionStatus string

// Action statuses.
const (
	ActionNotStarted ActionStatus = "NotStarted"
	ActionInProgress ActionStatus = "InProgress"
	ActionBlocked    ActionStatus = "Blocked"
	ActionCompleted  ActionStatus = "Completed"
)

// Action is an assigned task extracted from one or more chunks.
type Action struct {
	ID          string
	Description string
	// OwnerEntityID references the Entity responsible, when known.
	OwnerEntityID string
	Priority      string
	Status        ActionStatus
	ChunkIDs      []string
}

// SourceRecord is the full bundle produced by the ingestion pipeline for
// one source and consumed by both store writers.
type SourceRecord struct {
	Source       Source
	Chunks       []Chunk
	Entities     []Entity
	Decisions    []Decision
	Actions      []Action
	Participants []Participant
	// Mentions maps chunk id to the entity ids mentioned in that chunk
	// (MENTIONS edges, set semantics).
	Mentions map[string][]string
}

// FailedSubrecord describes one record a writer rejected during an upsert.
type FailedSubrecord struct {
	Kind   string // "source", "chunk", "entity", "decision", "action", "edge"
	ID     string
	Reason string
}

// UpsertResult is the outcome of writing one SourceRecord to one store.
// Writers never fail the whole call for partial rejections; OK reports
// whether the Source and all of its Chunks were accepted.
type UpsertResult struct {
	OK               bool
	FailedSubrecords []FailedSubrecord
}
