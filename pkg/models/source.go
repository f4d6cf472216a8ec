// Package models defines the shared domain types used across ingestion,
// storage, and query serving.
package models

import "time"

// SourceKind identifies the shape of an ingested artifact.
type SourceKind string

// Source kinds.
const (
	SourceKindMeeting  SourceKind = "Meeting"
	SourceKindDocument SourceKind = "Document"
	SourceKindChat     SourceKind = "Chat"
)

// ConfidentialityLevel is the access sensitivity of a source.
type ConfidentialityLevel string

// Confidentiality levels, least to most restrictive.
const (
	ConfidentialityPublic       ConfidentialityLevel = "PUBLIC"
	ConfidentialityInternal     ConfidentialityLevel = "INTERNAL"
	ConfidentialityConfidential ConfidentialityLevel = "CONFIDENTIAL"
	ConfidentialityRestricted   ConfidentialityLevel = "RESTRICTED"
)

// DocumentStatus is the publication state of a source.
type DocumentStatus string

// Document statuses.
const (
	DocumentStatusDraft    DocumentStatus = "DRAFT"
	DocumentStatusFinal    DocumentStatus = "FINAL"
	DocumentStatusArchived DocumentStatus = "ARCHIVED"
)

// Source is a single ingested artifact: a meeting transcript, a document,
// or a chat export. Immutable after first successful ingest except for
// confidentiality metadata.
type Source struct {
	ID              string
	Kind            SourceKind
	Title           string
	Date            time.Time
	RawPayload      string
	Confidentiality ConfidentialityLevel
	Status          DocumentStatus
	Tags            []string
}

// Participant is a chat participant (Chat sources only).
type Participant struct {
	Handle       string
	MessageCount int
}
