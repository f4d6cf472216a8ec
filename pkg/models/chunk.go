package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChunkKind classifies the conversational role of a chunk.
type ChunkKind string

// Chunk kinds.
const (
	ChunkKindDiscussion   ChunkKind = "discussion"
	ChunkKindDecision     ChunkKind = "decision"
	ChunkKindAction       ChunkKind = "action"
	ChunkKindAssessment   ChunkKind = "assessment"
	ChunkKindQuestion     ChunkKind = "question"
	ChunkKindConversation ChunkKind = "conversation"
)

// Chunk is an ordered, typed fragment of a Source and the only unit
// against which free-text and vector search run.
type Chunk struct {
	ID         string
	SourceID   string
	Seq        int
	Speakers   []string
	StartTime  *time.Time
	EndTime    *time.Time
	Kind       ChunkKind
	Text       string
	Importance float64
	// Embedding is nil when the embedding service was unavailable.
	// When present its length must equal the configured dimension.
	Embedding []float32
}

// ChunkID derives the deterministic chunk identifier from the owning
// source, the sequence number, and the chunk text. Re-ingesting the
// same artifact yields the same ids.
func ChunkID(sourceID string, seq int, text string) string {
	textHash := sha256.Sum256([]byte(text))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", sourceID, seq, hex.EncodeToString(textHash[:]))))
	return hex.EncodeToString(sum[:])[:16]
}
