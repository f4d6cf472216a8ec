package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// EntityType classifies a canonical mention target.
type EntityType string

// Entity types.
const (
	EntityTypePerson       EntityType = "Person"
	EntityTypeOrganization EntityType = "Organization"
	EntityTypeCountry      EntityType = "Country"
	EntityTypeTopic        EntityType = "Topic"
	EntityTypeProject      EntityType = "Project"
)

// Entity is a deduplicated mention target. Entities are merged across
// sources by (normalized name, type).
type Entity struct {
	ID             string
	Name           string
	NormalizedName string
	Type           EntityType
	FirstMentioned time.Time
	LastMentioned  time.Time
	MentionCount   int
}

// NormalizeEntityName lowercases, strips punctuation, and collapses
// consecutive whitespace. Idempotent.
func NormalizeEntityName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// EntityID derives the stable entity identifier from the normalized
// name and type.
func EntityID(normalizedName string, typ EntityType) string {
	sum := sha256.Sum256([]byte(normalizedName + "|" + string(typ)))
	return hex.EncodeToString(sum[:])[:16]
}
