package ingest

import (
	"regexp"
	"strings"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Classification is the derived confidentiality metadata for a source.
type Classification struct {
	Level  models.ConfidentialityLevel
	Status models.DocumentStatus
	Tags   []string
}

var (
	restrictedTitleRe = regexp.MustCompile(`(?i)legal|personnel`)
	confidentialRe    = regexp.MustCompile(`(?i)confidential|sensitive|executive`)
	publicTitleRe     = regexp.MustCompile(`(?i)public`)
	draftTitleRe      = regexp.MustCompile(`(?i)draft|WIP|preliminary|v0\.`)
	archivedTitleRe   = regexp.MustCompile(`(?i)archive|legacy`)
)

// restrictedParticipants are role keywords that force RESTRICTED.
var restrictedParticipants = []string{"lawyer", "attorney", "counsel", "hr director"}

// confidentialCategories force CONFIDENTIAL regardless of title.
var confidentialCategories = map[string]bool{
	"principals": true,
	"leadership": true,
	"board":      true,
	"funder":     true,
}

// topicKeywords is the curated tag vocabulary; at most 3 are applied.
var topicKeywords = []string{
	"strategy", "budget", "hiring", "legal", "fundraising", "product",
	"research", "partnership", "policy", "germany",
}

const maxTopicTags = 3

// Classify derives (level, status, tags) from source metadata. It is a
// pure function: same input, same output. An explicit override pins the
// level and is never downgraded.
func Classify(art *ParsedArtifact) Classification {
	out := Classification{
		Level:  classifyLevel(art),
		Status: classifyStatus(art.Title),
		Tags:   classifyTags(art.Category, art.Title),
	}
	// An override is never downgraded: take the more restrictive of the
	// explicit value and the derived one.
	if art.Override != nil && rank(*art.Override) >= rank(out.Level) {
		out.Level = *art.Override
	}
	return out
}

// classifyLevel applies the level rules in order; first match wins.
func classifyLevel(art *ParsedArtifact) models.ConfidentialityLevel {
	for _, p := range art.Participants {
		lower := strings.ToLower(p.Handle)
		for _, kw := range restrictedParticipants {
			if strings.Contains(lower, kw) {
				return models.ConfidentialityRestricted
			}
		}
	}
	if restrictedTitleRe.MatchString(art.Title) {
		return models.ConfidentialityRestricted
	}
	if confidentialCategories[strings.ToLower(art.Category)] ||
		confidentialRe.MatchString(art.Title) {
		return models.ConfidentialityConfidential
	}
	if strings.EqualFold(art.Category, "PublicEvent") || publicTitleRe.MatchString(art.Title) {
		return models.ConfidentialityPublic
	}
	return models.ConfidentialityInternal
}

func classifyStatus(title string) models.DocumentStatus {
	switch {
	case draftTitleRe.MatchString(title):
		return models.DocumentStatusDraft
	case archivedTitleRe.MatchString(title):
		return models.DocumentStatusArchived
	default:
		return models.DocumentStatusFinal
	}
}

// classifyTags emits the category slug plus up to 3 matched topic
// keywords, in vocabulary order for determinism.
func classifyTags(category, title string) []string {
	var tags []string
	if category != "" {
		tags = append(tags, slug(category))
	}
	lower := strings.ToLower(title)
	added := 0
	for _, kw := range topicKeywords {
		if added >= maxTopicTags {
			break
		}
		if strings.Contains(lower, kw) {
			tags = append(tags, kw)
			added++
		}
	}
	return tags
}

func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// rank orders levels from least to most restrictive.
func rank(l models.ConfidentialityLevel) int {
	switch l {
	case models.ConfidentialityPublic:
		return 0
	case models.ConfidentialityInternal:
		return 1
	case models.ConfidentialityConfidential:
		return 2
	case models.ConfidentialityRestricted:
		return 3
	default:
		return 1
	}
}
