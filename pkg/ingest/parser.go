// Package ingest converts a source artifact into chunks, entities,
// decisions, actions, and embeddings, then dual-writes them to the
// enabled stores.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Artifact is one external file handed to the pipeline by the monitor.
type Artifact struct {
	// FileID is the external object-store identifier, stable per file.
	FileID string
	// Name is the object name (used for kind detection and titling).
	Name string
	Data []byte
	Meta *ArtifactMeta
}

// ArtifactMeta is optional sidecar metadata attached to an artifact.
type ArtifactMeta struct {
	Title    string
	Date     time.Time
	Category string
	// Override, when set, pins the confidentiality classification.
	Override *models.ConfidentialityLevel
}

// ParsedArtifact is the normalized form the chunker consumes.
type ParsedArtifact struct {
	Kind     models.SourceKind
	Title    string
	Date     time.Time
	Category string
	Filename string
	// Text is the full normalized text (document prose, or the joined
	// speaker lines for meetings and chats).
	Text string
	// Lines is populated for Meeting and Chat sources.
	Lines []SpeakerLine
	// Participants is populated for Chat sources only.
	Participants []models.Participant
	Override     *models.ConfidentialityLevel
}

// SpeakerLine is one attributed line of a meeting or chat.
type SpeakerLine struct {
	Speaker   string
	Timestamp *time.Time
	Text      string
}

// Chat lines carry a leading timestamp, e.g.
// "[2025-10-08 14:03] alice: looks good" or "2025-10-08T14:03:05 bob: ok".
var chatLineRe = regexp.MustCompile(
	`^\[?(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?)\]?\s+([^:]{1,64}):\s?(.*)$`)

// Meeting transcript lines are speaker-prefixed without timestamps.
var speakerLineRe = regexp.MustCompile(`^([A-Za-z][\w .'-]{0,48}):\s+(.*)$`)

var filenameDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// sniffWindow bounds how much of the payload kind detection inspects.
const sniffWindow = 1024

// SourceIDFor derives the stable source identifier from the external
// file id.
func SourceIDFor(fileID string) string {
	sum := sha256.Sum256([]byte(fileID))
	return hex.EncodeToString(sum[:])[:16]
}

// ParseArtifact normalizes one artifact into text plus metadata. The
// source kind is detected from the filename pattern and a content sniff
// of the first KB: a timestamp-prefixed line marks a Chat, a
// speaker-prefixed line marks a Meeting, anything else is a Document.
// Malformed encoding is a BadSource fault.
func ParseArtifact(a *Artifact) (*ParsedArtifact, error) {
	if !utf8.Valid(a.Data) {
		return nil, models.Faultf(models.FaultBadSource, "ingest.parse",
			"artifact %s is not valid UTF-8", a.Name)
	}
	text := normalizeText(string(a.Data))
	if strings.TrimSpace(text) == "" {
		return nil, models.Faultf(models.FaultBadSource, "ingest.parse",
			"artifact %s is empty", a.Name)
	}

	parsed := &ParsedArtifact{
		Filename: a.Name,
		Text:     text,
		Kind:     detectKind(a.Name, text),
	}
	if a.Meta != nil {
		parsed.Title = a.Meta.Title
		parsed.Date = a.Meta.Date
		parsed.Category = a.Meta.Category
		parsed.Override = a.Meta.Override
	}
	if parsed.Title == "" {
		parsed.Title = titleFromFilename(a.Name)
	}
	if parsed.Date.IsZero() {
		parsed.Date = dateFromFilename(a.Name)
	}

	switch parsed.Kind {
	case models.SourceKindChat:
		parsed.Lines = parseChatLines(text)
		parsed.Participants = tallyParticipants(parsed.Lines)
	case models.SourceKindMeeting:
		parsed.Lines = parseSpeakerLines(text)
	}
	return parsed, nil
}

// detectKind applies the filename pattern first, then sniffs the first
// KB of content. Chat requires a timestamp-prefixed line in the window.
func detectKind(name, text string) models.SourceKind {
	lower := strings.ToLower(name)
	window := text
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}

	chatName := strings.Contains(lower, "chat") ||
		strings.Contains(lower, "whatsapp") ||
		strings.Contains(lower, "slack")
	if chatName && hasChatLine(window) {
		return models.SourceKindChat
	}
	if strings.Contains(lower, "meeting") ||
		strings.Contains(lower, "transcript") ||
		strings.Contains(lower, "minutes") {
		return models.SourceKindMeeting
	}
	if hasChatLine(window) {
		return models.SourceKindChat
	}
	if hasSpeakerLine(window) {
		return models.SourceKindMeeting
	}
	return models.SourceKindDocument
}

func hasChatLine(window string) bool {
	for _, line := range strings.Split(window, "\n") {
		if chatLineRe.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func hasSpeakerLine(window string) bool {
	matches := 0
	for _, line := range strings.Split(window, "\n") {
		if speakerLineRe.MatchString(strings.TrimSpace(line)) {
			matches++
			if matches >= 2 {
				return true
			}
		}
	}
	return false
}

func parseChatLines(text string) []SpeakerLine {
	var out []SpeakerLine
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := chatLineRe.FindStringSubmatch(line)
		if m == nil {
			// Continuation of the previous message.
			if len(out) > 0 {
				out[len(out)-1].Text += "\n" + line
			}
			continue
		}
		ts := parseChatTimestamp(m[1])
		out = append(out, SpeakerLine{
			Speaker:   strings.TrimSpace(m[2]),
			Timestamp: ts,
			Text:      m[3],
		})
	}
	return out
}

func parseChatTimestamp(s string) *time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseSpeakerLines(text string) []SpeakerLine {
	var out []SpeakerLine
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := speakerLineRe.FindStringSubmatch(line)
		if m == nil {
			if len(out) > 0 {
				out[len(out)-1].Text += "\n" + line
			}
			continue
		}
		out = append(out, SpeakerLine{Speaker: strings.TrimSpace(m[1]), Text: m[2]})
	}
	return out
}

func tallyParticipants(lines []SpeakerLine) []models.Participant {
	counts := make(map[string]int)
	for _, l := range lines {
		counts[l.Speaker]++
	}
	handles := make([]string, 0, len(counts))
	for h := range counts {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	out := make([]models.Participant, 0, len(handles))
	for _, h := range handles {
		out = append(out, models.Participant{Handle: h, MessageCount: counts[h]})
	}
	return out
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

func dateFromFilename(name string) time.Time {
	m := filenameDateRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
	if err != nil {
		return time.Time{}
	}
	return t
}
