package ingest

import (
	"strings"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Chat grouping bounds: a chunk covers at most a 15-minute window and
// at most 20 messages, whichever is tighter.
const (
	chatWindow      = 15 * time.Minute
	chatMaxMessages = 20
)

// Importance feature weights. The score is a bounded weighted sum and
// is deterministic for a given chunk.
const (
	weightDecisionMarker = 0.4
	weightActionMarker   = 0.3
	weightLeaderSpeaker  = 0.2
	weightEmphasis       = 0.1
)

// leaderTitles mark a speaker as organizational leadership for the
// importance score.
var leaderTitles = []string{"ceo", "cto", "coo", "director", "president", "chair", "lead"}

// Chunker splits a parsed artifact into ordered chunks with dense
// sequence numbers and deterministic ids.
type Chunker struct {
	minChars int
	maxChars int
	ceiling  int
}

// NewChunker builds a chunker from the ingest configuration.
func NewChunker(cfg *config.IngestConfig) *Chunker {
	return &Chunker{
		minChars: cfg.ChunkMinChars,
		maxChars: cfg.ChunkMaxChars,
		ceiling:  cfg.ChunkCeiling,
	}
}

// Chunk produces the ordered chunk sequence for one source. It always
// returns at least one chunk for non-empty input.
func (c *Chunker) Chunk(sourceID string, art *ParsedArtifact) []models.Chunk {
	var pieces []piece
	switch art.Kind {
	case models.SourceKindChat:
		pieces = c.chunkChat(art.Lines)
	case models.SourceKindMeeting:
		pieces = c.chunkTurns(art.Lines)
	default:
		pieces = c.chunkProse(art.Text)
	}
	if len(pieces) == 0 {
		pieces = []piece{{text: strings.TrimSpace(art.Text)}}
	}

	defaultKind := models.ChunkKindDiscussion
	if art.Kind == models.SourceKindChat {
		defaultKind = models.ChunkKindConversation
	}

	out := make([]models.Chunk, 0, len(pieces))
	for seq, p := range pieces {
		kind := detectChunkKind(p.text, defaultKind)
		out = append(out, models.Chunk{
			ID:         models.ChunkID(sourceID, seq, p.text),
			SourceID:   sourceID,
			Seq:        seq,
			Speakers:   p.speakers,
			StartTime:  p.start,
			EndTime:    p.end,
			Kind:       kind,
			Text:       p.text,
			Importance: importanceScore(p.text, p.speakers),
		})
	}
	return out
}

// piece is an intermediate chunk before ids and kinds are assigned.
type piece struct {
	text     string
	speakers []string
	start    *time.Time
	end      *time.Time
}

// chunkTurns groups speaker turns, splitting at turn boundaries first.
// A single oversized turn falls back to prose splitting.
func (c *Chunker) chunkTurns(lines []SpeakerLine) []piece {
	var out []piece
	var cur piece
	seen := map[string]bool{}

	flush := func() {
		if strings.TrimSpace(cur.text) != "" {
			out = append(out, cur)
		}
		cur = piece{}
		seen = map[string]bool{}
	}

	for _, l := range lines {
		turn := l.Speaker + ": " + l.Text
		if len(turn) > c.ceiling {
			flush()
			for _, part := range c.chunkProse(l.Text) {
				out = append(out, piece{text: l.Speaker + ": " + part.text, speakers: []string{l.Speaker}})
			}
			continue
		}
		if cur.text != "" && len(cur.text)+1+len(turn) > c.maxChars {
			flush()
		}
		if cur.text != "" {
			cur.text += "\n"
		}
		cur.text += turn
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			cur.speakers = append(cur.speakers, l.Speaker)
		}
	}
	flush()
	return out
}

// chunkChat groups messages into time/count-bounded windows, then
// applies the same size limits as speaker turns.
func (c *Chunker) chunkChat(lines []SpeakerLine) []piece {
	var out []piece
	var cur piece
	msgs := 0
	seen := map[string]bool{}

	flush := func() {
		if strings.TrimSpace(cur.text) != "" {
			out = append(out, cur)
		}
		cur = piece{}
		msgs = 0
		seen = map[string]bool{}
	}

	for _, l := range lines {
		msg := l.Speaker + ": " + l.Text
		windowFull := msgs >= chatMaxMessages
		if !windowFull && l.Timestamp != nil && cur.start != nil &&
			l.Timestamp.Sub(*cur.start) > chatWindow {
			windowFull = true
		}
		sizeFull := cur.text != "" && len(cur.text)+1+len(msg) > c.maxChars
		if windowFull || sizeFull {
			flush()
		}
		if cur.text != "" {
			cur.text += "\n"
		}
		cur.text += msg
		msgs++
		if !seen[l.Speaker] {
			seen[l.Speaker] = true
			cur.speakers = append(cur.speakers, l.Speaker)
		}
		if l.Timestamp != nil {
			if cur.start == nil {
				t := *l.Timestamp
				cur.start = &t
			}
			t := *l.Timestamp
			cur.end = &t
		}
	}
	flush()
	return out
}

// chunkProse splits prose at paragraph boundaries, then sentences, and
// only splits inside a sentence when it alone exceeds the ceiling (at
// the nearest word boundary before the ceiling).
func (c *Chunker) chunkProse(text string) []piece {
	var out []piece
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, piece{text: s})
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > c.maxChars {
			flush()
		}
		if len(para) <= c.maxChars {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}
		// Paragraph too large: pack sentences.
		flush()
		for _, sentence := range splitSentences(para) {
			if len(sentence) > c.ceiling {
				flush()
				for _, part := range splitAtWords(sentence, c.ceiling) {
					out = append(out, piece{text: part})
				}
				continue
			}
			if cur.Len() > 0 && cur.Len()+1+len(sentence) > c.maxChars {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteString(" ")
			}
			cur.WriteString(sentence)
		}
		flush()
	}
	flush()
	return out
}

// splitSentences is a lightweight splitter on terminal punctuation
// followed by whitespace.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(s) && (s[end] == '.' || s[end] == '!' || s[end] == '?') {
				end++
			}
			if end >= len(s) || s[end] == ' ' || s[end] == '\n' {
				if sent := strings.TrimSpace(s[start:end]); sent != "" {
					out = append(out, sent)
				}
				start = end
				i = end - 1
			}
		}
	}
	if sent := strings.TrimSpace(s[start:]); sent != "" {
		out = append(out, sent)
	}
	return out
}

// splitAtWords cuts a string into limit-sized parts at word boundaries.
func splitAtWords(s string, limit int) []string {
	var out []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit], ' ')
		if cut <= 0 {
			cut = limit
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// detectChunkKind applies lexical cues; explicit markers dominate.
func detectChunkKind(text string, def models.ChunkKind) models.ChunkKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "decision:"):
		return models.ChunkKindDecision
	case strings.Contains(lower, "action:") || strings.Contains(lower, "action item"):
		return models.ChunkKindAction
	case strings.Contains(lower, "assessment:"):
		return models.ChunkKindAssessment
	case strings.HasSuffix(strings.TrimSpace(lower), "?"):
		return models.ChunkKindQuestion
	default:
		return def
	}
}

// importanceScore is the bounded weighted feature sum.
func importanceScore(text string, speakers []string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	if strings.Contains(lower, "decision:") {
		score += weightDecisionMarker
	}
	if strings.Contains(lower, "action:") || strings.Contains(lower, "action item") {
		score += weightActionMarker
	}
	if anyLeader(speakers) {
		score += weightLeaderSpeaker
	}
	if strings.Contains(lower, "important") || strings.Contains(lower, "critical") ||
		strings.Contains(text, "!") {
		score += weightEmphasis
	}
	if score > 1 {
		score = 1
	}
	return score
}

func anyLeader(speakers []string) bool {
	for _, s := range speakers {
		lower := strings.ToLower(s)
		for _, title := range leaderTitles {
			if strings.Contains(lower, title) {
				return true
			}
		}
	}
	return false
}
