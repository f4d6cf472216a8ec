package ingest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

func testChunker() *Chunker {
	return NewChunker(&config.IngestConfig{
		ChunkMinChars: 500,
		ChunkMaxChars: 1500,
		ChunkCeiling:  2000,
	})
}

func TestChunker_MeetingSpeakerTurns(t *testing.T) {
	art := &ParsedArtifact{
		Kind: models.SourceKindMeeting,
		Lines: []SpeakerLine{
			{Speaker: "Alice", Text: strings.Repeat("We reviewed the budget. ", 40)},
			{Speaker: "Bob", Text: strings.Repeat("I agree with the numbers. ", 40)},
			{Speaker: "Alice", Text: "Decision: approve the Q3 budget."},
		},
	}
	chunks := testChunker().Chunk("src1", art)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Seq)
		assert.Equal(t, "src1", ch.SourceID)
		assert.LessOrEqual(t, len(ch.Text), 2000)
		assert.NotEmpty(t, ch.Speakers)
	}

	last := chunks[len(chunks)-1]
	assert.Equal(t, models.ChunkKindDecision, last.Kind)
	assert.GreaterOrEqual(t, last.Importance, weightDecisionMarker)
}

func TestChunker_ChatWindows(t *testing.T) {
	base := time.Date(2025, 10, 8, 14, 0, 0, 0, time.UTC)
	var lines []SpeakerLine
	for i := 0; i < 25; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		lines = append(lines, SpeakerLine{
			Speaker:   fmt.Sprintf("user%d", i%3),
			Timestamp: &ts,
			Text:      "short message",
		})
	}
	art := &ParsedArtifact{Kind: models.SourceKindChat, Lines: lines}
	chunks := testChunker().Chunk("src1", art)

	// 25 messages over 25 minutes cannot fit one 15-minute window.
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, models.ChunkKindConversation, ch.Kind)
		if ch.StartTime != nil && ch.EndTime != nil {
			assert.LessOrEqual(t, ch.EndTime.Sub(*ch.StartTime), chatWindow)
		}
		assert.LessOrEqual(t, strings.Count(ch.Text, "\n")+1, chatMaxMessages)
	}
}

func TestChunker_DocumentParagraphs(t *testing.T) {
	paras := make([]string, 6)
	for i := range paras {
		paras[i] = strings.Repeat("A sentence of prose here. ", 20)
	}
	art := &ParsedArtifact{
		Kind: models.SourceKindDocument,
		Text: strings.Join(paras, "\n\n"),
	}
	chunks := testChunker().Chunk("src1", art)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Equal(t, models.ChunkKindDiscussion, ch.Kind)
		assert.LessOrEqual(t, len(ch.Text), 2000)
	}
}

func TestChunker_OversizedSentenceSplitsAtWordBoundary(t *testing.T) {
	art := &ParsedArtifact{
		Kind: models.SourceKindDocument,
		Text: strings.Repeat("word ", 900), // one giant "sentence"
	}
	chunks := testChunker().Chunk("src1", art)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 2000)
		assert.False(t, strings.HasPrefix(ch.Text, " "))
		assert.False(t, strings.HasSuffix(ch.Text, " "))
	}
}

func TestChunker_AlwaysProducesAtLeastOneChunk(t *testing.T) {
	art := &ParsedArtifact{Kind: models.SourceKindDocument, Text: "tiny"}
	chunks := testChunker().Chunk("src1", art)
	require.Len(t, chunks, 1)
	assert.Equal(t, "tiny", chunks[0].Text)
}

func TestChunker_PropertyDeterminismAndDenseSeqs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	c := testChunker()

	properties.Property("same input yields same ids, seqs are dense", prop.ForAll(
		func(paras []string) bool {
			text := strings.TrimSpace(strings.Join(paras, "\n\n"))
			if text == "" {
				text = "placeholder"
			}
			art := &ParsedArtifact{Kind: models.SourceKindDocument, Text: text}

			first := c.Chunk("src1", art)
			second := c.Chunk("src1", art)
			if len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i].ID != second[i].ID || first[i].Seq != i {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestImportanceScore_Bounded(t *testing.T) {
	score := importanceScore(
		"Decision: ship it! Action: assign owners. This is critical.",
		[]string{"Jane (CEO)"})
	assert.InDelta(t, 1.0, score, 0.0001)

	assert.Equal(t, 0.0, importanceScore("plain talk", []string{"Bob"}))
}
