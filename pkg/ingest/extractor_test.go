package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeLLM) Generate(_ context.Context, _ *llm.GenerateInput) (*llm.Completion, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		return &llm.Completion{Text: "{}"}, nil
	}
	return &llm.Completion{Text: f.responses[i]}, nil
}

func extractionChunks(sourceID string, texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, text := range texts {
		out[i] = models.Chunk{
			ID:       models.ChunkID(sourceID, i, text),
			SourceID: sourceID,
			Seq:      i,
			Text:     text,
		}
	}
	return out
}

func testExtractor(client llm.Client) *EntityExtractor {
	e := NewEntityExtractor(client)
	e.sleep = func(time.Duration) {}
	return e
}

func TestExtract_ParsesAndVerifiesEntities(t *testing.T) {
	source := &models.Source{ID: "src1", Title: "Principals Oct 3",
		Date: time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC)}
	chunks := extractionChunks("src1", "We discussed Germany strategy with Acme Corp.")

	fake := &fakeLLM{responses: []string{`{
		"entities": [
			{"name": "Germany", "type": "Country", "chunk_ids": ["` + chunks[0].ID + `"]},
			{"name": "Acme Corp", "type": "Organization", "chunk_ids": ["` + chunks[0].ID + `"]},
			{"name": "Atlantis", "type": "Country", "chunk_ids": ["` + chunks[0].ID + `"]}
		],
		"decisions": [
			{"description": "Deprioritize Germany", "rationale": "budget", "status": "Approved", "chunk_ids": ["` + chunks[0].ID + `"]}
		],
		"actions": []
	}`}}

	result := testExtractor(fake).Extract(context.Background(), source, chunks)

	// "Atlantis" is not in the text and must be dropped.
	require.Len(t, result.Entities, 2)
	names := []string{result.Entities[0].Name, result.Entities[1].Name}
	assert.Contains(t, names, "Germany")
	assert.Contains(t, names, "Acme Corp")
	for _, ent := range result.Entities {
		assert.Equal(t, 1, ent.MentionCount)
		assert.Equal(t, source.Date, ent.FirstMentioned)
		assert.Equal(t, source.Date, ent.LastMentioned)
	}

	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "Deprioritize Germany", result.Decisions[0].Description)
	assert.Equal(t, models.DecisionApproved, result.Decisions[0].Status)
	assert.Equal(t, []string{chunks[0].ID}, result.Decisions[0].ChunkIDs)

	assert.Len(t, result.Mentions[chunks[0].ID], 2)
}

func TestExtract_RetriesOnParseFailureThenSucceeds(t *testing.T) {
	source := &models.Source{ID: "src1", Title: "Sync"}
	chunks := extractionChunks("src1", "Talked about the Berlin project.")

	fake := &fakeLLM{responses: []string{
		"not json at all",
		`{"entities": [{"name": "Berlin", "type": "Topic", "chunk_ids": ["` + chunks[0].ID + `"]}]}`,
	}}

	result := testExtractor(fake).Extract(context.Background(), source, chunks)
	assert.Equal(t, 2, fake.calls)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Berlin", result.Entities[0].Name)
}

func TestExtract_EmptyAfterFinalFailure(t *testing.T) {
	source := &models.Source{ID: "src1", Title: "Sync"}
	chunks := extractionChunks("src1", "Some content here.")

	fake := &fakeLLM{responses: []string{"bad", "bad", "bad", "bad"}}
	result := testExtractor(fake).Extract(context.Background(), source, chunks)

	// First attempt plus two retries.
	assert.Equal(t, 3, fake.calls)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Decisions)
	assert.Empty(t, result.Actions)
	assert.Empty(t, result.Mentions)
}

func TestExtract_DedupesByNormalizedNameAndType(t *testing.T) {
	source := &models.Source{ID: "src1", Title: "Sync"}
	chunks := extractionChunks("src1", "Germany, germany, GERMANY everywhere.")

	fake := &fakeLLM{responses: []string{`{
		"entities": [
			{"name": "Germany", "type": "Country", "chunk_ids": ["` + chunks[0].ID + `"]},
			{"name": "germany", "type": "Country", "chunk_ids": ["` + chunks[0].ID + `"]}
		]
	}`}}

	result := testExtractor(fake).Extract(context.Background(), source, chunks)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "germany", result.Entities[0].NormalizedName)
	assert.Equal(t, 1, result.Entities[0].MentionCount)
}

func TestExtract_CodeFencedResponse(t *testing.T) {
	source := &models.Source{ID: "src1", Title: "Sync"}
	chunks := extractionChunks("src1", "The Phoenix project kickoff.")

	fake := &fakeLLM{responses: []string{
		"```json\n{\"entities\": [{\"name\": \"Phoenix\", \"type\": \"Project\", \"chunk_ids\": [\"" + chunks[0].ID + "\"]}]}\n```",
	}}

	result := testExtractor(fake).Extract(context.Background(), source, chunks)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, models.EntityTypeProject, result.Entities[0].Type)
}
