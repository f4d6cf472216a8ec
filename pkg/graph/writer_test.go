package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

func TestChunkParams_PreservesOrderAndOptionalTimes(t *testing.T) {
	start := time.Date(2025, 10, 8, 14, 0, 0, 0, time.UTC)
	params := chunkParams("src1", []models.Chunk{
		{ID: "c0", Seq: 0, Text: "first", StartTime: &start},
		{ID: "c1", Seq: 1, Text: "second"},
	})

	assert.Equal(t, "src1", params["source_id"])
	chunks := params["chunks"].([]map[string]any)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c0", chunks[0]["id"])
	assert.Equal(t, 0, chunks[0]["seq"])
	assert.Equal(t, "2025-10-08T14:00:00Z", chunks[0]["start_time"])
	assert.Nil(t, chunks[1]["start_time"])
}

func TestMentionParams_FlattensSetValuedEdges(t *testing.T) {
	params := mentionParams(map[string][]string{
		"c0": {"e1", "e2"},
		"c1": {"e1"},
	})
	require.NotNil(t, params)
	assert.Len(t, params["mentions"].([]map[string]any), 3)

	assert.Nil(t, mentionParams(nil))
	assert.Nil(t, mentionParams(map[string][]string{}))
}

func TestEntityParams_DatesAsISODays(t *testing.T) {
	date := time.Date(2025, 7, 23, 0, 0, 0, 0, time.UTC)
	params := entityParams([]models.Entity{{
		ID: "e1", Name: "Germany", NormalizedName: "germany",
		Type: models.EntityTypeCountry, FirstMentioned: date, LastMentioned: date,
		MentionCount: 2,
	}})
	ents := params["entities"].([]map[string]any)
	require.Len(t, ents, 1)
	assert.Equal(t, "2025-07-23", ents[0]["first_mentioned"])
	assert.Equal(t, "Country", ents[0]["type"])
	assert.Equal(t, 2, ents[0]["mention_count"])
}

func TestStaleChunkParams_KeepsIncomingIDs(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "c-new-0", Seq: 0},
		{ID: "c-new-1", Seq: 1},
	}
	params := staleChunkParams("src-1", chunks)
	assert.Equal(t, "src-1", params["source_id"])
	assert.Equal(t, []string{"c-new-0", "c-new-1"}, params["keep_ids"])
}
