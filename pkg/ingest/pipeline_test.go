package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

type fakeWriter struct {
	name    string
	fail    bool
	reject  bool
	records []*models.SourceRecord
}

func (w *fakeWriter) Name() string { return w.name }

func (w *fakeWriter) UpsertSource(_ context.Context, rec *models.SourceRecord) (*models.UpsertResult, error) {
	if w.fail {
		return nil, errors.New("store down")
	}
	w.records = append(w.records, rec)
	if w.reject {
		return &models.UpsertResult{OK: false, FailedSubrecords: []models.FailedSubrecord{
			{Kind: "chunk", ID: "x", Reason: "constraint"},
		}}, nil
	}
	return &models.UpsertResult{OK: true}, nil
}

type fakeEmbedClient struct {
	fail bool
	dim  int
}

func (f *fakeEmbedClient) Embed(_ context.Context, texts []string, dim int) ([][]float32, error) {
	if f.fail {
		return nil, models.Faultf(models.FaultPermanentExternal, "embedding.embed", "down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func testPipeline(t *testing.T, writers []StoreWriter, embedFail bool) *Pipeline {
	t.Helper()
	cfg := &config.IngestConfig{
		ChunkMinChars: 500, ChunkMaxChars: 1500, ChunkCeiling: 2000,
		EmbeddingDim: 8, EmbeddingBatch: 2,
	}
	events, err := telemetry.NewLog(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	p, err := NewPipeline(
		NewChunker(cfg),
		testExtractor(&fakeLLM{responses: []string{"{}"}}),
		NewChunkEmbedder(&fakeEmbedClient{fail: embedFail}, cfg),
		writers,
		events,
	)
	require.NoError(t, err)
	return p
}

func docArtifact() *Artifact {
	return &Artifact{
		FileID: "file-1",
		Name:   "strategy-2025-10-08.md",
		Data:   []byte("First paragraph of the memo.\n\nSecond paragraph of the memo."),
	}
}

func TestPipeline_BothWritersSucceed(t *testing.T) {
	graph := &fakeWriter{name: "graph"}
	relational := &fakeWriter{name: "relational"}
	p := testPipeline(t, []StoreWriter{graph, relational}, false)

	out, err := p.Run(context.Background(), docArtifact())
	require.NoError(t, err)

	assert.True(t, out.Succeeded)
	assert.False(t, out.Partial)
	assert.Equal(t, SourceIDFor("file-1"), out.SourceID)
	assert.Equal(t, 1, out.ChunkCount)
	require.Len(t, graph.records, 1)
	require.Len(t, relational.records, 1)
	assert.Equal(t, graph.records[0].Source.ID, relational.records[0].Source.ID)

	// Zero entities with non-empty chunks is still a success.
	assert.Empty(t, graph.records[0].Entities)
}

func TestPipeline_PartialSuccess(t *testing.T) {
	graph := &fakeWriter{name: "graph", fail: true}
	relational := &fakeWriter{name: "relational"}
	p := testPipeline(t, []StoreWriter{graph, relational}, false)

	out, err := p.Run(context.Background(), docArtifact())
	require.NoError(t, err)

	assert.True(t, out.Succeeded)
	assert.True(t, out.Partial)
	assert.Equal(t, []string{"graph"}, out.FailedWriters)
}

func TestPipeline_AllWritersFailed(t *testing.T) {
	p := testPipeline(t, []StoreWriter{
		&fakeWriter{name: "graph", fail: true},
		&fakeWriter{name: "relational", reject: true},
	}, false)

	out, err := p.Run(context.Background(), docArtifact())
	require.Error(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, models.FaultPermanentExternal, models.KindOf(err))
}

func TestPipeline_BadSourceIsTerminal(t *testing.T) {
	p := testPipeline(t, []StoreWriter{&fakeWriter{name: "graph"}}, false)

	_, err := p.Run(context.Background(), &Artifact{
		FileID: "file-2", Name: "broken.txt", Data: []byte{0xff, 0xfe},
	})
	require.Error(t, err)
	assert.Equal(t, models.FaultBadSource, models.KindOf(err))
}

func TestPipeline_EmbeddingOutageStillSucceeds(t *testing.T) {
	relational := &fakeWriter{name: "relational"}
	p := testPipeline(t, []StoreWriter{relational}, true)

	out, err := p.Run(context.Background(), docArtifact())
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	for _, ch := range relational.records[0].Chunks {
		assert.Nil(t, ch.Embedding)
	}
}

func TestPipeline_EmbeddingsHaveConfiguredDimension(t *testing.T) {
	relational := &fakeWriter{name: "relational"}
	p := testPipeline(t, []StoreWriter{relational}, false)

	_, err := p.Run(context.Background(), docArtifact())
	require.NoError(t, err)

	for _, ch := range relational.records[0].Chunks {
		assert.Len(t, ch.Embedding, 8)
	}
}

func TestPipeline_RequiresAtLeastOneWriter(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil, nil, nil)
	require.Error(t, err)
}
