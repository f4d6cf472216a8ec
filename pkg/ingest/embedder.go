package ingest

import (
	"context"
	"log/slog"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// ChunkEmbedder batch-embeds chunk texts. Embedding failure is
// degradation, not an ingest error: failed chunks keep a nil embedding
// and keyword retrieval still works.
type ChunkEmbedder struct {
	client llm.EmbeddingClient
	dim    int
	batch  int
	logger *slog.Logger
}

// NewChunkEmbedder builds an embedder from the ingest configuration.
func NewChunkEmbedder(client llm.EmbeddingClient, cfg *config.IngestConfig) *ChunkEmbedder {
	return &ChunkEmbedder{
		client: client,
		dim:    cfg.EmbeddingDim,
		batch:  cfg.EmbeddingBatch,
		logger: slog.Default().With("component", "embedder"),
	}
}

// EmbedChunks fills in embeddings in place, batch by batch. A failed
// batch (rate-limit exhaustion, wrong dimension) leaves its chunks
// without embeddings and the remaining batches still run. The returned
// count is how many chunks received a vector.
func (e *ChunkEmbedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) int {
	embedded := 0
	for start := 0; start < len(chunks); start += e.batch {
		end := start + e.batch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}

		var vectors [][]float32
		err := llm.WithRetry(ctx, func() error {
			var embedErr error
			vectors, embedErr = e.client.Embed(ctx, texts, e.dim)
			return embedErr
		})
		if err != nil {
			e.logger.Warn("Embedding batch failed, chunks keep null embeddings",
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}

		for i := range batch {
			if len(vectors[i]) != e.dim {
				// Dimension mismatch aborts this batch, not the ingest.
				e.logger.Error("Embedding dimension mismatch, dropping batch",
					"batch_start", start, "got", len(vectors[i]), "want", e.dim)
				for j := range batch {
					chunks[start+j].Embedding = nil
				}
				embedded -= i
				break
			}
			chunks[start+i].Embedding = vectors[i]
			embedded++
		}
	}
	return embedded
}
