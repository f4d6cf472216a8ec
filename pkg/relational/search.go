package relational

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// SearchResult is one retrieval hit, joined with its source so answers
// can cite title and date.
type SearchResult struct {
	ChunkID     string
	SourceID    string
	SourceTitle string
	SourceDate  time.Time
	SourceKind  string
	// Confidentiality carries the source classification so answers can
	// flag confidential material.
	Confidentiality string
	Text            string
	Score           float64
}

// SearchContent runs full-text search over chunk text, optionally
// filtered by source kind. Results are ranked by ts_rank.
func (c *Client) SearchContent(ctx context.Context, kind, term string, limit int) ([]SearchResult, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT ch.id, s.id, s.title, COALESCE(s.date, '0001-01-01'::date), s.kind,
		       s.confidentiality, ch.text,
		       ts_rank(to_tsvector('english', ch.text), plainto_tsquery('english', $1)) AS score
		FROM chunks ch
		JOIN sources s ON s.id = ch.source_id
		WHERE to_tsvector('english', ch.text) @@ plainto_tsquery('english', $1)
		  AND ($2 = '' OR s.kind = $2)
		ORDER BY score DESC
		LIMIT $3`,
		term, kind, limit)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "relational.search", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// SearchByVector runs cosine-distance nearest-neighbor search over the
// embedding column. Chunks without embeddings are never returned.
func (c *Client) SearchByVector(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT ch.id, s.id, s.title, COALESCE(s.date, '0001-01-01'::date), s.kind,
		       s.confidentiality, ch.text,
		       1 - (ch.embedding <=> $1) AS score
		FROM chunks ch
		JOIN sources s ON s.id = ch.source_id
		WHERE ch.embedding IS NOT NULL
		ORDER BY ch.embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "relational.search", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanResults(rows pgxRows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.SourceID, &r.SourceTitle, &r.SourceDate,
			&r.SourceKind, &r.Confidentiality, &r.Text, &r.Score); err != nil {
			return nil, models.NewFault(models.FaultInternalInvariant, "relational.search", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "relational.search", err)
	}
	return out, nil
}
