package relational

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Writer upserts source records into the relational mirror. One source
// is written inside a single transaction; re-ingest of an identical
// source only moves last_seen.
type Writer struct {
	client  *Client
	timeout time.Duration
}

// NewWriter builds the relational store writer.
func NewWriter(client *Client, timeout time.Duration) *Writer {
	return &Writer{client: client, timeout: timeout}
}

// Name implements ingest.StoreWriter.
func (w *Writer) Name() string { return "relational" }

// UpsertSource writes one source bundle in dependency order: source,
// entities, chunks, mention edges, decisions, actions, participants.
// The source row carries the raw payload; chunk rows carry the vector
// when present. OK requires the source and all chunks to commit.
func (w *Writer) UpsertSource(ctx context.Context, rec *models.SourceRecord) (*models.UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result := &models.UpsertResult{OK: true}

	tx, err := w.client.pool.Begin(ctx)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "relational.upsert", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Each record runs in its own savepoint so one rejected row does not
	// abort the rest of the batch.
	record := func(kind, id string, fn func(pgx.Tx) error) error {
		err := inSavepoint(ctx, tx, fn)
		if err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: kind, ID: id, Reason: err.Error(),
			})
		}
		return err
	}

	if err := record("source", rec.Source.ID, func(sub pgx.Tx) error {
		return upsertSource(ctx, sub, &rec.Source)
	}); err != nil {
		result.OK = false
		return result, nil
	}
	// Changed chunk text means changed chunk ids at the same (source, seq)
	// slot; superseded rows must go before the new set can land.
	if err := record("chunk", rec.Source.ID, func(sub pgx.Tx) error {
		return deleteStaleChunks(ctx, sub, rec.Source.ID, chunkIDs(rec.Chunks))
	}); err != nil {
		result.OK = false
		return result, nil
	}
	for i := range rec.Entities {
		e := &rec.Entities[i]
		_ = record("entity", e.ID, func(sub pgx.Tx) error { return upsertEntity(ctx, sub, e) })
	}
	for i := range rec.Chunks {
		c := &rec.Chunks[i]
		if err := record("chunk", c.ID, func(sub pgx.Tx) error { return upsertChunk(ctx, sub, c) }); err != nil {
			result.OK = false
		}
	}
	for chunkID, entityIDs := range rec.Mentions {
		for _, entityID := range entityIDs {
			chunkID, entityID := chunkID, entityID
			_ = record("edge", chunkID+"->"+entityID, func(sub pgx.Tx) error {
				return upsertMention(ctx, sub, chunkID, entityID)
			})
		}
	}
	for i := range rec.Decisions {
		d := &rec.Decisions[i]
		_ = record("decision", d.ID, func(sub pgx.Tx) error { return upsertDecision(ctx, sub, d) })
	}
	for i := range rec.Actions {
		a := &rec.Actions[i]
		_ = record("action", a.ID, func(sub pgx.Tx) error { return upsertAction(ctx, sub, a) })
	}
	for _, p := range rec.Participants {
		p := p
		_ = record("edge", p.Handle, func(sub pgx.Tx) error {
			return upsertParticipant(ctx, sub, rec.Source.ID, p)
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "relational.upsert", err)
	}
	return result, nil
}

func upsertSource(ctx context.Context, tx pgx.Tx, s *models.Source) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO sources (id, kind, title, date, raw_payload, confidentiality, status, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			confidentiality = EXCLUDED.confidentiality,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			last_seen = now()`,
		s.ID, string(s.Kind), s.Title, nullDate(s.Date), s.RawPayload,
		string(s.Confidentiality), string(s.Status), s.Tags)
	return err
}

// Entity merge recomputes first/last mention as min/max. The mention
// count is overwritten with the freshly recomputed per-record value so
// re-ingesting the same source leaves it unchanged.
func upsertEntity(ctx context.Context, tx pgx.Tx, e *models.Entity) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO entities (id, name, normalized_name, type, first_mentioned, last_mentioned, mention_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (normalized_name, type) DO UPDATE SET
			first_mentioned = LEAST(entities.first_mentioned, EXCLUDED.first_mentioned),
			last_mentioned = GREATEST(entities.last_mentioned, EXCLUDED.last_mentioned),
			mention_count = EXCLUDED.mention_count`,
		e.ID, e.Name, e.NormalizedName, string(e.Type),
		nullDate(e.FirstMentioned), nullDate(e.LastMentioned), e.MentionCount)
	return err
}

func chunkIDs(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].ID
	}
	return ids
}

// deleteStaleChunks removes the source's chunk rows that the incoming
// record no longer carries, edges first to satisfy the foreign keys.
// Unchanged chunks keep their rows and embeddings.
func deleteStaleChunks(ctx context.Context, tx pgx.Tx, sourceID string, keep []string) error {
	for _, stmt := range []string{
		`DELETE FROM mentions WHERE chunk_id IN
			(SELECT id FROM chunks WHERE source_id = $1 AND NOT (id = ANY($2)))`,
		`DELETE FROM decision_chunks WHERE chunk_id IN
			(SELECT id FROM chunks WHERE source_id = $1 AND NOT (id = ANY($2)))`,
		`DELETE FROM action_chunks WHERE chunk_id IN
			(SELECT id FROM chunks WHERE source_id = $1 AND NOT (id = ANY($2)))`,
		`DELETE FROM chunks WHERE source_id = $1 AND NOT (id = ANY($2))`,
	} {
		if _, err := tx.Exec(ctx, stmt, sourceID, keep); err != nil {
			return err
		}
	}
	return nil
}

func upsertChunk(ctx context.Context, tx pgx.Tx, c *models.Chunk) error {
	var embedding any
	if c.Embedding != nil {
		embedding = pgvector.NewVector(c.Embedding)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO chunks (id, source_id, seq, speakers, start_time, end_time, kind, text, importance, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			speakers = EXCLUDED.speakers,
			kind = EXCLUDED.kind,
			importance = EXCLUDED.importance,
			embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
		c.ID, c.SourceID, c.Seq, c.Speakers, c.StartTime, c.EndTime,
		string(c.Kind), c.Text, c.Importance, embedding)
	return err
}

func upsertMention(ctx context.Context, tx pgx.Tx, chunkID, entityID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO mentions (chunk_id, entity_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		chunkID, entityID)
	return err
}

func upsertDecision(ctx context.Context, tx pgx.Tx, d *models.Decision) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO decisions (id, description, rationale, date_made, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			rationale = EXCLUDED.rationale,
			status = EXCLUDED.status`,
		d.ID, d.Description, d.Rationale, nullDate(d.DateMade), string(d.Status))
	if err != nil {
		return err
	}
	for _, chunkID := range d.ChunkIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO decision_chunks (decision_id, chunk_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			d.ID, chunkID); err != nil {
			return err
		}
	}
	return nil
}

func upsertAction(ctx context.Context, tx pgx.Tx, a *models.Action) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO actions (id, description, owner_entity_id, priority, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			owner_entity_id = COALESCE(NULLIF(EXCLUDED.owner_entity_id, ''), actions.owner_entity_id),
			priority = EXCLUDED.priority,
			status = EXCLUDED.status`,
		a.ID, a.Description, a.OwnerEntityID, a.Priority, string(a.Status))
	if err != nil {
		return err
	}
	for _, chunkID := range a.ChunkIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO action_chunks (action_id, chunk_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			a.ID, chunkID); err != nil {
			return err
		}
	}
	return nil
}

func upsertParticipant(ctx context.Context, tx pgx.Tx, sourceID string, p models.Participant) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO participants (source_id, handle, message_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id, handle) DO UPDATE SET
			message_count = EXCLUDED.message_count`,
		sourceID, p.Handle, p.MessageCount)
	return err
}

// inSavepoint runs fn in a nested transaction; pgx issues SAVEPOINT /
// RELEASE under the hood.
func inSavepoint(ctx context.Context, tx pgx.Tx, fn func(pgx.Tx) error) error {
	sub, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sub); err != nil {
		_ = sub.Rollback(ctx)
		return err
	}
	return sub.Commit(ctx)
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
