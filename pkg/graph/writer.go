package graph

import (
	"context"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Writer upserts source records into the property graph. All merge
// keys are the deterministic ids from the domain model, so re-ingesting
// an identical source is a no-op beyond last_seen updates.
type Writer struct {
	client *Client
}

// NewWriter builds the graph-side store writer.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// Name implements ingest.StoreWriter.
func (w *Writer) Name() string { return "graph" }

// UpsertSource writes one source bundle. Writes run in dependency
// order: source, entities, chunks and their edges, mentions, decisions,
// actions, participants. Partial rejections are reported, not thrown;
// OK requires the source and all chunks to be accepted.
func (w *Writer) UpsertSource(ctx context.Context, rec *models.SourceRecord) (*models.UpsertResult, error) {
	result := &models.UpsertResult{OK: true}

	if err := w.client.write(ctx, upsertSourceCypher, sourceParams(&rec.Source)); err != nil {
		result.OK = false
		result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
			Kind: "source", ID: rec.Source.ID, Reason: err.Error(),
		})
		// Nothing below can attach without the source node.
		return result, nil
	}

	if len(rec.Entities) > 0 {
		if err := w.client.write(ctx, upsertEntitiesCypher, entityParams(rec.Entities)); err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: "entity", Reason: err.Error(),
			})
		}
	}

	// Changed chunk text means new chunk ids; detach the superseded
	// nodes so the source never carries two generations of its content.
	if err := w.client.write(ctx, deleteStaleChunksCypher, staleChunkParams(rec.Source.ID, rec.Chunks)); err != nil {
		result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
			Kind: "chunk", Reason: err.Error(),
		})
	}

	if err := w.client.write(ctx, upsertChunksCypher, chunkParams(rec.Source.ID, rec.Chunks)); err != nil {
		result.OK = false
		result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
			Kind: "chunk", Reason: err.Error(),
		})
		return result, nil
	}

	if params := mentionParams(rec.Mentions); params != nil {
		if err := w.client.write(ctx, upsertMentionsCypher, params); err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: "edge", Reason: err.Error(),
			})
		}
	}

	if len(rec.Decisions) > 0 {
		if err := w.client.write(ctx, upsertDecisionsCypher, decisionParams(rec.Decisions)); err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: "decision", Reason: err.Error(),
			})
		}
	}

	if len(rec.Actions) > 0 {
		if err := w.client.write(ctx, upsertActionsCypher, actionParams(rec.Actions)); err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: "action", Reason: err.Error(),
			})
		}
	}

	if len(rec.Participants) > 0 {
		if err := w.client.write(ctx, upsertParticipantsCypher,
			participantParams(rec.Source.ID, rec.Participants)); err != nil {
			result.FailedSubrecords = append(result.FailedSubrecords, models.FailedSubrecord{
				Kind: "edge", Reason: err.Error(),
			})
		}
	}

	return result, nil
}

const upsertSourceCypher = `
MERGE (s:Source {id: $id})
ON CREATE SET s.kind = $kind, s.title = $title, s.date = $date,
              s.confidentiality = $confidentiality, s.status = $status,
              s.tags = $tags, s.first_seen = datetime()
SET s.last_seen = datetime(),
    s.confidentiality = $confidentiality, s.status = $status, s.tags = $tags`

// Entity merge recomputes first/last mention as min/max. The mention
// count is overwritten with the recomputed per-record value so
// re-ingesting the same source leaves it unchanged.
const upsertEntitiesCypher = `
UNWIND $entities AS ent
MERGE (e:Entity {id: ent.id})
ON CREATE SET e.name = ent.name, e.normalized_name = ent.normalized_name,
              e.type = ent.type, e.first_mentioned = ent.first_mentioned,
              e.last_mentioned = ent.last_mentioned, e.mention_count = ent.mention_count
ON MATCH SET e.first_mentioned = CASE WHEN ent.first_mentioned < e.first_mentioned
                                      THEN ent.first_mentioned ELSE e.first_mentioned END,
             e.last_mentioned = CASE WHEN ent.last_mentioned > e.last_mentioned
                                     THEN ent.last_mentioned ELSE e.last_mentioned END,
             e.mention_count = ent.mention_count`

const deleteStaleChunksCypher = `
MATCH (s:Source {id: $source_id})<-[:PART_OF]-(c:Chunk)
WHERE NOT c.id IN $keep_ids
DETACH DELETE c`

const upsertChunksCypher = `
MATCH (s:Source {id: $source_id})
UNWIND $chunks AS ch
MERGE (c:Chunk {id: ch.id})
SET c.seq = ch.seq, c.speakers = ch.speakers, c.kind = ch.kind,
    c.text = ch.text, c.importance = ch.importance,
    c.start_time = ch.start_time, c.end_time = ch.end_time
MERGE (c)-[:PART_OF]->(s)
WITH c ORDER BY c.seq
WITH collect(c) AS chunks
UNWIND range(0, size(chunks) - 2) AS i
WITH chunks[i] AS a, chunks[i + 1] AS b
MERGE (a)-[:NEXT]->(b)`

const upsertMentionsCypher = `
UNWIND $mentions AS m
MATCH (c:Chunk {id: m.chunk_id})
MATCH (e:Entity {id: m.entity_id})
MERGE (c)-[:MENTIONS]->(e)`

const upsertDecisionsCypher = `
UNWIND $decisions AS d
MERGE (dec:Decision {id: d.id})
SET dec.description = d.description, dec.rationale = d.rationale,
    dec.date_made = d.date_made, dec.status = d.status
WITH d, dec
UNWIND d.chunk_ids AS chunkID
MATCH (c:Chunk {id: chunkID})
MERGE (c)-[:RESULTED_IN]->(dec)`

const upsertActionsCypher = `
UNWIND $actions AS a
MERGE (act:Action {id: a.id})
SET act.description = a.description, act.priority = a.priority,
    act.status = a.status, act.owner_entity_id = a.owner_entity_id
WITH a, act
UNWIND a.chunk_ids AS chunkID
MATCH (c:Chunk {id: chunkID})
MERGE (c)-[:RESULTED_IN]->(act)`

const upsertParticipantsCypher = `
MATCH (s:Source {id: $source_id})
UNWIND $participants AS p
MERGE (pt:Participant {handle: p.handle})
SET pt.message_count = p.message_count
MERGE (pt)-[:PARTICIPATES_IN]->(s)`

func sourceParams(s *models.Source) map[string]any {
	return map[string]any{
		"id":              s.ID,
		"kind":            string(s.Kind),
		"title":           s.Title,
		"date":            s.Date.Format("2006-01-02"),
		"confidentiality": string(s.Confidentiality),
		"status":          string(s.Status),
		"tags":            s.Tags,
	}
}

func entityParams(entities []models.Entity) map[string]any {
	items := make([]map[string]any, len(entities))
	for i, e := range entities {
		items[i] = map[string]any{
			"id":              e.ID,
			"name":            e.Name,
			"normalized_name": e.NormalizedName,
			"type":            string(e.Type),
			"first_mentioned": e.FirstMentioned.Format("2006-01-02"),
			"last_mentioned":  e.LastMentioned.Format("2006-01-02"),
			"mention_count":   e.MentionCount,
		}
	}
	return map[string]any{"entities": items}
}

func staleChunkParams(sourceID string, chunks []models.Chunk) map[string]any {
	keep := make([]string, len(chunks))
	for i := range chunks {
		keep[i] = chunks[i].ID
	}
	return map[string]any{"source_id": sourceID, "keep_ids": keep}
}

func chunkParams(sourceID string, chunks []models.Chunk) map[string]any {
	items := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		items[i] = map[string]any{
			"id":         c.ID,
			"seq":        c.Seq,
			"speakers":   c.Speakers,
			"kind":       string(c.Kind),
			"text":       c.Text,
			"importance": c.Importance,
			"start_time": formatOptionalTime(c.StartTime),
			"end_time":   formatOptionalTime(c.EndTime),
		}
	}
	return map[string]any{"source_id": sourceID, "chunks": items}
}

func mentionParams(mentions map[string][]string) map[string]any {
	var items []map[string]any
	for chunkID, entityIDs := range mentions {
		for _, entityID := range entityIDs {
			items = append(items, map[string]any{
				"chunk_id":  chunkID,
				"entity_id": entityID,
			})
		}
	}
	if len(items) == 0 {
		return nil
	}
	return map[string]any{"mentions": items}
}

func decisionParams(decisions []models.Decision) map[string]any {
	items := make([]map[string]any, len(decisions))
	for i, d := range decisions {
		items[i] = map[string]any{
			"id":          d.ID,
			"description": d.Description,
			"rationale":   d.Rationale,
			"date_made":   d.DateMade.Format("2006-01-02"),
			"status":      string(d.Status),
			"chunk_ids":   d.ChunkIDs,
		}
	}
	return map[string]any{"decisions": items}
}

func actionParams(actions []models.Action) map[string]any {
	items := make([]map[string]any, len(actions))
	for i, a := range actions {
		items[i] = map[string]any{
			"id":              a.ID,
			"description":     a.Description,
			"priority":        a.Priority,
			"status":          string(a.Status),
			"owner_entity_id": a.OwnerEntityID,
			"chunk_ids":       a.ChunkIDs,
		}
	}
	return map[string]any{"actions": items}
}

func participantParams(sourceID string, participants []models.Participant) map[string]any {
	items := make([]map[string]any, len(participants))
	for i, p := range participants {
		items[i] = map[string]any{
			"handle":        p.Handle,
			"message_count": p.MessageCount,
		}
	}
	return map[string]any{"source_id": sourceID, "participants": items}
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
