package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

// StoreWriter is the upsert contract both durable stores implement.
type StoreWriter interface {
	Name() string
	UpsertSource(ctx context.Context, rec *models.SourceRecord) (*models.UpsertResult, error)
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	SourceID   string
	Succeeded  bool
	ChunkCount int
	// Partial is set when only some of the enabled writers accepted the
	// source; the run still counts as succeeded.
	Partial bool
	// FailedWriters names the writers that rejected or errored.
	FailedWriters []string
}

// Pipeline drives one source end-to-end: parse, chunk, extract, embed,
// classify, dual-write. It never retries a whole source; the monitor
// re-queues failed files on the next scan.
type Pipeline struct {
	chunker   *Chunker
	extractor *EntityExtractor
	embedder  *ChunkEmbedder
	writers   []StoreWriter
	events    *telemetry.Log
	logger    *slog.Logger
}

// NewPipeline wires the ingestion stages. writers must hold only the
// enabled stores; at least one is required.
func NewPipeline(chunker *Chunker, extractor *EntityExtractor, embedder *ChunkEmbedder,
	writers []StoreWriter, events *telemetry.Log) (*Pipeline, error) {
	if len(writers) == 0 {
		return nil, fmt.Errorf("at least one store writer is required")
	}
	return &Pipeline{
		chunker:   chunker,
		extractor: extractor,
		embedder:  embedder,
		writers:   writers,
		events:    events,
		logger:    slog.Default().With("component", "pipeline"),
	}, nil
}

// Run ingests one artifact. The error is non-nil only for terminal
// failures (BadSource, zero chunks, all writers failed); the Outcome is
// always returned for telemetry and ledger bookkeeping.
func (p *Pipeline) Run(ctx context.Context, artifact *Artifact) (*Outcome, error) {
	sourceID := SourceIDFor(artifact.FileID)
	out := &Outcome{SourceID: sourceID}
	log := p.logger.With("source_id", sourceID, "file", artifact.Name)

	var art *ParsedArtifact
	err := p.timed(sourceID, "parse", func() error {
		var parseErr error
		art, parseErr = ParseArtifact(artifact)
		return parseErr
	})
	if err != nil {
		return out, err
	}

	var chunks []models.Chunk
	err = p.timed(sourceID, "chunk", func() error {
		chunks = p.chunker.Chunk(sourceID, art)
		if len(chunks) == 0 {
			return models.Faultf(models.FaultBadSource, "ingest.chunk",
				"source produced zero chunks")
		}
		return nil
	})
	if err != nil {
		return out, err
	}
	out.ChunkCount = len(chunks)

	source := &models.Source{
		ID:         sourceID,
		Kind:       art.Kind,
		Title:      art.Title,
		Date:       art.Date,
		RawPayload: art.Text,
	}

	var extraction *ExtractionResult
	_ = p.timed(sourceID, "extract", func() error {
		extraction = p.extractor.Extract(ctx, source, chunks)
		return nil
	})

	_ = p.timed(sourceID, "embed", func() error {
		n := p.embedder.EmbedChunks(ctx, chunks)
		log.Info("Embedded chunks", "embedded", n, "total", len(chunks))
		return nil
	})

	_ = p.timed(sourceID, "classify", func() error {
		class := Classify(art)
		source.Confidentiality = class.Level
		source.Status = class.Status
		source.Tags = class.Tags
		return nil
	})

	record := &models.SourceRecord{
		Source:       *source,
		Chunks:       chunks,
		Entities:     extraction.Entities,
		Decisions:    extraction.Decisions,
		Actions:      extraction.Actions,
		Participants: art.Participants,
		Mentions:     extraction.Mentions,
	}

	accepted := 0
	for _, w := range p.writers {
		writeErr := p.timed(sourceID, "write_"+w.Name(), func() error {
			res, err := w.UpsertSource(ctx, record)
			if err != nil {
				return err
			}
			if !res.OK {
				return models.Faultf(models.FaultPermanentExternal, "ingest.write",
					"%s rejected %d subrecords", w.Name(), len(res.FailedSubrecords))
			}
			return nil
		})
		if writeErr != nil {
			log.Error("Store write failed", "store", w.Name(), "error", writeErr)
			out.FailedWriters = append(out.FailedWriters, w.Name())
			continue
		}
		accepted++
	}

	// Partial-success rule: succeeded iff at least one enabled writer
	// accepted the source and its chunks.
	switch {
	case accepted == 0:
		return out, models.Faultf(models.FaultPermanentExternal, "ingest.run",
			"all %d enabled writers failed", len(p.writers))
	case accepted < len(p.writers):
		out.Succeeded = true
		out.Partial = true
		log.Warn("Source ingested on a subset of stores",
			"accepted", accepted, "enabled", len(p.writers))
		p.events.Append(telemetry.Event{
			SessionID: sourceID,
			Event:     telemetry.EventError,
			Outcome:   telemetry.OutcomeRetried,
			Payload: map[string]any{
				"kind":           string(models.FaultPartialSuccess),
				"failed_writers": out.FailedWriters,
			},
		})
	default:
		out.Succeeded = true
	}

	log.Info("Source ingested",
		"chunks", out.ChunkCount,
		"entities", len(record.Entities),
		"decisions", len(record.Decisions),
		"actions", len(record.Actions),
		"partial", out.Partial)
	return out, nil
}

// timed runs one pipeline step and appends an ingest_step event with
// its duration and outcome.
func (p *Pipeline) timed(sourceID, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeFailed
	}
	p.events.Append(telemetry.Event{
		SessionID:  sourceID,
		Event:      telemetry.EventIngestStep,
		DurationMS: time.Since(start).Milliseconds(),
		Outcome:    outcome,
		Payload:    map[string]any{"step": step},
	})
	return err
}
