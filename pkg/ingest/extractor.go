package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Extraction retry policy: at most 2 retries after the first attempt,
// exponential backoff with base 2s and 25% jitter.
const (
	extractMaxRetries  = 2
	extractBackoffBase = 2 * time.Second
	extractJitter      = 0.25
)

// windowCharBudget bounds how many chunk characters are packed into one
// extraction call.
const windowCharBudget = 12000

const extractorSystemPrompt = `You extract structured records from organizational text.
Given numbered chunks of a source, return strict JSON with this shape:
{
  "entities":  [{"name": "...", "type": "Person|Organization|Country|Topic|Project", "chunk_ids": ["..."]}],
  "decisions": [{"description": "...", "rationale": "...", "status": "Proposed|Approved|Implemented|Reversed", "chunk_ids": ["..."]}],
  "actions":   [{"description": "...", "owner": "...", "priority": "...", "status": "NotStarted|InProgress|Blocked|Completed", "chunk_ids": ["..."]}]
}
Only report entities literally present in the text. Casual filler such as
weather talk or personal chitchat is not an entity. Return JSON only, no
commentary.`

// ExtractionResult is the structured output for one source.
type ExtractionResult struct {
	Entities  []models.Entity
	Decisions []models.Decision
	Actions   []models.Action
	// Mentions maps chunk id to mentioned entity ids.
	Mentions map[string][]string
}

// EntityExtractor calls the LLM with a structured extraction prompt and
// parses a strict JSON response.
type EntityExtractor struct {
	client llm.Client
	logger *slog.Logger

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewEntityExtractor builds an extractor on the given completion client.
func NewEntityExtractor(client llm.Client) *EntityExtractor {
	return &EntityExtractor{
		client: client,
		logger: slog.Default().With("component", "extractor"),
		sleep:  time.Sleep,
	}
}

// Extract returns entities, decisions, actions, and mention links for
// the chunk set. Extraction failure is not fatal: after the final retry
// the result is empty and the source is still ingested.
func (e *EntityExtractor) Extract(ctx context.Context, source *models.Source, chunks []models.Chunk) *ExtractionResult {
	result := &ExtractionResult{Mentions: make(map[string][]string)}
	entityIndex := make(map[string]*models.Entity)
	mentionSets := make(map[string]map[string]bool)

	for _, window := range packWindows(chunks, windowCharBudget) {
		raw, ok := e.extractWindow(ctx, source, window)
		if !ok {
			continue
		}
		e.mergeWindow(source, window, raw, result, entityIndex, mentionSets)
	}

	for chunkID, set := range mentionSets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		result.Mentions[chunkID] = ids
	}
	return result
}

// extractWindow runs one LLM call with the retry policy. ok=false means
// all attempts failed; the caller continues with the other windows.
func (e *EntityExtractor) extractWindow(ctx context.Context, source *models.Source, window []models.Chunk) (*rawExtraction, bool) {
	prompt := buildExtractionPrompt(source, window)
	for attempt := 0; ; attempt++ {
		raw, err := e.tryExtract(ctx, source.ID, prompt)
		if err == nil {
			return raw, true
		}
		if attempt >= extractMaxRetries || ctx.Err() != nil {
			e.logger.Warn("Extraction failed, continuing without entities",
				"source_id", source.ID, "attempts", attempt+1, "error", err)
			return nil, false
		}
		e.logger.Info("Extraction attempt failed, retrying",
			"source_id", source.ID, "attempt", attempt+1, "error", err)
		e.sleep(backoffDelay(attempt))
	}
}

func (e *EntityExtractor) tryExtract(ctx context.Context, sessionID, prompt string) (*rawExtraction, error) {
	completion, err := e.client.Generate(ctx, &llm.GenerateInput{
		SessionID: sessionID,
		System:    extractorSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	raw := &rawExtraction{}
	if err := json.Unmarshal([]byte(stripCodeFence(completion.Text)), raw); err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "ingest.extract", err)
	}
	return raw, nil
}

// mergeWindow folds one window's raw output into the accumulated result,
// verifying each entity against the window text and deduplicating by
// (normalized name, type).
func (e *EntityExtractor) mergeWindow(source *models.Source, window []models.Chunk, raw *rawExtraction,
	result *ExtractionResult, entityIndex map[string]*models.Entity, mentionSets map[string]map[string]bool) {

	windowText := strings.ToLower(windowText(window))
	chunkIDs := make(map[string]bool, len(window))
	for _, ch := range window {
		chunkIDs[ch.ID] = true
	}

	for _, re := range raw.Entities {
		name := strings.TrimSpace(re.Name)
		if name == "" || !strings.Contains(windowText, strings.ToLower(name)) {
			// Not textually present in the window: invented, drop it.
			continue
		}
		typ := parseEntityType(re.Type)
		norm := models.NormalizeEntityName(name)
		if norm == "" {
			continue
		}
		id := models.EntityID(norm, typ)
		ent, seen := entityIndex[id]
		if !seen {
			ent = &models.Entity{
				ID:             id,
				Name:           name,
				NormalizedName: norm,
				Type:           typ,
				FirstMentioned: source.Date,
				LastMentioned:  source.Date,
			}
			entityIndex[id] = ent
		}
		for _, chunkID := range re.ChunkIDs {
			if !chunkIDs[chunkID] {
				continue
			}
			if mentionSets[chunkID] == nil {
				mentionSets[chunkID] = make(map[string]bool)
			}
			if !mentionSets[chunkID][id] {
				mentionSets[chunkID][id] = true
				ent.MentionCount++
			}
		}
	}

	// Rebuild the entity slice from the index to reflect merged counts.
	result.Entities = result.Entities[:0]
	ids := make([]string, 0, len(entityIndex))
	for id := range entityIndex {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		result.Entities = append(result.Entities, *entityIndex[id])
	}

	for _, rd := range raw.Decisions {
		desc := strings.TrimSpace(rd.Description)
		if desc == "" {
			continue
		}
		result.Decisions = append(result.Decisions, models.Decision{
			ID:          recordID(source.ID, "decision", desc),
			Description: desc,
			Rationale:   strings.TrimSpace(rd.Rationale),
			DateMade:    source.Date,
			Status:      parseDecisionStatus(rd.Status),
			ChunkIDs:    keepKnown(rd.ChunkIDs, chunkIDs),
		})
	}
	for _, ra := range raw.Actions {
		desc := strings.TrimSpace(ra.Description)
		if desc == "" {
			continue
		}
		action := models.Action{
			ID:          recordID(source.ID, "action", desc),
			Description: desc,
			Priority:    strings.TrimSpace(ra.Priority),
			Status:      parseActionStatus(ra.Status),
			ChunkIDs:    keepKnown(ra.ChunkIDs, chunkIDs),
		}
		if owner := strings.TrimSpace(ra.Owner); owner != "" {
			norm := models.NormalizeEntityName(owner)
			if ent, ok := entityIndex[models.EntityID(norm, models.EntityTypePerson)]; ok {
				action.OwnerEntityID = ent.ID
			}
		}
		result.Actions = append(result.Actions, action)
	}
}

// rawExtraction mirrors the JSON contract with the model.
type rawExtraction struct {
	Entities []struct {
		Name     string   `json:"name"`
		Type     string   `json:"type"`
		ChunkIDs []string `json:"chunk_ids"`
	} `json:"entities"`
	Decisions []struct {
		Description string   `json:"description"`
		Rationale   string   `json:"rationale"`
		Status      string   `json:"status"`
		ChunkIDs    []string `json:"chunk_ids"`
	} `json:"decisions"`
	Actions []struct {
		Description string   `json:"description"`
		Owner       string   `json:"owner"`
		Priority    string   `json:"priority"`
		Status      string   `json:"status"`
		ChunkIDs    []string `json:"chunk_ids"`
	} `json:"actions"`
}

// packWindows greedily packs consecutive chunks under the char budget.
func packWindows(chunks []models.Chunk, budget int) [][]models.Chunk {
	var out [][]models.Chunk
	var cur []models.Chunk
	size := 0
	for _, ch := range chunks {
		if len(cur) > 0 && size+len(ch.Text) > budget {
			out = append(out, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, ch)
		size += len(ch.Text)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func buildExtractionPrompt(source *models.Source, window []models.Chunk) string {
	var b strings.Builder
	b.WriteString("Source: ")
	b.WriteString(source.Title)
	b.WriteString(" (")
	b.WriteString(string(source.Kind))
	if !source.Date.IsZero() {
		b.WriteString(", ")
		b.WriteString(source.Date.Format("2006-01-02"))
	}
	b.WriteString(")\n\n")
	for _, ch := range window {
		b.WriteString("[chunk ")
		b.WriteString(ch.ID)
		b.WriteString("]\n")
		b.WriteString(ch.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func windowText(window []models.Chunk) string {
	var b strings.Builder
	for _, ch := range window {
		b.WriteString(ch.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func backoffDelay(attempt int) time.Duration {
	base := float64(extractBackoffBase) * float64(int(1)<<attempt)
	jitter := 1 + extractJitter*(2*rand.Float64()-1)
	return time.Duration(base * jitter)
}

func recordID(sourceID, kind, description string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + kind + "|" + description))
	return hex.EncodeToString(sum[:])[:16]
}

func keepKnown(ids []string, known map[string]bool) []string {
	var out []string
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}

func parseEntityType(s string) models.EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person":
		return models.EntityTypePerson
	case "organization", "org":
		return models.EntityTypeOrganization
	case "country":
		return models.EntityTypeCountry
	case "project":
		return models.EntityTypeProject
	default:
		return models.EntityTypeTopic
	}
}

func parseDecisionStatus(s string) models.DecisionStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved":
		return models.DecisionApproved
	case "implemented":
		return models.DecisionImplemented
	case "reversed":
		return models.DecisionReversed
	default:
		return models.DecisionProposed
	}
}

func parseActionStatus(s string) models.ActionStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inprogress", "in_progress", "in progress":
		return models.ActionInProgress
	case "blocked":
		return models.ActionBlocked
	case "completed", "done":
		return models.ActionCompleted
	default:
		return models.ActionNotStarted
	}
}
