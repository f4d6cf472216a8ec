package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/chronicle-ai/chronicle/pkg/llm"
	"github.com/chronicle-ai/chronicle/pkg/models"
	"github.com/chronicle-ai/chronicle/pkg/relational"
	"github.com/chronicle-ai/chronicle/pkg/telemetry"
)

// queryRetryCap bounds failed graph/search tool calls per delegation.
// After the cap the agent returns a failure summary instead of looping.
const queryRetryCap = 3

// toolResultLimit bounds the serialized tool payload fed back to the
// model so a broad query cannot blow up the sub-agent's context.
const toolResultLimit = 8000

// analysisInputLimit bounds the data blob handed to the analysis
// sub-agent, roughly 4,000 tokens.
const analysisInputLimit = 16000

// GraphQuerier runs read queries against the property graph.
type GraphQuerier interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// ContentSearcher runs full-text retrieval against the relational store.
type ContentSearcher interface {
	SearchContent(ctx context.Context, kind, term string, limit int) ([]relational.SearchResult, error)
}

// SubAgentResult is the only thing a delegation returns to the
// supervisor: a bounded summary plus the citations gathered from tool
// results along the way.
type SubAgentResult struct {
	Summary   string
	Citations []models.Citation
}

// QuerySubAgent executes one retrieval task in a fresh context seeded
// only with its system prompt and the task description.
type QuerySubAgent struct {
	llm    llm.Client
	graph  GraphQuerier
	search ContentSearcher
	schema string
	events *telemetry.Log
	logger *slog.Logger
}

// NewQuerySubAgent builds the retrieval sub-agent.
func NewQuerySubAgent(client llm.Client, graph GraphQuerier, search ContentSearcher, schema string, events *telemetry.Log) *QuerySubAgent {
	return &QuerySubAgent{
		llm:    client,
		graph:  graph,
		search: search,
		schema: schema,
		events: events,
		logger: slog.Default().With("component", "query_subagent"),
	}
}

var querySubAgentTools = []llm.ToolDefinition{
	{
		Name:        "schema_inspect",
		Description: "Return the knowledge-graph schema: node labels, relationships, and canonical query patterns.",
		ParametersSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "execute_graph_query",
		Description: "Run a Cypher read query against the knowledge graph and return the rows.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Cypher read query"},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "search_content",
		Description: "Full-text search over chunk text. Returns matching chunks with source title and date.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind":  map[string]any{"type": "string", "description": "Optional source kind filter: Meeting, Document, or Chat"},
				"term":  map[string]any{"type": "string", "description": "Search term"},
				"limit": map[string]any{"type": "integer", "description": "Maximum results, default 10"},
			},
			"required": []string{"term"},
		},
	},
}

// Run executes the delegation's tool loop. The loop ends when the model
// answers without tool calls, when failed queries reach the retry cap,
// or when the session budget runs out.
func (a *QuerySubAgent) Run(ctx context.Context, session *Session, task string) (*SubAgentResult, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: "## Task\n\n" + task}}
	result := &SubAgentResult{}
	queryFailures := 0

	for session.Spend() {
		completion, err := a.llm.Generate(ctx, &llm.GenerateInput{
			SessionID: session.ID,
			System:    querySubAgentSystemPrompt,
			Messages:  messages,
			Tools:     querySubAgentTools,
		})
		if err != nil {
			return nil, fmt.Errorf("query sub-agent completion: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			result.Summary = clipWords(completion.Text, summaryWordLimit)
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})
		for _, tc := range completion.ToolCalls {
			if !session.Spend() {
				break
			}
			content, citations, toolErr := a.executeTool(ctx, session.ID, tc)
			result.Citations = append(result.Citations, citations...)
			if toolErr != nil {
				queryFailures++
				content = "Tool error: " + toolErr.Error() + ". Revise the query and try again."
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				ToolError:  toolErr != nil,
			})
		}

		if queryFailures >= queryRetryCap {
			result.Summary = fmt.Sprintf(
				"Retrieval failed: %d consecutive query attempts errored. No reliable data was gathered for this task.",
				queryFailures)
			return result, nil
		}
	}

	session.markTruncated()
	result.Summary = "Retrieval incomplete: the iteration budget ran out before this task finished."
	return result, nil
}

func (a *QuerySubAgent) executeTool(ctx context.Context, sessionID string, tc llm.ToolCall) (string, []models.Citation, error) {
	start := time.Now()
	content, citations, err := a.dispatchTool(ctx, tc)

	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeFailed
		a.logger.Warn("Tool call failed", "tool", tc.Name, "error", err)
	}
	a.events.Append(telemetry.Event{
		SessionID:  sessionID,
		Event:      telemetry.EventToolCall,
		DurationMS: time.Since(start).Milliseconds(),
		Outcome:    outcome,
		Payload:    map[string]any{"tool": tc.Name},
	})
	return content, citations, err
}

func (a *QuerySubAgent) dispatchTool(ctx context.Context, tc llm.ToolCall) (string, []models.Citation, error) {
	switch tc.Name {
	case "schema_inspect":
		return a.schema, nil, nil

	case "execute_graph_query":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return "", nil, fmt.Errorf("parsing tool arguments: %w", err)
		}
		if a.graph == nil {
			return "", nil, fmt.Errorf("the graph store is not enabled; use search_content instead")
		}
		rows, err := a.graph.Query(ctx, args.Query, nil)
		if err != nil {
			return "", nil, err
		}
		payload, err := json.Marshal(rows)
		if err != nil {
			return "", nil, fmt.Errorf("serializing rows: %w", err)
		}
		return clipBytes(payload), graphCitations(rows), nil

	case "search_content":
		var args struct {
			Kind  string `json:"kind"`
			Term  string `json:"term"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return "", nil, fmt.Errorf("parsing tool arguments: %w", err)
		}
		if args.Limit <= 0 {
			args.Limit = 10
		}
		if a.search == nil {
			return "", nil, fmt.Errorf("the relational store is not enabled; use execute_graph_query instead")
		}
		results, err := a.search.SearchContent(ctx, args.Kind, args.Term, args.Limit)
		if err != nil {
			return "", nil, err
		}
		payload, err := json.Marshal(results)
		if err != nil {
			return "", nil, fmt.Errorf("serializing results: %w", err)
		}
		return clipBytes(payload), searchCitations(results), nil

	default:
		return "", nil, fmt.Errorf("unknown tool %q", tc.Name)
	}
}

// graphCitations extracts Source references from flattened query rows.
// A row value that looks like a Source node (title plus date props)
// becomes a citation.
func graphCitations(rows []map[string]any) []models.Citation {
	var out []models.Citation
	for _, row := range rows {
		for _, value := range row {
			node, ok := value.(map[string]any)
			if !ok {
				continue
			}
			title, _ := node["title"].(string)
			if title == "" {
				continue
			}
			citation := models.Citation{Title: title}
			if raw, ok := node["date"].(string); ok {
				if date, err := time.Parse("2006-01-02", raw); err == nil {
					citation.Date = date
				}
			}
			if level, ok := node["confidentiality"].(string); ok {
				citation.Confidentiality = models.ConfidentialityLevel(level)
			}
			out = append(out, citation)
		}
	}
	return dedupCitations(out)
}

func searchCitations(results []relational.SearchResult) []models.Citation {
	var out []models.Citation
	for _, r := range results {
		out = append(out, models.Citation{
			Title:           r.SourceTitle,
			Date:            r.SourceDate,
			Confidentiality: models.ConfidentialityLevel(r.Confidentiality),
		})
	}
	return dedupCitations(out)
}

// dedupCitations keeps one citation per (title, date), ordered by title.
func dedupCitations(citations []models.Citation) []models.Citation {
	seen := make(map[string]bool)
	var out []models.Citation
	for _, c := range citations {
		key := c.Title + "|" + c.Date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func clipBytes(payload []byte) string {
	if len(payload) <= toolResultLimit {
		return string(payload)
	}
	return string(payload[:toolResultLimit]) + "... (truncated)"
}

// AnalysisSubAgent reasons over supervisor-supplied data with no tools.
type AnalysisSubAgent struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewAnalysisSubAgent builds the analysis sub-agent.
func NewAnalysisSubAgent(client llm.Client) *AnalysisSubAgent {
	return &AnalysisSubAgent{
		llm:    client,
		logger: slog.Default().With("component", "analysis_subagent"),
	}
}

// Run performs one bounded reasoning pass over the data blob. Input is
// clipped to roughly 4,000 tokens before it reaches the model.
func (a *AnalysisSubAgent) Run(ctx context.Context, session *Session, task, data string) (*SubAgentResult, error) {
	if !session.Spend() {
		session.markTruncated()
		return &SubAgentResult{Summary: "Analysis skipped: the iteration budget ran out."}, nil
	}
	if len(data) > analysisInputLimit {
		data = data[:analysisInputLimit] + "\n... (input truncated)"
	}

	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(task)
	sb.WriteString("\n\n## Data\n\n")
	sb.WriteString(data)

	completion, err := a.llm.Generate(ctx, &llm.GenerateInput{
		SessionID: session.ID,
		System:    analysisSubAgentSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis sub-agent completion: %w", err)
	}
	return &SubAgentResult{Summary: clipWords(completion.Text, summaryWordLimit)}, nil
}
