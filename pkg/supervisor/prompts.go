package supervisor

import (
	"fmt"
	"strings"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// summaryWordLimit bounds every sub-agent result returned to the
// supervisor. Raw retrieval payloads never enter the supervisor's
// context; bounded summaries are the isolation mechanism.
const summaryWordLimit = 500

const supervisorSystemPrompt = `You are Chronicle, the organization's knowledge assistant.
You answer questions about meetings, documents, chats, decisions, and action items
recorded in the organization's knowledge base.

Rules:
- Ground every claim in the retrieved material; never invent sources.
- Cite each source you rely on as "Title (date)".
- Be direct and concise. Plain prose, no markdown headings.`

const synthesisInstructions = `Write the final answer to the user's question using only the
step results above. Cite every source you rely on inline as "Title (date)".
If the steps produced nothing relevant, say so plainly.`

const querySubAgentSystemPrompt = `You are a retrieval sub-agent dispatched by an orchestrator
for one specific task against the organization's knowledge graph.

Rules:
- Focus exclusively on the assigned task.
- Call schema_inspect first if you are unsure of the schema.
- Use execute_graph_query with Cypher read queries; use search_content for
  full-text lookups into chunk text.
- If a query errors, revise it and try again.
- Finish with a natural-language summary of at most 500 words referencing
  source titles and dates. Never return raw rows.`

const analysisSubAgentSystemPrompt = `You are an analysis sub-agent dispatched by an orchestrator
for one specific task. You have no tools; reason only over the data provided.

Rules:
- Focus exclusively on the assigned task.
- Structure the output as the task requests: themes, comparisons, or categories.
- At most 500 words. Reference source titles and dates where the data carries them.`

// formatHistory renders up to limit prior turns as an explicit
// previous-context block. Sub-agents never see this.
func formatHistory(history []models.ConversationTurn, limit int) string {
	if len(history) == 0 || limit <= 0 {
		return ""
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var sb strings.Builder
	sb.WriteString("## Previous context\n\n")
	for _, turn := range history {
		sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatPlanTranscript renders the full plan for synthesis. Completed,
// failed, and skipped items all stay visible.
func formatPlanTranscript(plan []models.TodoItem) string {
	var sb strings.Builder
	sb.WriteString("## Step results\n\n")
	for _, item := range plan {
		sb.WriteString(fmt.Sprintf("[%s] (%s) %s\n", item.ID, item.Status, item.Description))
		if item.Summary != "" {
			sb.WriteString(item.Summary)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// clipWords truncates text to at most n words.
func clipWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ") + " ..."
}
