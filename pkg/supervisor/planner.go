package supervisor

import (
	"fmt"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// Plan size bounds for the Planned mode.
const (
	minPlanItems = 3
	maxPlanItems = 10
)

// BuildPlan turns a classified question into an ordered TODO list.
// Direct questions get no plan; SingleDelegate plans have one or two
// items; Planned plans have between minPlanItems and maxPlanItems.
func BuildPlan(question string, cls Classification) []models.TodoItem {
	switch cls.Rule {
	case RuleGreeting:
		return nil
	case RuleLookup:
		return numbered([]models.TodoItem{
			queryItem("Retrieve the records that answer: " + question),
		})
	case RuleSynthesis:
		return numbered([]models.TodoItem{
			queryItem("Retrieve all sources, decisions, and participants relevant to: " + question),
			analysisItem("Synthesize the retrieved summaries into themes and key points for: " + question),
		})
	case RuleMultiTemporal:
		return numbered(multiTemporalPlan(question))
	default:
		return numbered(defaultPlan(question))
	}
}

// multiTemporalPlan retrieves each referenced time window separately,
// then compares and organizes. Window retrievals are capped so the plan
// stays within bounds.
func multiTemporalPlan(question string) []models.TodoItem {
	windows := timeWindows(question)
	if len(windows) > maxPlanItems-2 {
		windows = windows[:maxPlanItems-2]
	}

	var items []models.TodoItem
	for _, w := range windows {
		items = append(items, queryItem(
			fmt.Sprintf("Retrieve sources and decisions from %s relevant to: %s", w, question)))
	}
	if len(items) == 0 {
		items = append(items, queryItem(
			"Retrieve the earliest and the most recent sources relevant to: "+question))
	}
	items = append(items,
		analysisItem("Compare the retrieved periods and describe how the topic changed: "+question),
		analysisItem("Organize the comparison into a chronological answer for: "+question),
	)
	for len(items) < minPlanItems {
		items = append(items, analysisItem("Review the findings so far and note gaps for: "+question))
	}
	return items
}

func defaultPlan(question string) []models.TodoItem {
	return []models.TodoItem{
		queryItem("Retrieve sources, entities, and decisions relevant to: " + question),
		analysisItem("Analyze the retrieved summaries and extract the facts needed for: " + question),
		analysisItem("Organize the analysis into a direct answer for: " + question),
	}
}

func queryItem(description string) models.TodoItem {
	return models.TodoItem{
		Description: description,
		Agent:       models.SubAgentQuery,
		Status:      models.TodoPending,
	}
}

func analysisItem(description string) models.TodoItem {
	return models.TodoItem{
		Description: description,
		Agent:       models.SubAgentAnalysis,
		Status:      models.TodoPending,
	}
}

// numbered assigns stable sequential ids.
func numbered(items []models.TodoItem) []models.TodoItem {
	for i := range items {
		items[i].ID = fmt.Sprintf("step-%d", i+1)
	}
	return items
}

// rewriteDescription produces the one alternative phrasing used when a
// plan item fails. The retry asks the sub-agent to change approach
// rather than repeat the original wording.
func rewriteDescription(description string) string {
	return "The previous attempt at this task failed. Take a different approach, " +
		"simplify the query if one was involved, and try again: " + description
}
