package supervisor

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

func TestBuildPlan_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		question string
		agents   []models.SubAgentKind
	}{
		{
			name:     "lookup is a single query delegation",
			question: "Who attended the strategy session?",
			agents:   []models.SubAgentKind{models.SubAgentQuery},
		},
		{
			name:     "synthesis retrieves then analyzes",
			question: "Summarize the decisions across leadership meetings",
			agents:   []models.SubAgentKind{models.SubAgentQuery, models.SubAgentAnalysis},
		},
		{
			name:     "default is retrieve analyze organize",
			question: "Why did the budget conversation stall?",
			agents: []models.SubAgentKind{
				models.SubAgentQuery, models.SubAgentAnalysis, models.SubAgentAnalysis,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPlan(tt.question, Classify(tt.question))
			require.Len(t, plan, len(tt.agents))
			for i, item := range plan {
				assert.Equal(t, fmt.Sprintf("step-%d", i+1), item.ID)
				assert.Equal(t, tt.agents[i], item.Agent)
				assert.Equal(t, models.TodoPending, item.Status)
				assert.NotEmpty(t, item.Description)
			}
		})
	}
}

func TestBuildPlan_DirectHasNoPlan(t *testing.T) {
	assert.Nil(t, BuildPlan("Hello!", Classify("Hello!")))
}

func TestBuildPlan_MultiTemporalRetrievesEachWindow(t *testing.T) {
	question := "Compare the funding decisions from 2024 with 2025"
	plan := BuildPlan(question, Classify(question))

	require.GreaterOrEqual(t, len(plan), minPlanItems)
	assert.Equal(t, models.SubAgentQuery, plan[0].Agent)
	assert.Contains(t, plan[0].Description, "2024")
	assert.Equal(t, models.SubAgentQuery, plan[1].Agent)
	assert.Contains(t, plan[1].Description, "2025")
	assert.Equal(t, models.SubAgentAnalysis, plan[len(plan)-1].Agent)
}

func TestBuildPlan_PlannedSizeBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("planned plans stay within 3..10 items", prop.ForAll(
		func(question string) bool {
			cls := Classify(question)
			plan := BuildPlan(question, cls)
			if cls.Mode != models.ModePlanned {
				return len(plan) <= 2
			}
			return len(plan) >= minPlanItems && len(plan) <= maxPlanItems
		},
		gen.AnyString(),
	))
	// Many distinct windows must not overflow the cap.
	crowded := "Compare 2018 2019 2020 2021 2022 2023 2024 2025 January February March trends over time"
	plan := BuildPlan(crowded, Classify(crowded))
	assert.LessOrEqual(t, len(plan), maxPlanItems)
	assert.GreaterOrEqual(t, len(plan), minPlanItems)

	properties.TestingRun(t)
}
