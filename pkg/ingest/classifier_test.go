package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

func TestClassify_LevelRules(t *testing.T) {
	tests := []struct {
		name string
		art  *ParsedArtifact
		want models.ConfidentialityLevel
	}{
		{
			name: "restricted participant keyword",
			art: &ParsedArtifact{
				Title:        "Weekly sync",
				Participants: []models.Participant{{Handle: "Jane (Attorney)"}},
			},
			want: models.ConfidentialityRestricted,
		},
		{
			name: "restricted title pattern",
			art:  &ParsedArtifact{Title: "Personnel review notes"},
			want: models.ConfidentialityRestricted,
		},
		{
			name: "confidential category",
			art:  &ParsedArtifact{Title: "Q3 sync", Category: "Principals"},
			want: models.ConfidentialityConfidential,
		},
		{
			name: "confidential title",
			art:  &ParsedArtifact{Title: "Executive compensation plan"},
			want: models.ConfidentialityConfidential,
		},
		{
			name: "public category",
			art:  &ParsedArtifact{Title: "Town hall", Category: "PublicEvent"},
			want: models.ConfidentialityPublic,
		},
		{
			name: "default internal",
			art:  &ParsedArtifact{Title: "Standup notes"},
			want: models.ConfidentialityInternal,
		},
		{
			name: "restricted beats confidential",
			art:  &ParsedArtifact{Title: "Legal review", Category: "Board"},
			want: models.ConfidentialityRestricted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.art).Level)
		})
	}
}

func TestClassify_StatusRules(t *testing.T) {
	assert.Equal(t, models.DocumentStatusDraft,
		Classify(&ParsedArtifact{Title: "Roadmap draft v0.3"}).Status)
	assert.Equal(t, models.DocumentStatusArchived,
		Classify(&ParsedArtifact{Title: "Legacy process doc"}).Status)
	assert.Equal(t, models.DocumentStatusFinal,
		Classify(&ParsedArtifact{Title: "Board minutes"}).Status)
}

func TestClassify_OverrideNeverDowngraded(t *testing.T) {
	restricted := models.ConfidentialityRestricted
	public := models.ConfidentialityPublic

	got := Classify(&ParsedArtifact{Title: "Standup notes", Override: &restricted})
	assert.Equal(t, models.ConfidentialityRestricted, got.Level)

	// Derived RESTRICTED is kept over an explicit PUBLIC override.
	got = Classify(&ParsedArtifact{Title: "Legal review", Override: &public})
	assert.Equal(t, models.ConfidentialityRestricted, got.Level)
}

func TestClassify_Tags(t *testing.T) {
	got := Classify(&ParsedArtifact{
		Title:    "Germany strategy and budget and hiring and policy",
		Category: "Leadership Team",
	})
	assert.Equal(t, "leadership-team", got.Tags[0])
	// At most 3 topic keywords, in vocabulary order.
	assert.Equal(t, []string{"leadership-team", "strategy", "budget", "hiring"}, got.Tags)
}

func TestClassify_Idempotent(t *testing.T) {
	art := &ParsedArtifact{Title: "Confidential funder update", Category: "Funder"}
	first := Classify(art)
	second := Classify(art)
	assert.Equal(t, first, second)
}
