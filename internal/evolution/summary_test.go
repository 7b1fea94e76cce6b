package evolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

func strokeEvolution(stroke models.StrokeType, technique, resistance, slope float64) models.StrokeEvolution {
	latest := models.DataPoint{Technique: technique, Resistance: resistance, Overall: Overall(technique, resistance)}
	return models.StrokeEvolution{
		StrokeType: stroke,
		Points:     4,
		Latest:     &latest,
		Trends: models.StrokeTrends{
			Overall: models.Trend{Slope: slope, Direction: Direction(slope), Confidence: 0.8},
		},
		Milestones: []models.Milestone{},
	}
}

func TestBuildSummary(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	in := SummaryInput{
		Student: models.Student{ID: "s1", FullName: "Ana", Level: models.LevelBeginner},
		Metrics: models.EvolutionMetrics{
			CadenceDays: 30,
			Strokes: []models.StrokeEvolution{
				strokeEvolution(models.StrokeFrontCrawl, 5, 4, 0.5),
				strokeEvolution(models.StrokeBackstroke, 3, 4, 0.5),
			},
		},
		TotalEvaluations: 4,
		Now:              now,
	}

	summary := BuildSummary(in)

	assert.Equal(t, models.TrendImproving, summary.OverallDirection)
	require.NotNil(t, summary.StrongestStroke)
	assert.Equal(t, models.StrokeFrontCrawl, *summary.StrongestStroke)
	require.NotNil(t, summary.WeakestStroke)
	assert.Equal(t, models.StrokeBackstroke, *summary.WeakestStroke)

	require.NotNil(t, summary.Readiness.NextLevel)
	assert.Equal(t, models.LevelIntermediate, *summary.Readiness.NextLevel)
	assert.Equal(t, 4.0, summary.Readiness.CurrentOverall)
	assert.False(t, summary.Readiness.MeetsThreshold)
	require.NotNil(t, summary.Readiness.EstimatedDays)
	assert.Equal(t, 60, *summary.Readiness.EstimatedDays)
	assert.NotEmpty(t, summary.Recommendations)
	assert.Equal(t, now, summary.GeneratedAt)
}

func TestBuildSummaryWithoutEvaluations(t *testing.T) {
	summary := BuildSummary(SummaryInput{Student: models.Student{ID: "s1", Level: models.LevelIntermediate}})

	assert.Equal(t, models.TrendStable, summary.OverallDirection)
	assert.Nil(t, summary.StrongestStroke)
	assert.Len(t, summary.Recommendations, 1)
	assert.NotNil(t, summary.RecentMilestones)
}
