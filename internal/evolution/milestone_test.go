package evolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

func pointsFromOverall(values ...float64) []models.DataPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.DataPoint, len(values))
	for i, v := range values {
		points[i] = models.DataPoint{
			Index:        i,
			EvaluationID: string(rune('a' + i)),
			Date:         start.AddDate(0, 0, 14*i),
			Overall:      v,
		}
	}
	return points
}

func TestDetectMilestones(t *testing.T) {
	milestones := DetectMilestones(models.StrokeFrontCrawl, pointsFromOverall(5, 7, 8.5, 5.5))

	require.Len(t, milestones, 4)

	assert.Equal(t, models.MilestoneImprovement, milestones[0].Type)
	assert.Equal(t, models.ImpactMedium, milestones[0].Impact)
	assert.Equal(t, "b", milestones[0].EvaluationID)
	assert.Equal(t, 2.0, milestones[0].Delta)

	assert.Equal(t, models.MilestoneBreakthrough, milestones[1].Type)
	assert.Equal(t, models.ImpactHigh, milestones[1].Impact)
	assert.Contains(t, milestones[1].Description, "Front crawl")

	assert.Equal(t, models.MilestoneImprovement, milestones[2].Type)
	assert.Equal(t, "c", milestones[2].EvaluationID)

	assert.Equal(t, models.MilestoneDecline, milestones[3].Type)
	assert.Equal(t, models.ImpactHigh, milestones[3].Impact)
	assert.Equal(t, -3.0, milestones[3].Delta)
}

func TestDetectMilestonesQuietSeries(t *testing.T) {
	milestones := DetectMilestones(models.StrokeBackstroke, pointsFromOverall(5, 5.5, 6, 6.5))
	assert.NotNil(t, milestones)
	assert.Empty(t, milestones)

	assert.Empty(t, DetectMilestones(models.StrokeBackstroke, nil))
}

func TestDetectMilestonesBreakthroughNeedsEight(t *testing.T) {
	milestones := DetectMilestones(models.StrokeButterfly, pointsFromOverall(6.5, 7.5))
	assert.Empty(t, milestones)

	milestones = DetectMilestones(models.StrokeButterfly, pointsFromOverall(8.5, 9))
	require.Len(t, milestones, 1)
	assert.Equal(t, models.MilestoneBreakthrough, milestones[0].Type)
}
