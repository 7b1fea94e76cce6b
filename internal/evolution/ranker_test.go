package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

func TestCompareAgainstCohort(t *testing.T) {
	cohort := []models.CohortScore{
		{StudentID: "s2", StrokeType: models.StrokeFrontCrawl, TechniqueScore: 5, ResistanceScore: 5},
		{StudentID: "s3", StrokeType: models.StrokeFrontCrawl, TechniqueScore: 7, ResistanceScore: 7},
		{StudentID: "s4", StrokeType: models.StrokeFrontCrawl, TechniqueScore: 8, ResistanceScore: 6},
		{StudentID: "s5", StrokeType: models.StrokeFrontCrawl, TechniqueScore: 9, ResistanceScore: 9},
		{StudentID: "s6", StrokeType: models.StrokeBackstroke, TechniqueScore: 1, ResistanceScore: 1},
	}

	result := Compare(models.StrokeFrontCrawl, 7, 7, cohort)

	assert.Equal(t, 4, result.CohortSize)
	assert.Equal(t, 25.0, result.Percentile)
	assert.Equal(t, 2, result.Rank)
	assert.Equal(t, 7.25, result.CohortTechniqueAvg)
	assert.Equal(t, 6.75, result.CohortResistanceAvg)
	assert.Equal(t, 7.0, result.CohortOverallAvg)
	assert.Equal(t, 7.0, result.StudentOverall)
}

func TestCompareWithoutPeers(t *testing.T) {
	result := Compare(models.StrokeButterfly, 4, 6, []models.CohortScore{
		{StudentID: "s2", StrokeType: models.StrokeFrontCrawl, TechniqueScore: 5, ResistanceScore: 5},
	})

	assert.Zero(t, result.CohortSize)
	assert.Equal(t, 50.0, result.Percentile)
	assert.Equal(t, 1, result.Rank)
	assert.Zero(t, result.CohortOverallAvg)
}
