package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

func TestPredictClampsForecast(t *testing.T) {
	latest := models.DataPoint{Technique: 10, Resistance: 1, Overall: 5.5}
	trends := models.StrokeTrends{
		Technique:  models.Trend{Slope: 3},
		Resistance: models.Trend{Slope: -5},
	}

	prediction := Predict(latest, trends, models.LevelIntermediate, 0)

	assert.Equal(t, 10.0, prediction.NextTechnique)
	assert.Equal(t, 1.0, prediction.NextResistance)
	assert.Equal(t, 5.5, prediction.NextOverall)
	assert.Equal(t, DefaultCadenceDays, prediction.CadenceDays)
	assert.Nil(t, prediction.EstimatedDays)
}

func TestPredictEstimatesDaysToNextLevel(t *testing.T) {
	latest := models.DataPoint{Technique: 4, Resistance: 4, Overall: 4}
	trends := models.StrokeTrends{
		Technique:  models.Trend{Slope: 0.5},
		Resistance: models.Trend{Slope: 0.5},
		Overall:    models.Trend{Slope: 0.5},
	}

	prediction := Predict(latest, trends, models.LevelBeginner, 30)

	require.NotNil(t, prediction.NextLevel)
	assert.Equal(t, models.LevelIntermediate, *prediction.NextLevel)
	require.NotNil(t, prediction.Threshold)
	assert.Equal(t, 5.0, *prediction.Threshold)
	require.NotNil(t, prediction.EvaluationsNeeded)
	assert.Equal(t, 2.0, *prediction.EvaluationsNeeded)
	require.NotNil(t, prediction.EstimatedDays)
	assert.Equal(t, 60, *prediction.EstimatedDays)
}

func TestPredictAdvancedHasNoThreshold(t *testing.T) {
	latest := models.DataPoint{Technique: 8, Resistance: 8, Overall: 8}
	prediction := Predict(latest, models.StrokeTrends{Overall: models.Trend{Slope: 1}}, models.LevelAdvanced, 30)

	assert.Nil(t, prediction.NextLevel)
	assert.Nil(t, prediction.Threshold)
	assert.Nil(t, prediction.EstimatedDays)
}

func TestEstimateDaysToThreshold(t *testing.T) {
	_, _, ok := EstimateDaysToThreshold(4, 5, 0, 30)
	assert.False(t, ok, "flat slope never reaches the threshold")

	_, _, ok = EstimateDaysToThreshold(4, 5, -0.2, 30)
	assert.False(t, ok)

	_, _, ok = EstimateDaysToThreshold(7.5, 7.5, 1, 30)
	assert.False(t, ok, "threshold already met")

	evaluations, days, ok := EstimateDaysToThreshold(6, 7.5, 0.4, 14)
	require.True(t, ok)
	assert.Equal(t, 3.75, evaluations)
	assert.Equal(t, 53, days)
}
