package evolution

import (
	"math"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

// DefaultCadenceDays is the assumed number of days between two evaluations when the
// cadence is not derived from the student's own history.
const DefaultCadenceDays = 30.0

// NextLevelThreshold returns the level above current and the overall score needed to
// reach it. Advanced has no further threshold.
func NextLevelThreshold(current models.Level) (models.Level, float64, bool) {
	switch current {
	case models.LevelBeginner:
		return models.LevelIntermediate, 5.0, true
	case models.LevelIntermediate:
		return models.LevelAdvanced, 7.5, true
	default:
		return "", 0, false
	}
}

// Predict forecasts the next evaluation from the latest point and its trends, and
// estimates how long the student needs to reach the next level.
func Predict(latest models.DataPoint, trends models.StrokeTrends, level models.Level, cadenceDays float64) models.Prediction {
	if cadenceDays <= 0 {
		cadenceDays = DefaultCadenceDays
	}
	technique := clampScore(latest.Technique + trends.Technique.Slope)
	resistance := clampScore(latest.Resistance + trends.Resistance.Slope)

	prediction := models.Prediction{
		NextTechnique:  round2(technique),
		NextResistance: round2(resistance),
		NextOverall:    round2(Overall(technique, resistance)),
		CadenceDays:    cadenceDays,
	}

	next, threshold, ok := NextLevelThreshold(level)
	if !ok {
		return prediction
	}
	prediction.NextLevel = &next
	prediction.Threshold = &threshold

	evaluations, days, ok := EstimateDaysToThreshold(latest.Overall, threshold, trends.Overall.Slope, cadenceDays)
	if ok {
		prediction.EvaluationsNeeded = &evaluations
		prediction.EstimatedDays = &days
	}
	return prediction
}

// EstimateDaysToThreshold converts the remaining score gap into evaluations and days.
// It reports false when the slope is not positive or the threshold is already met.
func EstimateDaysToThreshold(current, threshold, slope, cadenceDays float64) (float64, int, bool) {
	if slope <= 0 || current >= threshold {
		return 0, 0, false
	}
	evaluations := (threshold - current) / slope
	days := int(math.Ceil(evaluations * cadenceDays))
	return round2(evaluations), days, true
}

func clampScore(v float64) float64 {
	return math.Max(models.MinScore, math.Min(models.MaxScore, v))
}
