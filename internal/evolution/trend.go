package evolution

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

// Slopes inside this band are reported as stable.
const stableSlopeBand = 0.1

// AnalyzeTrend fits an ordinary least squares line of values against their sequence
// index. Fewer than two values yield a zero trend with zero confidence.
func AnalyzeTrend(values []float64) models.Trend {
	n := len(values)
	if n < 2 {
		return models.Trend{Direction: models.TrendStable, SampleSize: n}
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	_, beta := stat.LinearRegression(xs, values, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		beta = 0
	}
	correlation := stat.Correlation(xs, values, nil)
	if math.IsNaN(correlation) || math.IsInf(correlation, 0) {
		correlation = 0
	}

	slope := round2(beta)
	confidence := math.Min(math.Abs(correlation)*math.Sqrt(float64(n)/10), 1)

	return models.Trend{
		Slope:       slope,
		Correlation: round2(correlation),
		Confidence:  round2(confidence),
		Direction:   Direction(slope),
		SampleSize:  n,
	}
}

// Direction classifies a slope.
func Direction(slope float64) models.TrendDirection {
	switch {
	case math.Abs(slope) < stableSlopeBand:
		return models.TrendStable
	case slope > 0:
		return models.TrendImproving
	default:
		return models.TrendDeclining
	}
}

// AnalyzeStroke computes the technique, resistance and overall trends of a series.
func AnalyzeStroke(points []models.DataPoint) models.StrokeTrends {
	return models.StrokeTrends{
		Technique:  AnalyzeTrend(metric(points, func(p models.DataPoint) float64 { return p.Technique })),
		Resistance: AnalyzeTrend(metric(points, func(p models.DataPoint) float64 { return p.Resistance })),
		Overall:    AnalyzeTrend(metric(points, func(p models.DataPoint) float64 { return p.Overall })),
	}
}
