// Package evolution holds the pure read-side analytics derived from a student's
// evaluation history: time series extraction, trends, predictions, milestones,
// cohort ranking and the summary digest. Nothing here touches storage, so every
// function is safe to run concurrently on already-fetched data.
package evolution

import (
	"math"
	"sort"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

// BuildSeries groups stroke records into per-stroke series ordered by evaluation
// date. Indices restart at zero for each stroke.
func BuildSeries(records []models.StrokeRecord) []models.StrokeSeries {
	sorted := make([]models.StrokeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EvaluationDate.Equal(sorted[j].EvaluationDate) {
			return sorted[i].EvaluationID < sorted[j].EvaluationID
		}
		return sorted[i].EvaluationDate.Before(sorted[j].EvaluationDate)
	})

	byStroke := make(map[models.StrokeType][]models.DataPoint)
	for _, record := range sorted {
		points := byStroke[record.StrokeType]
		byStroke[record.StrokeType] = append(points, ToDataPoint(len(points), record))
	}

	series := make([]models.StrokeSeries, 0, len(byStroke))
	for _, stroke := range models.StrokeTypes {
		if points, ok := byStroke[stroke]; ok {
			series = append(series, models.StrokeSeries{StrokeType: stroke, Points: points})
		}
	}
	return series
}

// ToDataPoint projects a record into numeric metrics. Overall is the mean of
// technique and resistance.
func ToDataPoint(index int, record models.StrokeRecord) models.DataPoint {
	technique := float64(record.TechniqueScore)
	resistance := float64(record.ResistanceScore)
	return models.DataPoint{
		Index:        index,
		EvaluationID: record.EvaluationID,
		Date:         record.EvaluationDate,
		Technique:    technique,
		Resistance:   resistance,
		Overall:      Overall(technique, resistance),
		TimeSeconds:  record.TimeSeconds,
	}
}

// Overall combines technique and resistance into a single score.
func Overall(technique, resistance float64) float64 {
	return (technique + resistance) / 2
}

func metric(points []models.DataPoint, pick func(models.DataPoint) float64) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = pick(p)
	}
	return values
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
