package evolution

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

const (
	recentMilestoneLimit = 5
	lowConfidence        = 0.3
	imbalanceGap         = 1.5
)

// SummaryInput carries everything BuildSummary needs.
type SummaryInput struct {
	Student          models.Student
	Metrics          models.EvolutionMetrics
	Comparative      []models.ComparativeStroke
	TotalEvaluations int
	Now              time.Time
}

// BuildSummary condenses the detailed metrics into a digest with recommendations.
func BuildSummary(in SummaryInput) models.EvolutionSummary {
	summary := models.EvolutionSummary{
		StudentID:        in.Student.ID,
		StudentName:      in.Student.FullName,
		Level:            in.Student.Level,
		TotalEvaluations: in.TotalEvaluations,
		LastEvaluation:   in.Student.LastEvaluationDate,
		OverallDirection: models.TrendStable,
		Readiness:        models.LevelReadiness{CurrentLevel: in.Student.Level},
		RecentMilestones: make([]models.Milestone, 0),
		Recommendations:  make([]string, 0),
		Comparative:      in.Comparative,
		GeneratedAt:      in.Now,
	}

	strokes := make([]models.StrokeEvolution, 0, len(in.Metrics.Strokes))
	for _, s := range in.Metrics.Strokes {
		if s.Latest != nil {
			strokes = append(strokes, s)
		}
	}
	if len(strokes) == 0 {
		summary.Recommendations = append(summary.Recommendations, "No evaluations recorded yet; schedule a first assessment to start tracking progress.")
		return summary
	}

	var slopeSum, overallSum float64
	strongest, weakest := strokes[0], strokes[0]
	for _, s := range strokes {
		slopeSum += s.Trends.Overall.Slope
		overallSum += s.Latest.Overall
		if s.Latest.Overall > strongest.Latest.Overall {
			strongest = s
		}
		if s.Latest.Overall < weakest.Latest.Overall {
			weakest = s
		}
		summary.RecentMilestones = append(summary.RecentMilestones, s.Milestones...)
	}
	count := float64(len(strokes))
	avgSlope := round2(slopeSum / count)
	summary.OverallDirection = Direction(avgSlope)
	summary.StrongestStroke = &strongest.StrokeType
	summary.WeakestStroke = &weakest.StrokeType

	sort.SliceStable(summary.RecentMilestones, func(i, j int) bool {
		return summary.RecentMilestones[i].Date.After(summary.RecentMilestones[j].Date)
	})
	if len(summary.RecentMilestones) > recentMilestoneLimit {
		summary.RecentMilestones = summary.RecentMilestones[:recentMilestoneLimit]
	}

	summary.Readiness = readiness(in.Student.Level, round2(overallSum/count), avgSlope, in.Metrics.CadenceDays)
	summary.Recommendations = recommend(summary, strokes, weakest)
	return summary
}

func readiness(level models.Level, currentOverall, slope, cadenceDays float64) models.LevelReadiness {
	r := models.LevelReadiness{CurrentLevel: level, CurrentOverall: currentOverall}
	next, threshold, ok := NextLevelThreshold(level)
	if !ok {
		return r
	}
	r.NextLevel = &next
	r.Threshold = &threshold
	r.MeetsThreshold = currentOverall >= threshold
	if _, days, ok := EstimateDaysToThreshold(currentOverall, threshold, slope, cadenceDays); ok {
		r.EstimatedDays = &days
	}
	return r
}

func recommend(summary models.EvolutionSummary, strokes []models.StrokeEvolution, weakest models.StrokeEvolution) []string {
	recs := make([]string, 0, 4)

	readiness := summary.Readiness
	switch {
	case readiness.NextLevel == nil:
		recs = append(recs, "Student is at the top level; focus on consistency and race times.")
	case readiness.MeetsThreshold:
		recs = append(recs, fmt.Sprintf("Scores meet the %s threshold; consider a level progression evaluation.", *readiness.NextLevel))
	case readiness.EstimatedDays != nil:
		recs = append(recs, fmt.Sprintf("At the current pace %s is reachable in about %d days.", *readiness.NextLevel, *readiness.EstimatedDays))
	default:
		recs = append(recs, fmt.Sprintf("Scores are not trending toward %s yet; review the training plan.", *readiness.NextLevel))
	}

	if len(strokes) > 1 {
		recs = append(recs, fmt.Sprintf("Focus training on %s (latest overall %.1f).", strokeLabel(weakest.StrokeType), weakest.Latest.Overall))
	}

	fewSamples := false
	for _, s := range strokes {
		if s.Trends.Overall.Direction == models.TrendDeclining {
			recs = append(recs, fmt.Sprintf("%s scores are declining; revisit fundamentals before the next evaluation.", strokeLabel(s.StrokeType)))
		}
		gap := s.Latest.Technique - s.Latest.Resistance
		switch {
		case gap >= imbalanceGap:
			recs = append(recs, fmt.Sprintf("%s endurance lags technique; add longer aerobic sets.", strokeLabel(s.StrokeType)))
		case gap <= -imbalanceGap:
			recs = append(recs, fmt.Sprintf("%s technique lags endurance; add drill work.", strokeLabel(s.StrokeType)))
		}
		if s.Trends.Overall.Confidence < lowConfidence {
			fewSamples = true
		}
	}
	if fewSamples {
		recs = append(recs, "Some trends have low confidence; more evaluations will sharpen the predictions.")
	}
	return recs
}
