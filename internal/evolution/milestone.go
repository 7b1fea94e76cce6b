package evolution

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

const (
	milestoneDelta        = 1.5
	highImpactDelta       = 2.5
	breakthroughThreshold = 8.0
)

// DetectMilestones scans consecutive points of a series for large jumps, drops and
// breakthroughs. A single pair may yield several milestones.
func DetectMilestones(stroke models.StrokeType, points []models.DataPoint) []models.Milestone {
	milestones := make([]models.Milestone, 0)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		delta := cur.Overall - prev.Overall

		if math.Floor(cur.Overall) > math.Floor(prev.Overall) && cur.Overall >= breakthroughThreshold {
			milestones = append(milestones, newMilestone(models.MilestoneBreakthrough, models.ImpactHigh, stroke, prev, cur,
				fmt.Sprintf("%s overall crossed %.0f (now %.1f)", strokeLabel(stroke), math.Floor(cur.Overall), cur.Overall)))
		}
		switch {
		case delta >= milestoneDelta:
			milestones = append(milestones, newMilestone(models.MilestoneImprovement, impactFor(delta), stroke, prev, cur,
				fmt.Sprintf("%s overall improved by %.1f points", strokeLabel(stroke), delta)))
		case delta <= -milestoneDelta:
			milestones = append(milestones, newMilestone(models.MilestoneDecline, impactFor(delta), stroke, prev, cur,
				fmt.Sprintf("%s overall dropped by %.1f points", strokeLabel(stroke), -delta)))
		}
	}
	return milestones
}

func impactFor(delta float64) models.MilestoneImpact {
	if math.Abs(delta) >= highImpactDelta {
		return models.ImpactHigh
	}
	return models.ImpactMedium
}

func newMilestone(kind models.MilestoneType, impact models.MilestoneImpact, stroke models.StrokeType, prev, cur models.DataPoint, description string) models.Milestone {
	return models.Milestone{
		Type:         kind,
		Impact:       impact,
		StrokeType:   stroke,
		EvaluationID: cur.EvaluationID,
		Date:         cur.Date,
		FromOverall:  prev.Overall,
		ToOverall:    cur.Overall,
		Delta:        round2(cur.Overall - prev.Overall),
		Description:  description,
	}
}

func strokeLabel(stroke models.StrokeType) string {
	label := strings.ReplaceAll(string(stroke), "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
