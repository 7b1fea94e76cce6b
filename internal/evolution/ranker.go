package evolution

import "github.com/noah-isme/swim-eval-api/internal/models"

// neutralPercentile is reported when there are no peers to compare against.
const neutralPercentile = 50.0

// Compare ranks a student's latest stroke scores against the cohort measurements of
// the same level and stroke. A measurement counts as below (or above) the student only
// when both technique and resistance are strictly lower (or higher).
func Compare(stroke models.StrokeType, technique, resistance int, cohort []models.CohortScore) models.ComparativeStroke {
	result := models.ComparativeStroke{
		StrokeType:        stroke,
		StudentTechnique:  float64(technique),
		StudentResistance: float64(resistance),
		StudentOverall:    Overall(float64(technique), float64(resistance)),
		Percentile:        neutralPercentile,
		Rank:              1,
	}

	var below, above, techSum, resSum int
	for _, peer := range cohort {
		if peer.StrokeType != stroke {
			continue
		}
		result.CohortSize++
		techSum += peer.TechniqueScore
		resSum += peer.ResistanceScore
		if peer.TechniqueScore < technique && peer.ResistanceScore < resistance {
			below++
		}
		if peer.TechniqueScore > technique && peer.ResistanceScore > resistance {
			above++
		}
	}
	if result.CohortSize == 0 {
		return result
	}

	size := float64(result.CohortSize)
	result.CohortTechniqueAvg = round2(float64(techSum) / size)
	result.CohortResistanceAvg = round2(float64(resSum) / size)
	result.CohortOverallAvg = round2(Overall(float64(techSum)/size, float64(resSum)/size))
	result.Percentile = round2(float64(below) / size * 100)
	result.Rank = above + 1
	return result
}
