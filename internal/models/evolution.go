package models

import (
	"strings"
	"time"
)

// TimeRange restricts the evaluation window considered by evolution analytics.
type TimeRange string

const (
	TimeRange3Months TimeRange = "3months"
	TimeRange6Months TimeRange = "6months"
	TimeRange1Year   TimeRange = "1year"
	TimeRangeAll     TimeRange = "all"
)

// ParseTimeRange normalises raw input, defaulting empty values to all.
func ParseTimeRange(raw string) (TimeRange, bool) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return TimeRangeAll, true
	case TimeRange3Months, TimeRange6Months, TimeRange1Year, TimeRangeAll:
		return r, true
	default:
		return "", false
	}
}

// Since returns the lower bound of the window relative to now, or nil for all.
func (r TimeRange) Since(now time.Time) *time.Time {
	var since time.Time
	switch r {
	case TimeRange3Months:
		since = now.AddDate(0, -3, 0)
	case TimeRange6Months:
		since = now.AddDate(0, -6, 0)
	case TimeRange1Year:
		since = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &since
}

// StrokeRecord is a flattened stroke measurement joined with its evaluation date.
type StrokeRecord struct {
	EvaluationID    string     `db:"evaluation_id" json:"evaluation_id"`
	EvaluationDate  time.Time  `db:"evaluation_date" json:"evaluation_date"`
	StrokeType      StrokeType `db:"stroke_type" json:"stroke_type"`
	TechniqueScore  int        `db:"technique_score" json:"technique_score"`
	ResistanceScore int        `db:"resistance_score" json:"resistance_score"`
	TimeSeconds     *float64   `db:"time_seconds" json:"time_seconds,omitempty"`
}

// DataPoint is one numeric observation in a stroke's time series.
type DataPoint struct {
	Index        int       `json:"index"`
	EvaluationID string    `json:"evaluation_id"`
	Date         time.Time `json:"date"`
	Technique    float64   `json:"technique"`
	Resistance   float64   `json:"resistance"`
	Overall      float64   `json:"overall"`
	TimeSeconds  *float64  `json:"time_seconds,omitempty"`
}

// StrokeSeries is the ordered history for one stroke.
type StrokeSeries struct {
	StrokeType StrokeType  `json:"stroke_type"`
	Points     []DataPoint `json:"points"`
}

// EvolutionData is the raw per-stroke time series for a student.
type EvolutionData struct {
	StudentID string         `json:"student_id"`
	TimeRange TimeRange      `json:"time_range"`
	Series    []StrokeSeries `json:"series"`
}

// TrendDirection is the qualitative reading of a slope.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// Trend summarises a metric's linear evolution over the sequence of evaluations.
type Trend struct {
	Slope       float64        `json:"slope"`
	Correlation float64        `json:"correlation"`
	Confidence  float64        `json:"confidence"`
	Direction   TrendDirection `json:"direction"`
	SampleSize  int            `json:"sample_size"`
}

// StrokeTrends groups the trends for every metric of a stroke.
type StrokeTrends struct {
	Technique  Trend `json:"technique"`
	Resistance Trend `json:"resistance"`
	Overall    Trend `json:"overall"`
}

// Prediction forecasts the next evaluation and the time to the next level.
type Prediction struct {
	NextTechnique     float64  `json:"next_technique"`
	NextResistance    float64  `json:"next_resistance"`
	NextOverall       float64  `json:"next_overall"`
	NextLevel         *Level   `json:"next_level,omitempty"`
	Threshold         *float64 `json:"threshold,omitempty"`
	EvaluationsNeeded *float64 `json:"evaluations_needed,omitempty"`
	EstimatedDays     *int     `json:"estimated_days"`
	CadenceDays       float64  `json:"cadence_days"`
}

// MilestoneType classifies notable changes between consecutive evaluations.
type MilestoneType string

const (
	MilestoneImprovement  MilestoneType = "improvement"
	MilestoneDecline      MilestoneType = "decline"
	MilestoneBreakthrough MilestoneType = "breakthrough"
)

// MilestoneImpact grades how significant a milestone is.
type MilestoneImpact string

const (
	ImpactHigh   MilestoneImpact = "high"
	ImpactMedium MilestoneImpact = "medium"
)

// Milestone is a detected significant change between two consecutive data points.
type Milestone struct {
	Type         MilestoneType   `json:"type"`
	Impact       MilestoneImpact `json:"impact"`
	StrokeType   StrokeType      `json:"stroke_type"`
	EvaluationID string          `json:"evaluation_id"`
	Date         time.Time       `json:"date"`
	FromOverall  float64         `json:"from_overall"`
	ToOverall    float64         `json:"to_overall"`
	Delta        float64         `json:"delta"`
	Description  string          `json:"description"`
}

// StrokeEvolution bundles the analytics computed for one stroke.
type StrokeEvolution struct {
	StrokeType StrokeType   `json:"stroke_type"`
	Points     int          `json:"points"`
	Latest     *DataPoint   `json:"latest,omitempty"`
	Trends     StrokeTrends `json:"trends"`
	Prediction *Prediction  `json:"prediction,omitempty"`
	Milestones []Milestone  `json:"milestones"`
}

// EvolutionMetrics is the detailed analytics payload for a student.
type EvolutionMetrics struct {
	StudentID   string            `json:"student_id"`
	Level       Level             `json:"level"`
	TimeRange   TimeRange         `json:"time_range"`
	CadenceDays float64           `json:"cadence_days"`
	GeneratedAt time.Time         `json:"generated_at"`
	Strokes     []StrokeEvolution `json:"strokes"`
}

// CohortScore is one peer measurement at the same level.
type CohortScore struct {
	StudentID       string     `db:"student_id" json:"student_id"`
	StrokeType      StrokeType `db:"stroke_type" json:"stroke_type"`
	TechniqueScore  int        `db:"technique_score" json:"technique_score"`
	ResistanceScore int        `db:"resistance_score" json:"resistance_score"`
}

// ComparativeStroke places a student's latest stroke score within the level cohort.
type ComparativeStroke struct {
	StrokeType          StrokeType `json:"stroke_type"`
	StudentTechnique    float64    `json:"student_technique"`
	StudentResistance   float64    `json:"student_resistance"`
	StudentOverall      float64    `json:"student_overall"`
	CohortTechniqueAvg  float64    `json:"cohort_technique_avg"`
	CohortResistanceAvg float64    `json:"cohort_resistance_avg"`
	CohortOverallAvg    float64    `json:"cohort_overall_avg"`
	CohortSize          int        `json:"cohort_size"`
	Percentile          float64    `json:"percentile"`
	Rank                int        `json:"rank"`
}

// ComparativeAnalysis ranks a student against peers at the same level.
type ComparativeAnalysis struct {
	StudentID   string              `json:"student_id"`
	Level       Level               `json:"level"`
	GeneratedAt time.Time           `json:"generated_at"`
	Strokes     []ComparativeStroke `json:"strokes"`
}

// LevelReadiness describes how close a student is to the next level.
type LevelReadiness struct {
	CurrentLevel   Level    `json:"current_level"`
	NextLevel      *Level   `json:"next_level,omitempty"`
	Threshold      *float64 `json:"threshold,omitempty"`
	CurrentOverall float64  `json:"current_overall"`
	MeetsThreshold bool     `json:"meets_threshold"`
	EstimatedDays  *int     `json:"estimated_days"`
}

// EvolutionSummary is the human readable digest of a student's progression.
type EvolutionSummary struct {
	StudentID        string              `json:"student_id"`
	StudentName      string              `json:"student_name"`
	Level            Level               `json:"level"`
	TotalEvaluations int                 `json:"total_evaluations"`
	LastEvaluation   *time.Time          `json:"last_evaluation,omitempty"`
	OverallDirection TrendDirection      `json:"overall_direction"`
	StrongestStroke  *StrokeType         `json:"strongest_stroke,omitempty"`
	WeakestStroke    *StrokeType         `json:"weakest_stroke,omitempty"`
	Readiness        LevelReadiness      `json:"readiness"`
	RecentMilestones []Milestone         `json:"recent_milestones"`
	Recommendations  []string            `json:"recommendations"`
	Comparative      []ComparativeStroke `json:"comparative,omitempty"`
	GeneratedAt      time.Time           `json:"generated_at"`
}
