package models

import (
	"strings"
	"time"
)

// EvaluationType distinguishes routine assessments from level progression requests.
type EvaluationType string

const (
	EvaluationTypeRegular          EvaluationType = "regular"
	EvaluationTypeLevelProgression EvaluationType = "level_progression"
)

// Valid reports whether t is a known evaluation type.
func (t EvaluationType) Valid() bool {
	return t == EvaluationTypeRegular || t == EvaluationTypeLevelProgression
}

// ApprovalStatus is the review state of an evaluation. Progression only fires on the
// transition into ApprovalApproved.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ParseApprovalStatus normalises raw input, defaulting empty values to pending.
func ParseApprovalStatus(raw string) (ApprovalStatus, bool) {
	switch status := ApprovalStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case "":
		return ApprovalPending, true
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return status, true
	default:
		return "", false
	}
}

// StrokeType enumerates the swimming disciplines that can be measured.
type StrokeType string

const (
	StrokeFrontCrawl   StrokeType = "front_crawl"
	StrokeBackstroke   StrokeType = "backstroke"
	StrokeBreaststroke StrokeType = "breaststroke"
	StrokeButterfly    StrokeType = "butterfly"
)

// StrokeTypes lists every stroke in display order.
var StrokeTypes = []StrokeType{StrokeFrontCrawl, StrokeBackstroke, StrokeBreaststroke, StrokeButterfly}

// Valid reports whether s is a known stroke.
func (s StrokeType) Valid() bool {
	for _, candidate := range StrokeTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// Score bounds for technique and resistance.
const (
	MinScore = 1
	MaxScore = 10
)

// Evaluation is a single dated assessment of a student by a professor.
type Evaluation struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	ProfessorID    string         `db:"professor_id" json:"professor_id"`
	EvaluationDate time.Time      `db:"evaluation_date" json:"evaluation_date"`
	Type           EvaluationType `db:"evaluation_type" json:"evaluation_type"`
	TargetLevel    *Level         `db:"target_level" json:"target_level,omitempty"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovalNotes  *string        `db:"approval_notes" json:"approval_notes,omitempty"`
	GeneralNotes   *string        `db:"general_notes" json:"general_notes,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsProgression reports whether the evaluation requests a level change.
func (e Evaluation) IsProgression() bool {
	return e.Type == EvaluationTypeLevelProgression
}

// StrokeMeasurement holds the scores for one stroke within an evaluation.
type StrokeMeasurement struct {
	ID              string     `db:"id" json:"id"`
	EvaluationID    string     `db:"evaluation_id" json:"evaluation_id"`
	StrokeType      StrokeType `db:"stroke_type" json:"stroke_type"`
	TechniqueScore  int        `db:"technique_score" json:"technique_score"`
	ResistanceScore int        `db:"resistance_score" json:"resistance_score"`
	TimeSeconds     *float64   `db:"time_seconds" json:"time_seconds,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
}

// EvaluationDetail is the hydrated evaluation returned to callers.
type EvaluationDetail struct {
	Evaluation
	StudentName   string              `db:"student_name" json:"student_name"`
	StudentLevel  Level               `db:"student_level" json:"student_level"`
	ProfessorName string              `db:"professor_name" json:"professor_name"`
	Strokes       []StrokeMeasurement `json:"strokes"`
}

// EvaluationFilter scopes evaluation listings. DateTo is inclusive of the whole day.
type EvaluationFilter struct {
	StudentID   string
	ProfessorID string
	StrokeType  StrokeType
	Type        EvaluationType
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}
