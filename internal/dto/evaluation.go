package dto

import "time"

// StrokeMeasurementRequest carries the scores for one stroke.
type StrokeMeasurementRequest struct {
	StrokeType      string   `json:"stroke_type" validate:"required,oneof=front_crawl backstroke breaststroke butterfly"`
	TechniqueScore  int      `json:"technique_score" validate:"min=1,max=10"`
	ResistanceScore int      `json:"resistance_score" validate:"min=1,max=10"`
	TimeSeconds     *float64 `json:"time_seconds" validate:"omitempty,gt=0"`
	Notes           *string  `json:"notes" validate:"omitempty,max=1000"`
}

// CreateEvaluationRequest is the payload for recording a new evaluation. ProfessorID
// defaults to the caller when the caller is a professor.
type CreateEvaluationRequest struct {
	StudentID      string                     `json:"student_id" validate:"required"`
	ProfessorID    string                     `json:"professor_id"`
	EvaluationDate time.Time                  `json:"evaluation_date" validate:"required"`
	Type           string                     `json:"evaluation_type" validate:"required,oneof=regular level_progression"`
	TargetLevel    *string                    `json:"target_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	ApprovalStatus string                     `json:"approval_status" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
	ApprovalNotes  *string                    `json:"approval_notes" validate:"omitempty,max=2000"`
	GeneralNotes   *string                    `json:"general_notes" validate:"omitempty,max=4000"`
	Strokes        []StrokeMeasurementRequest `json:"strokes" validate:"required,min=1,dive"`
}

// UpdateEvaluationRequest is a partial update. Strokes, when present, replace the
// whole set.
type UpdateEvaluationRequest struct {
	EvaluationDate *time.Time                 `json:"evaluation_date"`
	Type           *string                    `json:"evaluation_type" validate:"omitempty,oneof=regular level_progression"`
	TargetLevel    *string                    `json:"target_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	ApprovalStatus *string                    `json:"approval_status" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
	ApprovalNotes  *string                    `json:"approval_notes" validate:"omitempty,max=2000"`
	GeneralNotes   *string                    `json:"general_notes" validate:"omitempty,max=4000"`
	Strokes        []StrokeMeasurementRequest `json:"strokes" validate:"omitempty,min=1,dive"`
}

// EvaluationListQuery binds the listing filters from the query string.
type EvaluationListQuery struct {
	StudentID   string `form:"student_id"`
	ProfessorID string `form:"professor_id"`
	StrokeType  string `form:"stroke_type" validate:"omitempty,oneof=front_crawl backstroke breaststroke butterfly"`
	Type        string `form:"evaluation_type" validate:"omitempty,oneof=regular level_progression"`
	DateFrom    string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo      string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page" validate:"omitempty,min=1"`
	PageSize    int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}
