package models

import "time"

// ChangeKind names what happened to an entity.
type ChangeKind string

const (
	ChangeCreated      ChangeKind = "created"
	ChangeUpdated      ChangeKind = "updated"
	ChangeDeleted      ChangeKind = "deleted"
	ChangeLevelChanged ChangeKind = "level_changed"
)

// EvaluationEvent is emitted after an evaluation write commits.
type EvaluationEvent struct {
	Kind           ChangeKind     `json:"kind"`
	EvaluationID   string         `json:"evaluation_id"`
	StudentID      string         `json:"student_id"`
	ProfessorID    string         `json:"professor_id"`
	Type           EvaluationType `json:"evaluation_type"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// StudentEvent is emitted after a student is created or changes level.
type StudentEvent struct {
	Kind       ChangeKind `json:"kind"`
	StudentID  string     `json:"student_id"`
	FromLevel  *Level     `json:"from_level,omitempty"`
	Level      Level      `json:"level"`
	ChangedBy  *string    `json:"changed_by,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
