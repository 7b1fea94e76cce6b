package models

import "time"

// Student is a swimmer whose level is owned by the progression workflow.
type Student struct {
	ID                 string     `db:"id" json:"id"`
	FullName           string     `db:"full_name" json:"full_name"`
	Level              Level      `db:"level" json:"level"`
	LastEvaluationDate *time.Time `db:"last_evaluation_date" json:"last_evaluation_date"`
	Active             bool       `db:"active" json:"active"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentSummary is the denormalised student view embedded in evaluations.
type StudentSummary struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Level    Level  `db:"level" json:"level"`
}

// LevelHistory is an immutable audit record of a level assignment or transition.
// FromLevel is nil only for the initial assignment.
type LevelHistory struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	FromLevel *Level    `db:"from_level" json:"from_level"`
	ToLevel   Level     `db:"to_level" json:"to_level"`
	Reason    string    `db:"reason" json:"reason"`
	ChangedBy *string   `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}
