package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/swim-eval-api/internal/models"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

const defaultProgressionReason = "Level progression approved"

// levelWriter is the part of the unit of work the state machine writes through.
type levelWriter interface {
	UpdateStudentLevel(ctx context.Context, studentID string, level models.Level) error
	InsertLevelHistory(ctx context.Context, record *models.LevelHistory) error
}

// ProgressionMachine moves a student one level up or down when a level progression
// evaluation is approved. It never opens its own transaction; callers pass the one the
// triggering evaluation write runs in.
type ProgressionMachine struct{}

// NewProgressionMachine constructs the state machine.
func NewProgressionMachine() *ProgressionMachine {
	return &ProgressionMachine{}
}

// ValidateTarget checks a requested target against the student's current level.
func (m *ProgressionMachine) ValidateTarget(current models.Level, target *models.Level) error {
	if target == nil {
		return appErrors.Clone(appErrors.ErrValidation, "target_level is required for level_progression evaluations")
	}
	if !target.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target level %q", *target))
	}
	if *target == current {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("student is already %s", current))
	}
	if d := current.Distance(*target); d != 1 && d != -1 {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move from %s to %s: levels change one step at a time", current, *target))
	}
	return nil
}

// Apply commits the transition requested by evaluation for the locked student. It
// returns nil without writing when the student already sits at the target level.
// student.Level is updated in place on success.
func (m *ProgressionMachine) Apply(ctx context.Context, tx levelWriter, student *models.Student, evaluation *models.Evaluation) (*models.LevelHistory, error) {
	if evaluation.TargetLevel == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_level is required for level_progression evaluations")
	}
	target := *evaluation.TargetLevel
	if target == student.Level {
		return nil, nil
	}
	if err := m.ValidateTarget(student.Level, &target); err != nil {
		return nil, err
	}

	if err := tx.UpdateStudentLevel(ctx, student.ID, target); err != nil {
		return nil, err
	}

	reason := defaultProgressionReason
	if evaluation.ApprovalNotes != nil && strings.TrimSpace(*evaluation.ApprovalNotes) != "" {
		reason = strings.TrimSpace(*evaluation.ApprovalNotes)
	}
	actor := evaluation.ProfessorID
	record := &models.LevelHistory{
		StudentID: student.ID,
		FromLevel: models.LevelPtr(student.Level),
		ToLevel:   target,
		Reason:    reason,
		ChangedBy: &actor,
	}
	if err := tx.InsertLevelHistory(ctx, record); err != nil {
		return nil, err
	}

	student.Level = target
	return record, nil
}

// shouldFire reports whether an approval status change is the edge that triggers the
// machine.
func shouldFire(evaluation *models.Evaluation, previous models.ApprovalStatus) bool {
	return evaluation.IsProgression() &&
		evaluation.ApprovalStatus == models.ApprovalApproved &&
		previous != models.ApprovalApproved
}
