package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

// StudentRepository reads student records and their level history. Writes that touch
// the level go through EvaluationTx so history never diverges from the level.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, full_name, level, last_evaluation_date, active, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ListLevelHistory returns the student's level history, newest first.
func (r *StudentRepository) ListLevelHistory(ctx context.Context, studentID string) ([]models.LevelHistory, error) {
	const query = `SELECT id, student_id, from_level, to_level, reason, changed_by, changed_at
FROM level_history WHERE student_id = $1 ORDER BY changed_at DESC, id DESC`
	history := make([]models.LevelHistory, 0)
	if err := r.db.SelectContext(ctx, &history, query, studentID); err != nil {
		return nil, fmt.Errorf("list level history: %w", err)
	}
	return history, nil
}
