package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

// EvolutionRepository loads the flattened stroke history consumed by the analytics.
type EvolutionRepository struct {
	db *sqlx.DB
}

// NewEvolutionRepository constructs an EvolutionRepository.
func NewEvolutionRepository(db *sqlx.DB) *EvolutionRepository {
	return &EvolutionRepository{db: db}
}

// StrokeRecords returns the student's stroke measurements ordered by evaluation date.
// An empty stroke means all strokes; a nil since means no lower bound.
func (r *EvolutionRepository) StrokeRecords(ctx context.Context, studentID string, stroke models.StrokeType, since *time.Time) ([]models.StrokeRecord, error) {
	var query strings.Builder
	query.WriteString(`SELECT e.id AS evaluation_id, e.evaluation_date, es.stroke_type, es.technique_score, es.resistance_score, es.time_seconds
FROM evaluation_strokes es
JOIN evaluations e ON e.id = es.evaluation_id
WHERE e.student_id = $1`)
	args := []interface{}{studentID}
	if stroke != "" {
		args = append(args, stroke)
		fmt.Fprintf(&query, " AND es.stroke_type = $%d", len(args))
	}
	if since != nil {
		args = append(args, *since)
		fmt.Fprintf(&query, " AND e.evaluation_date >= $%d", len(args))
	}
	query.WriteString(" ORDER BY e.evaluation_date ASC, e.id ASC")

	records := make([]models.StrokeRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list stroke records: %w", err)
	}
	return records, nil
}

// LatestStrokeScores returns the most recent measurement of each stroke for the student.
func (r *EvolutionRepository) LatestStrokeScores(ctx context.Context, studentID string) ([]models.StrokeRecord, error) {
	const query = `SELECT DISTINCT ON (es.stroke_type)
	e.id AS evaluation_id, e.evaluation_date, es.stroke_type, es.technique_score, es.resistance_score, es.time_seconds
FROM evaluation_strokes es
JOIN evaluations e ON e.id = es.evaluation_id
WHERE e.student_id = $1
ORDER BY es.stroke_type, e.evaluation_date DESC, e.created_at DESC`
	records := make([]models.StrokeRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list latest stroke scores: %w", err)
	}
	return records, nil
}

// CohortScores returns every stroke measurement of active students currently at level,
// excluding the given student.
func (r *EvolutionRepository) CohortScores(ctx context.Context, level models.Level, excludeStudentID string) ([]models.CohortScore, error) {
	const query = `SELECT s.id AS student_id, es.stroke_type, es.technique_score, es.resistance_score
FROM evaluation_strokes es
JOIN evaluations e ON e.id = es.evaluation_id
JOIN students s ON s.id = e.student_id
WHERE s.level = $1 AND s.active = TRUE AND s.id <> $2`
	scores := make([]models.CohortScore, 0)
	if err := r.db.SelectContext(ctx, &scores, query, level, excludeStudentID); err != nil {
		return nil, fmt.Errorf("list cohort scores: %w", err)
	}
	return scores, nil
}

// CountEvaluations returns how many evaluations the student has.
func (r *EvolutionRepository) CountEvaluations(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM evaluations WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count evaluations: %w", err)
	}
	return total, nil
}
