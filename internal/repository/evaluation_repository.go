package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

const evaluationColumns = `id, student_id, professor_id, evaluation_date, evaluation_type, target_level, approval_status, approval_notes, general_notes, created_at, updated_at`

const evaluationDetailSelect = `SELECT e.id, e.student_id, e.professor_id, e.evaluation_date, e.evaluation_type, e.target_level, e.approval_status,
	e.approval_notes, e.general_notes, e.created_at, e.updated_at,
	s.full_name AS student_name, s.level AS student_level, p.full_name AS professor_name
FROM evaluations e
JOIN students s ON s.id = e.student_id
JOIN professors p ON p.id = e.professor_id`

// EvaluationRepository serves the read-side projections of evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs an EvaluationRepository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// GetByID returns the hydrated evaluation with its strokes.
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*models.EvaluationDetail, error) {
	var detail models.EvaluationDetail
	if err := r.db.GetContext(ctx, &detail, evaluationDetailSelect+"\nWHERE e.id = $1", id); err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	strokes, err := r.strokesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	detail.Strokes = nonNilStrokes(strokes[id])
	return &detail, nil
}

// List returns evaluations matching the filter, newest first, together with the total count.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		conditions = append(conditions, fmt.Sprintf("e.professor_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("e.evaluation_type = $%d", len(args)))
	}
	if filter.StrokeType != "" {
		args = append(args, filter.StrokeType)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM evaluation_strokes es WHERE es.evaluation_id = e.id AND es.stroke_type = $%d)", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("e.evaluation_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		// the end date covers the whole day
		args = append(args, filter.DateTo.AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("e.evaluation_date < $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY e.evaluation_date DESC, e.created_at DESC LIMIT %d OFFSET %d", evaluationDetailSelect, where, size, offset)
	var items []models.EvaluationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM evaluations e" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}

	if len(items) == 0 {
		return []models.EvaluationDetail{}, total, nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	strokes, err := r.strokesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Strokes = nonNilStrokes(strokes[items[i].ID])
	}
	return items, total, nil
}

func (r *EvaluationRepository) strokesFor(ctx context.Context, evaluationIDs []string) (map[string][]models.StrokeMeasurement, error) {
	const query = `SELECT id, evaluation_id, stroke_type, technique_score, resistance_score, time_seconds, notes
FROM evaluation_strokes WHERE evaluation_id = ANY($1) ORDER BY evaluation_id, stroke_type`
	var rows []models.StrokeMeasurement
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(evaluationIDs)); err != nil {
		return nil, fmt.Errorf("list evaluation strokes: %w", err)
	}
	grouped := make(map[string][]models.StrokeMeasurement, len(evaluationIDs))
	for _, row := range rows {
		grouped[row.EvaluationID] = append(grouped[row.EvaluationID], row)
	}
	return grouped, nil
}

func nonNilStrokes(strokes []models.StrokeMeasurement) []models.StrokeMeasurement {
	if strokes == nil {
		return []models.StrokeMeasurement{}
	}
	return strokes
}
