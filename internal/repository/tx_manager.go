package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/pkg/database"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

// EvaluationTx is the set of writes that must commit or roll back together when an
// evaluation, its strokes, the student's level and the level history change.
type EvaluationTx interface {
	LockStudent(ctx context.Context, studentID string) (*models.Student, error)
	ProfessorExists(ctx context.Context, professorID string) (bool, error)
	GetEvaluationForUpdate(ctx context.Context, id string) (*models.Evaluation, error)
	InsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	UpdateEvaluation(ctx context.Context, evaluation *models.Evaluation) error
	ReplaceStrokes(ctx context.Context, evaluationID string, strokes []models.StrokeMeasurement) error
	DeleteEvaluation(ctx context.Context, id string) error
	RefreshLastEvaluationDate(ctx context.Context, studentID string) (*time.Time, error)
	UpdateStudentLevel(ctx context.Context, studentID string, level models.Level) error
	InsertLevelHistory(ctx context.Context, record *models.LevelHistory) error
	InsertStudent(ctx context.Context, student *models.Student) error
}

// TxManager opens serializable transactions and hands an EvaluationTx to callers.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn inside one SERIALIZABLE transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Serialization and lock failures surface as
// ErrConflict so the caller can retry; constraint violations surface as NotFound or
// Validation and are not retried.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx EvaluationTx) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin evaluation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&evaluationTx{tx: tx}); err != nil {
		return mapTxError(err)
	}
	if err = tx.Commit(); err != nil {
		return mapTxError(fmt.Errorf("commit evaluation transaction: %w", err))
	}
	return nil
}

func mapTxError(err error) error {
	switch {
	case database.IsConcurrencyConflict(err):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent update on student, retry the request")
	case database.IsForeignKeyViolation(err):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "referenced student or professor does not exist")
	case database.IsUniqueViolation(err):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "duplicate record")
	}
	return err
}

type evaluationTx struct {
	tx *sqlx.Tx
}

func (t *evaluationTx) LockStudent(ctx context.Context, studentID string) (*models.Student, error) {
	const query = `SELECT id, full_name, level, last_evaluation_date, active, created_at, updated_at FROM students WHERE id = $1 FOR UPDATE`
	var student models.Student
	if err := t.tx.GetContext(ctx, &student, query, studentID); err != nil {
		return nil, fmt.Errorf("lock student: %w", err)
	}
	return &student, nil
}

func (t *evaluationTx) ProfessorExists(ctx context.Context, professorID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM professors WHERE id = $1)`
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, professorID); err != nil {
		return false, fmt.Errorf("check professor: %w", err)
	}
	return exists, nil
}

func (t *evaluationTx) GetEvaluationForUpdate(ctx context.Context, id string) (*models.Evaluation, error) {
	const query = `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = $1 FOR UPDATE`
	var evaluation models.Evaluation
	if err := t.tx.GetContext(ctx, &evaluation, query, id); err != nil {
		return nil, fmt.Errorf("lock evaluation: %w", err)
	}
	return &evaluation, nil
}

func (t *evaluationTx) InsertEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	evaluation.CreatedAt = now
	evaluation.UpdatedAt = now
	const query = `INSERT INTO evaluations (id, student_id, professor_id, evaluation_date, evaluation_type, target_level, approval_status, approval_notes, general_notes, created_at, updated_at)
VALUES (:id, :student_id, :professor_id, :evaluation_date, :evaluation_type, :target_level, :approval_status, :approval_notes, :general_notes, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, evaluation); err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (t *evaluationTx) UpdateEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	evaluation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE evaluations SET evaluation_date = :evaluation_date, evaluation_type = :evaluation_type, target_level = :target_level,
approval_status = :approval_status, approval_notes = :approval_notes, general_notes = :general_notes, updated_at = :updated_at
WHERE id = :id`
	res, err := t.tx.NamedExecContext(ctx, query, evaluation)
	if err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	return requireAffected(res, "update evaluation")
}

// ReplaceStrokes deletes every stroke of the evaluation and inserts the new set.
func (t *evaluationTx) ReplaceStrokes(ctx context.Context, evaluationID string, strokes []models.StrokeMeasurement) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM evaluation_strokes WHERE evaluation_id = $1`, evaluationID); err != nil {
		return fmt.Errorf("delete evaluation strokes: %w", err)
	}
	const query = `INSERT INTO evaluation_strokes (id, evaluation_id, stroke_type, technique_score, resistance_score, time_seconds, notes)
VALUES (:id, :evaluation_id, :stroke_type, :technique_score, :resistance_score, :time_seconds, :notes)`
	for i := range strokes {
		strokes[i].EvaluationID = evaluationID
		if strokes[i].ID == "" {
			strokes[i].ID = uuid.NewString()
		}
		if _, err := t.tx.NamedExecContext(ctx, query, &strokes[i]); err != nil {
			return fmt.Errorf("insert evaluation stroke: %w", err)
		}
	}
	return nil
}

func (t *evaluationTx) DeleteEvaluation(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	return requireAffected(res, "delete evaluation")
}

// RefreshLastEvaluationDate recomputes the student's last evaluation date from the
// remaining evaluations and returns the stored value (nil when none remain).
func (t *evaluationTx) RefreshLastEvaluationDate(ctx context.Context, studentID string) (*time.Time, error) {
	const query = `UPDATE students SET last_evaluation_date = (SELECT MAX(evaluation_date) FROM evaluations WHERE student_id = $1), updated_at = $2
WHERE id = $1 RETURNING last_evaluation_date`
	var last sql.NullTime
	if err := t.tx.GetContext(ctx, &last, query, studentID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("refresh last evaluation date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (t *evaluationTx) UpdateStudentLevel(ctx context.Context, studentID string, level models.Level) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE students SET level = $1, updated_at = $2 WHERE id = $3`, level, time.Now().UTC(), studentID)
	if err != nil {
		return fmt.Errorf("update student level: %w", err)
	}
	return requireAffected(res, "update student level")
}

func (t *evaluationTx) InsertLevelHistory(ctx context.Context, record *models.LevelHistory) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ChangedAt.IsZero() {
		record.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO level_history (id, student_id, from_level, to_level, reason, changed_by, changed_at)
VALUES (:id, :student_id, :from_level, :to_level, :reason, :changed_by, :changed_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert level history: %w", err)
	}
	return nil
}

func (t *evaluationTx) InsertStudent(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, full_name, level, last_evaluation_date, active, created_at, updated_at)
VALUES (:id, :full_name, :level, :last_evaluation_date, :active, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

// IsNotFound reports whether err means the addressed row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
