package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-eval-api/internal/models"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

var studentColumns = []string{"id", "full_name", "level", "last_evaluation_date", "active", "created_at", "updated_at"}

func TestTxManagerCommitsOnSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows(studentColumns).AddRow("student-1", "Ana", "intermediate", nil, true, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET level = $1")).
		WithArgs(models.LevelAdvanced, sqlmock.AnyArg(), "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO level_history").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		student, err := tx.LockStudent(context.Background(), "student-1")
		if err != nil {
			return err
		}
		assert.Equal(t, models.LevelIntermediate, student.Level)
		assert.Nil(t, student.LastEvaluationDate)
		if err := tx.UpdateStudentLevel(context.Background(), student.ID, models.LevelAdvanced); err != nil {
			return err
		}
		return tx.InsertLevelHistory(context.Background(), &models.LevelHistory{
			StudentID: student.ID,
			FromLevel: models.LevelPtr(models.LevelIntermediate),
			ToLevel:   models.LevelAdvanced,
			Reason:    "approved",
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerMapsSerializationFailureToConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("student-1").
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		_, err := tx.LockStudent(context.Background(), "student-1")
		return err
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerMapsConstraintViolations(t *testing.T) {
	cases := []struct {
		code pq.ErrorCode
		want *appErrors.Error
	}{
		{"23503", appErrors.ErrNotFound},
		{"23505", appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			db, mock, cleanup := newRepoMock(t)
			defer cleanup()

			mock.ExpectBegin()
			mock.ExpectRollback()

			err := NewTxManager(db).WithinTx(context.Background(), func(tx EvaluationTx) error {
				return fmt.Errorf("insert evaluation: %w", &pq.Error{Code: tc.code})
			})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want))
			assert.False(t, appErrors.Is(err, appErrors.ErrConflict))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEvaluationTxReplaceStrokes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluation_strokes WHERE evaluation_id = $1")).
		WithArgs("eval-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO evaluation_strokes").
		WithArgs(sqlmock.AnyArg(), "eval-1", models.StrokeFrontCrawl, 7, 6, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO evaluation_strokes").
		WithArgs(sqlmock.AnyArg(), "eval-1", models.StrokeButterfly, 4, 5, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	strokes := []models.StrokeMeasurement{
		{StrokeType: models.StrokeFrontCrawl, TechniqueScore: 7, ResistanceScore: 6},
		{StrokeType: models.StrokeButterfly, TechniqueScore: 4, ResistanceScore: 5},
	}
	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		return tx.ReplaceStrokes(context.Background(), "eval-1", strokes)
	})
	require.NoError(t, err)
	for _, stroke := range strokes {
		assert.NotEmpty(t, stroke.ID)
		assert.Equal(t, "eval-1", stroke.EvaluationID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationTxDeleteAndRefresh(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)
	remaining := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluations WHERE id = $1")).
		WithArgs("eval-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET last_evaluation_date = (SELECT MAX(evaluation_date)")).
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"last_evaluation_date"}).AddRow(remaining))
	mock.ExpectCommit()

	var last *time.Time
	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		if err := tx.DeleteEvaluation(context.Background(), "eval-2"); err != nil {
			return err
		}
		var err error
		last, err = tx.RefreshLastEvaluationDate(context.Background(), "student-1")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, remaining.Equal(*last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationTxRefreshWithoutRemainingEvaluations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("RETURNING last_evaluation_date")).
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"last_evaluation_date"}).AddRow(nil))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		last, err := tx.RefreshLastEvaluationDate(context.Background(), "student-1")
		assert.Nil(t, last)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationTxDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluations WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		return tx.DeleteEvaluation(context.Background(), "missing")
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationTxInsertEvaluationAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	manager := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM professors WHERE id = $1)")).
		WithArgs("prof-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO evaluations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	evaluation := &models.Evaluation{
		StudentID:      "student-1",
		ProfessorID:    "prof-1",
		EvaluationDate: time.Now(),
		Type:           models.EvaluationTypeRegular,
		ApprovalStatus: models.ApprovalPending,
	}
	err := manager.WithinTx(context.Background(), func(tx EvaluationTx) error {
		exists, err := tx.ProfessorExists(context.Background(), "prof-1")
		if err != nil {
			return err
		}
		assert.True(t, exists)
		return tx.InsertEvaluation(context.Background(), evaluation)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, evaluation.ID)
	assert.False(t, evaluation.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
