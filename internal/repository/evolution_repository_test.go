package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/swim-eval-api/internal/models"
)

var strokeRecordColumns = []string{"evaluation_id", "evaluation_date", "stroke_type", "technique_score", "resistance_score", "time_seconds"}

func TestEvolutionRepositoryStrokeRecordsWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvolutionRepository(db)
	since := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND es.stroke_type = $2 AND e.evaluation_date >= $3 ORDER BY e.evaluation_date ASC, e.id ASC")).
		WithArgs("student-1", models.StrokeBackstroke, since).
		WillReturnRows(sqlmock.NewRows(strokeRecordColumns).
			AddRow("eval-1", since.AddDate(0, 0, 3), "backstroke", 5, 6, nil).
			AddRow("eval-2", since.AddDate(0, 1, 0), "backstroke", 6, 6, 55.2))

	records, err := repo.StrokeRecords(context.Background(), "student-1", models.StrokeBackstroke, &since)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.StrokeBackstroke, records[1].StrokeType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvolutionRepositoryStrokeRecordsAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvolutionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 ORDER BY e.evaluation_date ASC")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows(strokeRecordColumns))

	records, err := repo.StrokeRecords(context.Background(), "student-1", "", nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvolutionRepositoryCohortScores(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvolutionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.level = $1 AND s.active = TRUE AND s.id <> $2")).
		WithArgs(models.LevelIntermediate, "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "stroke_type", "technique_score", "resistance_score"}).
			AddRow("student-2", "front_crawl", 6, 7))

	scores, err := repo.CohortScores(context.Background(), models.LevelIntermediate, "student-1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 7, scores[0].ResistanceScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvolutionRepositoryLatestAndCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvolutionRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (es.stroke_type)")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows(strokeRecordColumns).AddRow("eval-9", now, "butterfly", 3, 4, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM evaluations WHERE student_id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	latest, err := repo.LatestStrokeScores(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, models.StrokeButterfly, latest[0].StrokeType)

	total, err := repo.CountEvaluations(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
