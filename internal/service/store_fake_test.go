package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/internal/repository"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

// memoryStore is an in-memory unit of work. A failed transaction restores the state
// captured when it began.
type memoryStore struct {
	mu         sync.Mutex
	students   map[string]models.Student
	professors map[string]bool
	evals      map[string]models.Evaluation
	strokes    map[string][]models.StrokeMeasurement
	history    []models.LevelHistory
	seq        int

	conflicts int
	txCalls   int
	failOn    string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		students:   map[string]models.Student{},
		professors: map[string]bool{},
		evals:      map[string]models.Evaluation{},
		strokes:    map[string][]models.StrokeMeasurement{},
	}
}

func (m *memoryStore) addStudent(id string, level models.Level) {
	m.students[id] = models.Student{ID: id, FullName: "Student " + id, Level: level, Active: true}
}

func (m *memoryStore) addEvaluation(e models.Evaluation, strokes ...models.StrokeMeasurement) {
	m.evals[e.ID] = e
	m.strokes[e.ID] = strokes
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(tx repository.EvaluationTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	if m.conflicts > 0 {
		m.conflicts--
		return appErrors.Clone(appErrors.ErrConflict, "could not serialize access")
	}

	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	students map[string]models.Student
	evals    map[string]models.Evaluation
	strokes  map[string][]models.StrokeMeasurement
	history  []models.LevelHistory
}

func (m *memoryStore) snapshot() storeSnapshot {
	s := storeSnapshot{
		students: map[string]models.Student{},
		evals:    map[string]models.Evaluation{},
		strokes:  map[string][]models.StrokeMeasurement{},
		history:  append([]models.LevelHistory(nil), m.history...),
	}
	for k, v := range m.students {
		s.students[k] = v
	}
	for k, v := range m.evals {
		s.evals[k] = v
	}
	for k, v := range m.strokes {
		s.strokes[k] = v
	}
	return s
}

func (m *memoryStore) restore(s storeSnapshot) {
	m.students, m.evals, m.strokes, m.history = s.students, s.evals, s.strokes, s.history
}

func (m *memoryStore) LockStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, ok := m.students[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (m *memoryStore) ProfessorExists(ctx context.Context, professorID string) (bool, error) {
	return m.professors[professorID], nil
}

func (m *memoryStore) GetEvaluationForUpdate(ctx context.Context, id string) (*models.Evaluation, error) {
	e, ok := m.evals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *memoryStore) InsertEvaluation(ctx context.Context, e *models.Evaluation) error {
	e.ID = m.nextID("eval")
	m.evals[e.ID] = *e
	return nil
}

func (m *memoryStore) UpdateEvaluation(ctx context.Context, e *models.Evaluation) error {
	if _, ok := m.evals[e.ID]; !ok {
		return sql.ErrNoRows
	}
	m.evals[e.ID] = *e
	return nil
}

func (m *memoryStore) ReplaceStrokes(ctx context.Context, evaluationID string, strokes []models.StrokeMeasurement) error {
	if m.failOn == "strokes" {
		return fmt.Errorf("insert strokes: boom")
	}
	copied := make([]models.StrokeMeasurement, len(strokes))
	for i, s := range strokes {
		s.ID = m.nextID("stroke")
		s.EvaluationID = evaluationID
		copied[i] = s
	}
	m.strokes[evaluationID] = copied
	return nil
}

func (m *memoryStore) DeleteEvaluation(ctx context.Context, id string) error {
	delete(m.evals, id)
	delete(m.strokes, id)
	return nil
}

func (m *memoryStore) RefreshLastEvaluationDate(ctx context.Context, studentID string) (*time.Time, error) {
	var latest *time.Time
	for _, e := range m.evals {
		if e.StudentID != studentID {
			continue
		}
		if latest == nil || e.EvaluationDate.After(*latest) {
			d := e.EvaluationDate
			latest = &d
		}
	}
	student := m.students[studentID]
	student.LastEvaluationDate = latest
	m.students[studentID] = student
	return latest, nil
}

func (m *memoryStore) UpdateStudentLevel(ctx context.Context, studentID string, level models.Level) error {
	student, ok := m.students[studentID]
	if !ok {
		return sql.ErrNoRows
	}
	student.Level = level
	m.students[studentID] = student
	return nil
}

func (m *memoryStore) InsertLevelHistory(ctx context.Context, record *models.LevelHistory) error {
	if m.failOn == "history" {
		return fmt.Errorf("insert level history: boom")
	}
	record.ID = m.nextID("history")
	record.ChangedAt = time.Date(2026, 10, 1, 0, 0, 0, m.seq, time.UTC)
	m.history = append(m.history, *record)
	return nil
}

func (m *memoryStore) InsertStudent(ctx context.Context, student *models.Student) error {
	student.ID = m.nextID("student")
	m.students[student.ID] = *student
	return nil
}

// evaluationReader

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.EvaluationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.evals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EvaluationDetail{
		Evaluation:   e,
		StudentName:  m.students[e.StudentID].FullName,
		StudentLevel: m.students[e.StudentID].Level,
		Strokes:      m.strokes[id],
	}, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.EvaluationDetail{}
	for _, e := range m.evals {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		items = append(items, models.EvaluationDetail{Evaluation: e, Strokes: m.strokes[e.ID]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EvaluationDate.After(items[j].EvaluationDate) })
	return items, len(items), nil
}

// student reads

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (m *memoryStore) ListLevelHistory(ctx context.Context, studentID string) ([]models.LevelHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LevelHistory{}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].StudentID == studentID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu          sync.Mutex
	evaluations []models.EvaluationEvent
	students    []models.StudentEvent
}

func (n *recordingNotifier) EvaluationChanged(ctx context.Context, event models.EvaluationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.evaluations = append(n.evaluations, event)
}

func (n *recordingNotifier) StudentChanged(ctx context.Context, event models.StudentEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.students = append(n.students, event)
}

type recordingInvalidator struct {
	students []string
}

func (r *recordingInvalidator) InvalidateStudent(ctx context.Context, studentID string) {
	r.students = append(r.students, studentID)
}
