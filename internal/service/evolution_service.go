package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/swim-eval-api/internal/evolution"
	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/pkg/config"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

type evolutionStore interface {
	StrokeRecords(ctx context.Context, studentID string, stroke models.StrokeType, since *time.Time) ([]models.StrokeRecord, error)
	LatestStrokeScores(ctx context.Context, studentID string) ([]models.StrokeRecord, error)
	CohortScores(ctx context.Context, level models.Level, excludeStudentID string) ([]models.CohortScore, error)
	CountEvaluations(ctx context.Context, studentID string) (int, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// EvolutionService serves the read-side progression analytics. Only payloads that
// depend solely on the student's own evaluations are cached; cohort comparisons are
// always computed live.
type EvolutionService struct {
	store    evolutionStore
	students studentReader
	cache    analyticsCache
	metrics  *MetricsService
	cfg      config.EvolutionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewEvolutionService constructs an EvolutionService.
func NewEvolutionService(store evolutionStore, students studentReader, cache analyticsCache, metrics *MetricsService, cfg config.EvolutionConfig, logger *zap.Logger) *EvolutionService {
	if cfg.CadenceDays <= 0 {
		cfg.CadenceDays = int(evolution.DefaultCadenceDays)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvolutionService{
		store:    store,
		students: students,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// EvolutionParams scopes an analytics request. Empty values mean every stroke and the
// whole history.
type EvolutionParams struct {
	StrokeType string
	TimeRange  string
}

type scope struct {
	stroke    models.StrokeType
	timeRange models.TimeRange
}

func parseScope(params EvolutionParams) (scope, error) {
	sc := scope{stroke: models.StrokeType(params.StrokeType)}
	if sc.stroke != "" && !sc.stroke.Valid() {
		return sc, appErrors.Clone(appErrors.ErrValidation, "unknown stroke_type")
	}
	timeRange, ok := models.ParseTimeRange(params.TimeRange)
	if !ok {
		return sc, appErrors.Clone(appErrors.ErrValidation, "time_range must be one of 3months, 6months, 1year, all")
	}
	sc.timeRange = timeRange
	return sc, nil
}

func (sc scope) strokeKey() string {
	if sc.stroke == "" {
		return "all"
	}
	return string(sc.stroke)
}

// Data returns the raw per-stroke time series.
func (s *EvolutionService) Data(ctx context.Context, studentID string, params EvolutionParams, actor *models.JWTClaims) (*models.EvolutionData, bool, error) {
	if err := authorizeStudentRead(actor, studentID); err != nil {
		return nil, false, err
	}
	sc, err := parseScope(params)
	if err != nil {
		return nil, false, err
	}
	key := EvolutionCacheKey(studentID, "data", sc.strokeKey(), string(sc.timeRange))
	var cached models.EvolutionData
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	if _, err := findStudent(ctx, s.students, studentID); err != nil {
		return nil, false, err
	}
	records, err := s.records(ctx, studentID, sc)
	if err != nil {
		return nil, false, err
	}
	data := &models.EvolutionData{
		StudentID: studentID,
		TimeRange: sc.timeRange,
		Series:    evolution.BuildSeries(records),
	}
	s.cacheSet(ctx, key, data)
	return data, false, nil
}

// Metrics returns trends, predictions and milestones per stroke.
func (s *EvolutionService) Metrics(ctx context.Context, studentID string, params EvolutionParams, actor *models.JWTClaims) (*models.EvolutionMetrics, bool, error) {
	if err := authorizeStudentRead(actor, studentID); err != nil {
		return nil, false, err
	}
	sc, err := parseScope(params)
	if err != nil {
		return nil, false, err
	}
	key := EvolutionCacheKey(studentID, "metrics", sc.strokeKey(), string(sc.timeRange))
	var cached models.EvolutionMetrics
	if s.cacheGet(ctx, key, &cached) {
		return &cached, true, nil
	}

	student, err := findStudent(ctx, s.students, studentID)
	if err != nil {
		return nil, false, err
	}
	metrics, err := s.computeMetrics(ctx, student, sc)
	if err != nil {
		return nil, false, err
	}
	s.cacheSet(ctx, key, metrics)
	return metrics, false, nil
}

// Trends is Metrics over the whole history.
func (s *EvolutionService) Trends(ctx context.Context, studentID, stroke string, actor *models.JWTClaims) (*models.EvolutionMetrics, bool, error) {
	return s.Metrics(ctx, studentID, EvolutionParams{StrokeType: stroke, TimeRange: string(models.TimeRangeAll)}, actor)
}

// Comparative ranks the student's latest stroke scores against peers at the same level.
func (s *EvolutionService) Comparative(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ComparativeAnalysis, error) {
	if err := authorizeStudentRead(actor, studentID); err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.students, studentID)
	if err != nil {
		return nil, err
	}
	return s.computeComparative(ctx, student)
}

// Summary aggregates metrics and the comparison into recommendations.
func (s *EvolutionService) Summary(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.EvolutionSummary, error) {
	if err := authorizeStudentRead(actor, studentID); err != nil {
		return nil, err
	}
	start := time.Now()
	student, err := findStudent(ctx, s.students, studentID)
	if err != nil {
		return nil, err
	}

	var (
		metrics     *models.EvolutionMetrics
		comparative *models.ComparativeAnalysis
		total       int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metrics, err = s.computeMetrics(gCtx, student, scope{timeRange: models.TimeRangeAll})
		return err
	})
	g.Go(func() error {
		var err error
		comparative, err = s.computeComparative(gCtx, student)
		return err
	})
	g.Go(func() error {
		var err error
		if total, err = s.store.CountEvaluations(gCtx, student.ID); err != nil {
			return internal(err, "failed to count evaluations")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := evolution.BuildSummary(evolution.SummaryInput{
		Student:          *student,
		Metrics:          *metrics,
		Comparative:      comparative.Strokes,
		TotalEvaluations: total,
		Now:              s.now().UTC(),
	})
	s.metrics.ObserveAnalytics("summary", time.Since(start))
	return &summary, nil
}

func (s *EvolutionService) computeMetrics(ctx context.Context, student *models.Student, sc scope) (*models.EvolutionMetrics, error) {
	start := time.Now()
	records, err := s.records(ctx, student.ID, sc)
	if err != nil {
		return nil, err
	}
	series := evolution.BuildSeries(records)
	cadence := s.cadence(records)

	strokes := make([]models.StrokeEvolution, len(series))
	g, gCtx := errgroup.WithContext(ctx)
	for i, item := range series {
		i, item := i, item
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			strokes[i] = analyzeStroke(item, student.Level, cadence)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.metrics.ObserveAnalytics("metrics", time.Since(start))
	return &models.EvolutionMetrics{
		StudentID:   student.ID,
		Level:       student.Level,
		TimeRange:   sc.timeRange,
		CadenceDays: cadence,
		GeneratedAt: s.now().UTC(),
		Strokes:     strokes,
	}, nil
}

func analyzeStroke(series models.StrokeSeries, level models.Level, cadence float64) models.StrokeEvolution {
	result := models.StrokeEvolution{
		StrokeType: series.StrokeType,
		Points:     len(series.Points),
		Trends:     evolution.AnalyzeStroke(series.Points),
		Milestones: evolution.DetectMilestones(series.StrokeType, series.Points),
	}
	if len(series.Points) == 0 {
		return result
	}
	latest := series.Points[len(series.Points)-1]
	prediction := evolution.Predict(latest, result.Trends, level, cadence)
	result.Latest = &latest
	result.Prediction = &prediction
	return result
}

func (s *EvolutionService) computeComparative(ctx context.Context, student *models.Student) (*models.ComparativeAnalysis, error) {
	start := time.Now()
	latest, err := s.store.LatestStrokeScores(ctx, student.ID)
	if err != nil {
		return nil, internal(err, "failed to load latest scores")
	}
	cohort, err := s.store.CohortScores(ctx, student.Level, student.ID)
	if err != nil {
		return nil, internal(err, "failed to load cohort scores")
	}

	byStroke := make(map[models.StrokeType]models.StrokeRecord, len(latest))
	for _, record := range latest {
		byStroke[record.StrokeType] = record
	}
	strokes := make([]models.ComparativeStroke, 0, len(byStroke))
	for _, stroke := range models.StrokeTypes {
		record, ok := byStroke[stroke]
		if !ok {
			continue
		}
		strokes = append(strokes, evolution.Compare(stroke, record.TechniqueScore, record.ResistanceScore, cohort))
	}

	s.metrics.ObserveAnalytics("comparative", time.Since(start))
	return &models.ComparativeAnalysis{
		StudentID:   student.ID,
		Level:       student.Level,
		GeneratedAt: s.now().UTC(),
		Strokes:     strokes,
	}, nil
}

func (s *EvolutionService) records(ctx context.Context, studentID string, sc scope) ([]models.StrokeRecord, error) {
	records, err := s.store.StrokeRecords(ctx, studentID, sc.stroke, sc.timeRange.Since(s.now()))
	if err != nil {
		return nil, internal(err, "failed to load evaluation history")
	}
	return records, nil
}

func (s *EvolutionService) cadence(records []models.StrokeRecord) float64 {
	fixed := float64(s.cfg.CadenceDays)
	if s.cfg.CadenceMode != config.CadenceModeDerived {
		return fixed
	}
	dates := make([]time.Time, len(records))
	for i, record := range records {
		dates[i] = record.EvaluationDate
	}
	return evolution.DeriveCadence(dates, fixed)
}

func (s *EvolutionService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *EvolutionService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, value, s.cfg.CacheTTL)
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
