package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-eval-api/internal/dto"
	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/internal/repository"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

const defaultTxAttempts = 3

type evaluationReader interface {
	GetByID(ctx context.Context, id string) (*models.EvaluationDetail, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error)
}

type unitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx repository.EvaluationTx) error) error
}

type analyticsInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

// EvaluationService records evaluations and drives level progression. Every write runs
// in one serializable unit of work together with its progression side effects.
type EvaluationService struct {
	reader     evaluationReader
	uow        unitOfWork
	machine    *ProgressionMachine
	cache      analyticsInvalidator
	notifier   Notifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	txAttempts int
	now        func() time.Time
}

// NewEvaluationService wires the service with sane defaults for optional collaborators.
func NewEvaluationService(
	reader evaluationReader,
	uow unitOfWork,
	cache analyticsInvalidator,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EvaluationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		reader:     reader,
		uow:        uow,
		machine:    NewProgressionMachine(),
		cache:      cache,
		notifier:   notifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		txAttempts: defaultTxAttempts,
		now:        time.Now,
	}
}

// writeOutcome carries what a committed write changed, for post-commit side effects.
type writeOutcome struct {
	evaluation models.Evaluation
	fired      bool
	transition *models.LevelHistory
}

// Create validates and records a new evaluation. An approved level progression
// evaluation moves the student in the same transaction.
func (s *EvaluationService) Create(ctx context.Context, req dto.CreateEvaluationRequest, actor *models.JWTClaims) (*models.EvaluationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	evaluation, err := s.buildEvaluation(req, actor)
	if err != nil {
		return nil, err
	}
	strokes, err := toStrokes(req.Strokes)
	if err != nil {
		return nil, err
	}

	var out writeOutcome
	err = s.inTx(ctx, func(tx repository.EvaluationTx) error {
		out = writeOutcome{}
		student, err := lockStudent(ctx, tx, evaluation.StudentID)
		if err != nil {
			return err
		}
		exists, err := tx.ProfessorExists(ctx, evaluation.ProfessorID)
		if err != nil {
			return err
		}
		if !exists {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		if evaluation.IsProgression() {
			if err := s.machine.ValidateTarget(student.Level, evaluation.TargetLevel); err != nil {
				return err
			}
		}

		if err := tx.InsertEvaluation(ctx, evaluation); err != nil {
			return err
		}
		if err := tx.ReplaceStrokes(ctx, evaluation.ID, strokes); err != nil {
			return err
		}
		if _, err := tx.RefreshLastEvaluationDate(ctx, student.ID); err != nil {
			return err
		}
		if shouldFire(evaluation, models.ApprovalPending) {
			out.fired = true
			if out.transition, err = s.machine.Apply(ctx, tx, student, evaluation); err != nil {
				return err
			}
		}
		out.evaluation = *evaluation
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "failed to create evaluation")
	}

	s.afterCommit(ctx, models.ChangeCreated, out)
	return s.load(ctx, out.evaluation.ID)
}

// Update applies a partial change. Supplied strokes replace the previous set. Moving a
// level progression evaluation into APPROVED fires the state machine once.
func (s *EvaluationService) Update(ctx context.Context, id string, req dto.UpdateEvaluationRequest, actor *models.JWTClaims) (*models.EvaluationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	var strokes []models.StrokeMeasurement
	if req.Strokes != nil {
		var err error
		if strokes, err = toStrokes(req.Strokes); err != nil {
			return nil, err
		}
	}

	var out writeOutcome
	err := s.inTx(ctx, func(tx repository.EvaluationTx) error {
		out = writeOutcome{}
		current, err := tx.GetEvaluationForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
			}
			return err
		}
		if err := authorizeWrite(actor, current); err != nil {
			return err
		}
		student, err := lockStudent(ctx, tx, current.StudentID)
		if err != nil {
			return err
		}

		previous := current.ApprovalStatus
		updated := *current
		retargeted, err := applyUpdate(&updated, req)
		if err != nil {
			return err
		}
		if current.IsProgression() && previous == models.ApprovalApproved &&
			(retargeted || updated.ApprovalStatus != models.ApprovalApproved) {
			return appErrors.Clone(appErrors.ErrValidation, "an approved level progression evaluation cannot be retargeted or reopened")
		}
		// The machine only fires on the edge into APPROVED, so an approved evaluation
		// must pass through another status before it can become a progression.
		if !current.IsProgression() && updated.IsProgression() &&
			previous == models.ApprovalApproved && updated.ApprovalStatus == models.ApprovalApproved {
			return appErrors.Clone(appErrors.ErrValidation, "an approved evaluation cannot become a level progression without re-approval")
		}
		if updated.IsProgression() && retargeted {
			if err := s.machine.ValidateTarget(student.Level, updated.TargetLevel); err != nil {
				return err
			}
		}

		if err := tx.UpdateEvaluation(ctx, &updated); err != nil {
			return err
		}
		if strokes != nil {
			if err := tx.ReplaceStrokes(ctx, updated.ID, strokes); err != nil {
				return err
			}
		}
		if req.EvaluationDate != nil {
			if _, err := tx.RefreshLastEvaluationDate(ctx, student.ID); err != nil {
				return err
			}
		}
		if shouldFire(&updated, previous) {
			out.fired = true
			if out.transition, err = s.machine.Apply(ctx, tx, student, &updated); err != nil {
				return err
			}
		}
		out.evaluation = updated
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "failed to update evaluation")
	}

	s.afterCommit(ctx, models.ChangeUpdated, out)
	return s.load(ctx, id)
}

// Delete removes the evaluation and its strokes and recomputes the student's last
// evaluation date. Level history is never rewritten.
func (s *EvaluationService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	var out writeOutcome
	err := s.inTx(ctx, func(tx repository.EvaluationTx) error {
		out = writeOutcome{}
		current, err := tx.GetEvaluationForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
			}
			return err
		}
		if err := authorizeWrite(actor, current); err != nil {
			return err
		}
		if _, err := lockStudent(ctx, tx, current.StudentID); err != nil {
			return err
		}
		if err := tx.DeleteEvaluation(ctx, id); err != nil {
			return err
		}
		if _, err := tx.RefreshLastEvaluationDate(ctx, current.StudentID); err != nil {
			return err
		}
		out.evaluation = *current
		return nil
	})
	if err != nil {
		return s.writeError(err, "failed to delete evaluation")
	}

	s.afterCommit(ctx, models.ChangeDeleted, out)
	return nil
}

// Get returns a hydrated evaluation. Students may only read their own.
func (s *EvaluationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EvaluationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && detail.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// List returns evaluations for the filter. Students are scoped to their own records.
func (s *EvaluationService) List(ctx context.Context, query dto.EvaluationListQuery, actor *models.JWTClaims) ([]models.EvaluationDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation filters")
	}
	filter, err := toFilter(query)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}

	items, total, err := s.reader.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *EvaluationService) load(ctx context.Context, id string) (*models.EvaluationDetail, error) {
	detail, err := s.reader.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return detail, nil
}

// inTx runs fn in a unit of work, retrying a bounded number of times when a concurrent
// writer wins. fn must reset any state it captures.
func (s *EvaluationService) inTx(ctx context.Context, fn func(tx repository.EvaluationTx) error) error {
	var err error
	for attempt := 1; attempt <= s.txAttempts; attempt++ {
		err = s.uow.WithinTx(ctx, fn)
		if err == nil || !appErrors.Is(err, appErrors.ErrConflict) || ctx.Err() != nil {
			return err
		}
		s.metrics.RecordTxConflict()
		s.logger.Warn("evaluation transaction lost to a concurrent writer", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}

func (s *EvaluationService) writeError(err error, message string) error {
	if appErrors.Is(err, appErrors.ErrInvalidTransition) {
		s.metrics.RecordProgression(ProgressionRejected)
	}
	if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
		return appErr
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *EvaluationService) afterCommit(ctx context.Context, kind models.ChangeKind, out writeOutcome) {
	evaluation := out.evaluation
	if s.cache != nil {
		s.cache.InvalidateStudent(ctx, evaluation.StudentID)
	}
	s.metrics.RecordEvaluationWrite(string(kind))
	if out.fired {
		if out.transition != nil {
			s.metrics.RecordProgression(ProgressionApplied)
		} else {
			s.metrics.RecordProgression(ProgressionNoop)
		}
	}

	now := s.now().UTC()
	s.notifier.EvaluationChanged(ctx, models.EvaluationEvent{
		Kind:           kind,
		EvaluationID:   evaluation.ID,
		StudentID:      evaluation.StudentID,
		ProfessorID:    evaluation.ProfessorID,
		Type:           evaluation.Type,
		ApprovalStatus: evaluation.ApprovalStatus,
		OccurredAt:     now,
	})
	if out.transition != nil {
		s.logger.Info("student level changed",
			zap.String("student_id", evaluation.StudentID),
			zap.String("from", string(*out.transition.FromLevel)),
			zap.String("to", string(out.transition.ToLevel)),
			zap.String("evaluation_id", evaluation.ID),
		)
		s.notifier.StudentChanged(ctx, models.StudentEvent{
			Kind:       models.ChangeLevelChanged,
			StudentID:  evaluation.StudentID,
			FromLevel:  out.transition.FromLevel,
			Level:      out.transition.ToLevel,
			ChangedBy:  out.transition.ChangedBy,
			OccurredAt: now,
		})
	}
}

func (s *EvaluationService) buildEvaluation(req dto.CreateEvaluationRequest, actor *models.JWTClaims) (*models.Evaluation, error) {
	status, ok := models.ParseApprovalStatus(req.ApprovalStatus)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval_status")
	}
	evaluation := &models.Evaluation{
		StudentID:      req.StudentID,
		ProfessorID:    strings.TrimSpace(req.ProfessorID),
		EvaluationDate: req.EvaluationDate.UTC(),
		Type:           models.EvaluationType(req.Type),
		ApprovalStatus: status,
		ApprovalNotes:  req.ApprovalNotes,
		GeneralNotes:   req.GeneralNotes,
	}
	if !evaluation.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation_type")
	}

	switch {
	case actor.Role == models.RoleProfessor && evaluation.ProfessorID == "":
		evaluation.ProfessorID = actor.UserID
	case actor.Role == models.RoleProfessor && evaluation.ProfessorID != actor.UserID:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "professors can only record their own evaluations")
	case evaluation.ProfessorID == "":
		return nil, appErrors.Clone(appErrors.ErrValidation, "professor_id is required")
	}

	if req.TargetLevel != nil {
		if !evaluation.IsProgression() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target_level only applies to level_progression evaluations")
		}
		level, ok := models.ParseLevel(*req.TargetLevel)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target level %q", *req.TargetLevel))
		}
		evaluation.TargetLevel = &level
	}
	if evaluation.IsProgression() && evaluation.TargetLevel == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target_level is required for level_progression evaluations")
	}
	return evaluation, nil
}

// applyUpdate copies the supplied fields onto evaluation and reports whether the
// requested level change (type or target) differs from before.
func applyUpdate(evaluation *models.Evaluation, req dto.UpdateEvaluationRequest) (bool, error) {
	beforeType := evaluation.Type
	var beforeTarget models.Level
	if evaluation.TargetLevel != nil {
		beforeTarget = *evaluation.TargetLevel
	}

	if req.EvaluationDate != nil {
		evaluation.EvaluationDate = req.EvaluationDate.UTC()
	}
	if req.Type != nil {
		evaluation.Type = models.EvaluationType(*req.Type)
		if !evaluation.Type.Valid() {
			return false, appErrors.Clone(appErrors.ErrValidation, "unknown evaluation_type")
		}
		if !evaluation.IsProgression() {
			evaluation.TargetLevel = nil
		}
	}
	if req.TargetLevel != nil {
		if !evaluation.IsProgression() {
			return false, appErrors.Clone(appErrors.ErrValidation, "target_level only applies to level_progression evaluations")
		}
		level, ok := models.ParseLevel(*req.TargetLevel)
		if !ok {
			return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target level %q", *req.TargetLevel))
		}
		evaluation.TargetLevel = &level
	}
	if req.ApprovalStatus != nil {
		status, ok := models.ParseApprovalStatus(*req.ApprovalStatus)
		if !ok {
			return false, appErrors.Clone(appErrors.ErrValidation, "unknown approval_status")
		}
		evaluation.ApprovalStatus = status
	}
	if req.ApprovalNotes != nil {
		evaluation.ApprovalNotes = req.ApprovalNotes
	}
	if req.GeneralNotes != nil {
		evaluation.GeneralNotes = req.GeneralNotes
	}

	if evaluation.IsProgression() && evaluation.TargetLevel == nil {
		return false, appErrors.Clone(appErrors.ErrValidation, "target_level is required for level_progression evaluations")
	}
	var afterTarget models.Level
	if evaluation.TargetLevel != nil {
		afterTarget = *evaluation.TargetLevel
	}
	return beforeType != evaluation.Type || beforeTarget != afterTarget, nil
}

func toStrokes(reqs []dto.StrokeMeasurementRequest) ([]models.StrokeMeasurement, error) {
	strokes := make([]models.StrokeMeasurement, 0, len(reqs))
	seen := make(map[models.StrokeType]struct{}, len(reqs))
	for _, r := range reqs {
		stroke := models.StrokeType(r.StrokeType)
		if !stroke.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stroke_type %q", r.StrokeType))
		}
		if _, dup := seen[stroke]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s measured more than once", stroke))
		}
		seen[stroke] = struct{}{}
		if r.TechniqueScore < models.MinScore || r.TechniqueScore > models.MaxScore ||
			r.ResistanceScore < models.MinScore || r.ResistanceScore > models.MaxScore {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s scores must be between %d and %d", stroke, models.MinScore, models.MaxScore))
		}
		if r.TimeSeconds != nil && *r.TimeSeconds <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s time must be positive", stroke))
		}
		strokes = append(strokes, models.StrokeMeasurement{
			StrokeType:      stroke,
			TechniqueScore:  r.TechniqueScore,
			ResistanceScore: r.ResistanceScore,
			TimeSeconds:     r.TimeSeconds,
			Notes:           r.Notes,
		})
	}
	return strokes, nil
}

func toFilter(query dto.EvaluationListQuery) (models.EvaluationFilter, error) {
	filter := models.EvaluationFilter{
		StudentID:   query.StudentID,
		ProfessorID: query.ProfessorID,
		StrokeType:  models.StrokeType(query.StrokeType),
		Type:        models.EvaluationType(query.Type),
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	for _, bound := range []struct {
		raw  string
		dest **time.Time
	}{{query.DateFrom, &filter.DateFrom}, {query.DateTo, &filter.DateTo}} {
		if bound.raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", bound.raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
		}
		*bound.dest = &parsed
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	return filter, nil
}

func lockStudent(ctx context.Context, tx repository.EvaluationTx, studentID string) (*models.Student, error) {
	student, err := tx.LockStudent(ctx, studentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return student, nil
}

func authorizeWrite(actor *models.JWTClaims, evaluation *models.Evaluation) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleProfessor:
		if evaluation.ProfessorID == actor.UserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the evaluating professor or an admin can change this evaluation")
}
