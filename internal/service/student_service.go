package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/swim-eval-api/internal/dto"
	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/internal/repository"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
)

const initialLevelReason = "Initial level assignment"

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type studentHistoryReader interface {
	studentReader
	ListLevelHistory(ctx context.Context, studentID string) ([]models.LevelHistory, error)
}

// StudentService registers swimmers and exposes their level history. The level itself
// only changes through the progression workflow.
type StudentService struct {
	repo      studentHistoryReader
	uow       unitOfWork
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentHistoryReader, uow unitOfWork, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, uow: uow, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create inserts the student and the initial level history record atomically.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	level, ok := models.ParseLevel(req.Level)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown level")
	}
	reason := initialLevelReason
	if req.Reason != nil && strings.TrimSpace(*req.Reason) != "" {
		reason = strings.TrimSpace(*req.Reason)
	}

	student := &models.Student{FullName: strings.TrimSpace(req.FullName), Level: level, Active: true}
	actorID := actor.UserID
	err := s.uow.WithinTx(ctx, func(tx repository.EvaluationTx) error {
		if err := tx.InsertStudent(ctx, student); err != nil {
			return err
		}
		return tx.InsertLevelHistory(ctx, &models.LevelHistory{
			StudentID: student.ID,
			ToLevel:   level,
			Reason:    reason,
			ChangedBy: &actorID,
		})
	})
	if err != nil {
		if appErrors.Is(err, appErrors.ErrConflict) {
			return nil, err
		}
		s.logger.Error("create student failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.notifier.StudentChanged(ctx, models.StudentEvent{
		Kind:       models.ChangeCreated,
		StudentID:  student.ID,
		Level:      student.Level,
		ChangedBy:  &actorID,
		OccurredAt: s.now().UTC(),
	})
	return student, nil
}

// Get returns a student. Students may only read themselves.
func (s *StudentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Student, error) {
	if err := authorizeStudentRead(actor, id); err != nil {
		return nil, err
	}
	return findStudent(ctx, s.repo, id)
}

// ListLevelHistory returns the student's level history, newest first.
func (s *StudentService) ListLevelHistory(ctx context.Context, id string, actor *models.JWTClaims) ([]models.LevelHistory, error) {
	if err := authorizeStudentRead(actor, id); err != nil {
		return nil, err
	}
	if _, err := findStudent(ctx, s.repo, id); err != nil {
		return nil, err
	}
	history, err := s.repo.ListLevelHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level history")
	}
	return history, nil
}

func findStudent(ctx context.Context, repo studentReader, id string) (*models.Student, error) {
	student, err := repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func authorizeStudentRead(actor *models.JWTClaims, studentID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return appErrors.ErrForbidden
	}
	return nil
}
