package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/swim-eval-api/internal/models"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
	"github.com/noah-isme/swim-eval-api/pkg/export"
)

var exportHeaders = []string{"Date", "Stroke", "Technique", "Resistance", "Overall", "Time (s)"}

type evolutionSource interface {
	Data(ctx context.Context, studentID string, params EvolutionParams, actor *models.JWTClaims) (*models.EvolutionData, bool, error)
}

type documentRenderer interface {
	Render(format export.Format, doc export.Document) ([]byte, error)
}

// ExportFile is a rendered report ready to be streamed to the caller.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a student's evolution series as a downloadable report.
type ExportService struct {
	evolution evolutionSource
	students  studentReader
	renderer  documentRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(evolution evolutionSource, students studentReader, renderer documentRenderer, logger *zap.Logger) *ExportService {
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{evolution: evolution, students: students, renderer: renderer, logger: logger, now: time.Now}
}

// ExportEvolution renders the per-stroke series in the requested format.
func (s *ExportService) ExportEvolution(ctx context.Context, studentID string, params EvolutionParams, rawFormat string, actor *models.JWTClaims) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	data, _, err := s.evolution.Data(ctx, studentID, params, actor)
	if err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.students, studentID)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Title: "Swimming evolution report",
		Details: [][2]string{
			{"Student", student.FullName},
			{"Level", string(student.Level)},
			{"Time range", string(data.TimeRange)},
			{"Generated", s.now().UTC().Format(time.RFC3339)},
		},
		Data: evolutionDataset(data),
	}
	payload, err := s.renderer.Render(format, doc)
	if err != nil {
		s.logger.Error("render evolution export", zap.String("student_id", studentID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("evolution-%s-%s.%s", studentID, s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

func evolutionDataset(data *models.EvolutionData) export.Dataset {
	dataset := export.Dataset{Headers: exportHeaders}
	for _, series := range data.Series {
		for _, point := range series.Points {
			seconds := ""
			if point.TimeSeconds != nil {
				seconds = strconv.FormatFloat(*point.TimeSeconds, 'f', 2, 64)
			}
			dataset.Append(
				point.Date.Format("2006-01-02"),
				string(series.StrokeType),
				formatScore(point.Technique),
				formatScore(point.Resistance),
				formatScore(point.Overall),
				seconds,
			)
		}
	}
	return dataset
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
