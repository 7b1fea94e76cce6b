package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-eval-api/internal/dto"
	"github.com/noah-isme/swim-eval-api/internal/middleware"
	"github.com/noah-isme/swim-eval-api/internal/models"
	"github.com/noah-isme/swim-eval-api/internal/service"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
	"github.com/noah-isme/swim-eval-api/pkg/response"
)

type evolutionService interface {
	Data(ctx context.Context, studentID string, params service.EvolutionParams, actor *models.JWTClaims) (*models.EvolutionData, bool, error)
	Metrics(ctx context.Context, studentID string, params service.EvolutionParams, actor *models.JWTClaims) (*models.EvolutionMetrics, bool, error)
	Trends(ctx context.Context, studentID, stroke string, actor *models.JWTClaims) (*models.EvolutionMetrics, bool, error)
	Comparative(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.ComparativeAnalysis, error)
	Summary(ctx context.Context, studentID string, actor *models.JWTClaims) (*models.EvolutionSummary, error)
}

type evolutionExporter interface {
	ExportEvolution(ctx context.Context, studentID string, params service.EvolutionParams, format string, actor *models.JWTClaims) (*service.ExportFile, error)
}

// EvolutionHandler exposes the per-student progression analytics.
type EvolutionHandler struct {
	service  evolutionService
	exporter evolutionExporter
}

// NewEvolutionHandler builds a new handler.
func NewEvolutionHandler(service evolutionService, exporter evolutionExporter) *EvolutionHandler {
	return &EvolutionHandler{service: service, exporter: exporter}
}

func bindEvolutionQuery(c *gin.Context) (dto.EvolutionQuery, bool) {
	var query dto.EvolutionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}

func evolutionParams(q dto.EvolutionQuery) service.EvolutionParams {
	return service.EvolutionParams{StrokeType: q.StrokeType, TimeRange: q.TimeRange}
}

func respondAnalytics(c *gin.Context, start time.Time, data interface{}, cached bool) {
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, data, nil, middleware.ResponseMeta(c, start))
}

// Data godoc
// @Summary Per-stroke evaluation time series
// @Tags Evolution
// @Produce json
// @Param id path string true "Student ID"
// @Param stroke_type query string false "Stroke filter"
// @Param time_range query string false "3months, 6months, 1year or all"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/evolution [get]
func (h *EvolutionHandler) Data(c *gin.Context) {
	start := time.Now()
	query, ok := bindEvolutionQuery(c)
	if !ok {
		return
	}
	data, cached, err := h.service.Data(c.Request.Context(), c.Param("id"), evolutionParams(query), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondAnalytics(c, start, data, cached)
}

// Metrics godoc
// @Summary Trends, predictions and milestones per stroke
// @Tags Evolution
// @Produce json
// @Param id path string true "Student ID"
// @Param stroke_type query string false "Stroke filter"
// @Param time_range query string false "3months, 6months, 1year or all"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/evolution/metrics [get]
func (h *EvolutionHandler) Metrics(c *gin.Context) {
	start := time.Now()
	query, ok := bindEvolutionQuery(c)
	if !ok {
		return
	}
	metrics, cached, err := h.service.Metrics(c.Request.Context(), c.Param("id"), evolutionParams(query), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondAnalytics(c, start, metrics, cached)
}

// Trends godoc
// @Summary Trends over the whole history
// @Tags Evolution
// @Produce json
// @Param id path string true "Student ID"
// @Param stroke_type query string false "Stroke filter"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/evolution/trends [get]
func (h *EvolutionHandler) Trends(c *gin.Context) {
	start := time.Now()
	query, ok := bindEvolutionQuery(c)
	if !ok {
		return
	}
	metrics, cached, err := h.service.Trends(c.Request.Context(), c.Param("id"), query.StrokeType, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondAnalytics(c, start, metrics, cached)
}

// Comparative godoc
// @Summary Rank the student's latest scores against the level cohort
// @Tags Evolution
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/evolution/comparative [get]
func (h *EvolutionHandler) Comparative(c *gin.Context) {
	start := time.Now()
	analysis, err := h.service.Comparative(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondAnalytics(c, start, analysis, false)
}

// Summary godoc
// @Summary Progression digest with recommendations
// @Tags Evolution
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/evolution/summary [get]
func (h *EvolutionHandler) Summary(c *gin.Context) {
	start := time.Now()
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondAnalytics(c, start, summary, false)
}

// Export godoc
// @Summary Download the evolution series as CSV or PDF
// @Tags Evolution
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param format query string false "csv (default) or pdf"
// @Param stroke_type query string false "Stroke filter"
// @Param time_range query string false "3months, 6months, 1year or all"
// @Success 200 {file} file
// @Router /students/{id}/evolution/export [get]
func (h *EvolutionHandler) Export(c *gin.Context) {
	query, ok := bindEvolutionQuery(c)
	if !ok {
		return
	}
	file, err := h.exporter.ExportEvolution(c.Request.Context(), c.Param("id"), evolutionParams(query), query.Format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
