package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/swim-eval-api/internal/dto"
	"github.com/noah-isme/swim-eval-api/internal/models"
	appErrors "github.com/noah-isme/swim-eval-api/pkg/errors"
	"github.com/noah-isme/swim-eval-api/pkg/response"
)

type evaluationService interface {
	Create(ctx context.Context, req dto.CreateEvaluationRequest, actor *models.JWTClaims) (*models.EvaluationDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateEvaluationRequest, actor *models.JWTClaims) (*models.EvaluationDetail, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EvaluationDetail, error)
	List(ctx context.Context, query dto.EvaluationListQuery, actor *models.JWTClaims) ([]models.EvaluationDetail, *models.Pagination, error)
}

// EvaluationHandler exposes evaluation endpoints.
type EvaluationHandler struct {
	service evaluationService
}

// NewEvaluationHandler builds a new handler.
func NewEvaluationHandler(service evaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: service}
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Param student_id query string false "Student ID"
// @Param professor_id query string false "Professor ID"
// @Param stroke_type query string false "Stroke filter"
// @Param evaluation_type query string false "regular or level_progression"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD, inclusive"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	var query dto.EvaluationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an evaluation with its strokes
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Record an evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body dto.CreateEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	var req dto.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update an evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body dto.UpdateEvaluationRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	var req dto.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete an evaluation
// @Tags Evaluations
// @Param id path string true "Evaluation ID"
// @Success 204
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
