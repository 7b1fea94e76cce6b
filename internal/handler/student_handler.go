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

type studentService interface {
	Create(ctx context.Context, req dto.CreateStudentRequest, actor *models.JWTClaims) (*models.Student, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Student, error)
	ListLevelHistory(ctx context.Context, id string, actor *models.JWTClaims) ([]models.LevelHistory, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	service studentService
}

// NewStudentHandler builds a new handler.
func NewStudentHandler(service studentService) *StudentHandler {
	return &StudentHandler{service: service}
}

// Create godoc
// @Summary Register a student at an initial level
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// LevelHistory godoc
// @Summary List a student's level history, newest first
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/level-history [get]
func (h *StudentHandler) LevelHistory(c *gin.Context) {
	history, err := h.service.ListLevelHistory(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}
