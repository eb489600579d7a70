package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linguakurs/crm-api/internal/service"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
	"github.com/linguakurs/crm-api/pkg/response"
)

// InterviewHandler exposes interview endpoints.
type InterviewHandler struct {
	interviews *service.InterviewService
}

// NewInterviewHandler constructs InterviewHandler.
func NewInterviewHandler(interviews *service.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviews: interviews}
}

// ListByStudent godoc
// @Summary List a student's interviews
// @Tags Interviews
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/interviews [get]
func (h *InterviewHandler) ListByStudent(c *gin.Context) {
	interviews, err := h.interviews.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, interviews, nil)
}

// Create godoc
// @Summary Log an interview for a student
// @Tags Interviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.CreateInterviewRequest true "Interview payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/interviews [post]
func (h *InterviewHandler) Create(c *gin.Context) {
	var req service.CreateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	interview, err := h.interviews.Create(c.Request.Context(), c.Param("id"), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, interview)
}
