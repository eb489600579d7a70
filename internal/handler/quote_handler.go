package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linguakurs/crm-api/internal/service"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
	"github.com/linguakurs/crm-api/pkg/response"
)

// QuoteHandler exposes price-quote endpoints.
type QuoteHandler struct {
	quotes *service.QuoteService
}

// NewQuoteHandler constructs QuoteHandler.
func NewQuoteHandler(quotes *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// ListByStudent godoc
// @Summary List a student's price quotes
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/quotes [get]
func (h *QuoteHandler) ListByStudent(c *gin.Context) {
	quotes, err := h.quotes.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quotes, nil)
}

// Create godoc
// @Summary Create a price quote for a student
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.CreateQuoteRequest true "Quote payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/quotes [post]
func (h *QuoteHandler) Create(c *gin.Context) {
	var req service.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quote, err := h.quotes.Create(c.Request.Context(), c.Param("id"), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quote)
}
