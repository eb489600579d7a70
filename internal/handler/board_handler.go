package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linguakurs/crm-api/internal/service"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
	"github.com/linguakurs/crm-api/pkg/response"
)

// BoardHandler exposes the staff notice board REST endpoints.
type BoardHandler struct {
	board *service.BoardService
}

// NewBoardHandler constructs BoardHandler.
func NewBoardHandler(board *service.BoardService) *BoardHandler {
	return &BoardHandler{board: board}
}

// ListMessages godoc
// @Summary List board messages
// @Tags Board
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /board/messages [get]
func (h *BoardHandler) ListMessages(c *gin.Context) {
	messages, err := h.board.ListMessages(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// CreateMessage godoc
// @Summary Post a board message
// @Tags Board
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BoardContentRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Router /board/messages [post]
func (h *BoardHandler) CreateMessage(c *gin.Context) {
	var req service.BoardContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	message, err := h.board.CreateMessage(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// ListNotes godoc
// @Summary List sticky notes
// @Tags Board
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /board/notes [get]
func (h *BoardHandler) ListNotes(c *gin.Context) {
	notes, err := h.board.ListNotes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notes, nil)
}

// CreateNote godoc
// @Summary Pin a sticky note
// @Tags Board
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BoardContentRequest true "Note payload"
// @Success 201 {object} response.Envelope
// @Router /board/notes [post]
func (h *BoardHandler) CreateNote(c *gin.Context) {
	var req service.BoardContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	note, err := h.board.CreateNote(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// UpdateNote godoc
// @Summary Edit a sticky note
// @Tags Board
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Param payload body service.BoardContentRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /board/notes/{id} [put]
func (h *BoardHandler) UpdateNote(c *gin.Context) {
	var req service.BoardContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	note, err := h.board.UpdateNote(c.Request.Context(), c.Param("id"), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, note, nil)
}

// DeleteNote godoc
// @Summary Remove a sticky note
// @Tags Board
// @Security BearerAuth
// @Param id path string true "Note ID"
// @Success 204
// @Router /board/notes/{id} [delete]
func (h *BoardHandler) DeleteNote(c *gin.Context) {
	if err := h.board.DeleteNote(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
