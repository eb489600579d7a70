package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/service"
	"github.com/linguakurs/crm-api/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BoardFeedHandler upgrades connections onto the realtime board feed.
// Browsers cannot set an Authorization header on a websocket dial, so the
// token travels in the query string instead.
type BoardFeedHandler struct {
	auth   *service.AuthService
	hub    *ws.Hub
	logger *zap.Logger
}

// NewBoardFeedHandler constructs BoardFeedHandler.
func NewBoardFeedHandler(auth *service.AuthService, hub *ws.Hub, logger *zap.Logger) *BoardFeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardFeedHandler{auth: auth, hub: hub, logger: logger}
}

// Subscribe godoc
// @Summary Subscribe to the realtime board feed
// @Tags Board
// @Param token query string true "Access token"
// @Success 101
// @Router /ws/board [get]
func (h *BoardFeedHandler) Subscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		c.Status(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("board feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := h.hub.Register(claims.UserID)
	h.logger.Info("board feed client connected", zap.String("user_id", claims.UserID))
	h.hub.Serve(client, conn)
	h.logger.Info("board feed client disconnected", zap.String("user_id", claims.UserID))
}
