package messages

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/middleware"
	"github.com/aura-org/backend/pkg/response"
)

// Handler handles message HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a messages handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SendRequest is the body for POST /chats/:id/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// Send handles POST /chats/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid chat id")
		return
	}
	var body SendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "content required")
		return
	}
	userID, _ := middleware.CurrentUser(c)
	msg, err := h.svc.Send(c.Request.Context(), chatID, userID, body.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// List handles GET /chats/:id/messages. mark_read=true marks others' messages read;
// admins may pass audit=1 to read any chat without membership or read side effects.
func (h *Handler) List(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid chat id")
		return
	}
	userID, _ := middleware.CurrentUser(c)
	requester := &userID
	if c.Query("audit") == "1" {
		if !middleware.IsAdmin(c) {
			response.Forbidden(c, "audit access requires admin")
			return
		}
		requester = nil
	}
	list, err := h.svc.List(c.Request.Context(), chatID, requester, c.Query("mark_read") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}
