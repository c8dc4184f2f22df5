package chats

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/middleware"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/response"
)

// Handler handles chat HTTP endpoints.
type Handler struct {
	engine    *Engine
	summaries *Summaries
}

// NewHandler creates a chats handler.
func NewHandler(engine *Engine, summaries *Summaries) *Handler {
	return &Handler{engine: engine, summaries: summaries}
}

// PrivateChatRequest is the body for POST /chats/private. Non-admins send user_id; admins may
// name both sides with user_a and user_b.
type PrivateChatRequest struct {
	UserID *uuid.UUID `json:"user_id"`
	UserA  *uuid.UUID `json:"user_a"`
	UserB  *uuid.UUID `json:"user_b"`
}

// PrivateChatResponse reports the chat and whether it already existed.
type PrivateChatResponse struct {
	ID       uuid.UUID `json:"id"`
	Existing bool      `json:"existing"`
}

// Init handles POST /chats/init: reconciles the caller's own chats.
func (h *Handler) Init(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)
	res, err := h.engine.Reconcile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Reconcile handles POST /users/:id/chats/reconcile. Users may reconcile themselves; admins anyone.
func (h *Handler) Reconcile(c *gin.Context) {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	userID, _ := middleware.CurrentUser(c)
	if target != userID && !middleware.IsAdmin(c) {
		response.Forbidden(c, "cannot reconcile another user's chats")
		return
	}
	res, err := h.engine.Reconcile(c.Request.Context(), target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// EnsurePrivate handles POST /chats/private.
func (h *Handler) EnsurePrivate(c *gin.Context) {
	var body PrivateChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := middleware.CurrentUser(c)

	var a, b uuid.UUID
	switch {
	case body.UserA != nil || body.UserB != nil:
		if !middleware.IsAdmin(c) {
			response.Forbidden(c, "only admins may pair other users")
			return
		}
		if body.UserA == nil || body.UserB == nil {
			response.BadRequest(c, "user_a and user_b are both required")
			return
		}
		a, b = *body.UserA, *body.UserB
	case body.UserID != nil:
		a, b = userID, *body.UserID
	default:
		response.BadRequest(c, "user_id required")
		return
	}

	chatID, created, err := h.engine.EnsurePair(c.Request.Context(), a, b)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := PrivateChatResponse{ID: chatID, Existing: !created}
	if created {
		response.Created(c, out)
		return
	}
	response.OK(c, out)
}

// List handles GET /chats.
func (h *Handler) List(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)
	list, err := h.summaries.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /chats/:id. Non-admins must be participants.
func (h *Handler) Get(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid chat id")
		return
	}
	userID, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	sum, err := h.summaries.Summary(ctx, chatID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAdmin(c) {
		member := false
		for _, p := range sum.Participants {
			if p.ID == userID {
				member = true
				break
			}
		}
		if !member {
			response.Error(c, apperr.Forbidden("not a participant of this chat"))
			return
		}
	}
	response.OK(c, sum)
}
