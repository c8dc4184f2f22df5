package tasks

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-org/backend/pkg/response"
)

// Handler handles task HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a tasks handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AssignRequest is the body for POST /tasks/:id/assign and POST /tasks/:id/assignees.
type AssignRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// Assign handles POST /tasks/:id/assign.
func (h *Handler) Assign(c *gin.Context) {
	h.assign(c, h.svc.Assign)
}

// AddAssignees handles POST /tasks/:id/assignees.
func (h *Handler) AddAssignees(c *gin.Context) {
	h.assign(c, h.svc.AddAssignees)
}

func (h *Handler) assign(c *gin.Context, apply func(context.Context, uuid.UUID, []uuid.UUID) (AssignResult, error)) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	var body AssignRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_ids array required")
		return
	}
	res, err := apply(c.Request.Context(), taskID, body.UserIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Assignees handles GET /tasks/:id/assignees.
func (h *Handler) Assignees(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	ids, err := h.svc.Assignees(c.Request.Context(), taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"task_id": taskID, "user_ids": ids})
}

// Delete handles DELETE /tasks/:id.
func (h *Handler) Delete(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), taskID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
