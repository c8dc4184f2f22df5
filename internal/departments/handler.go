package departments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-org/backend/pkg/patch"
	"github.com/aura-org/backend/pkg/response"
)

// Handler handles department HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a departments handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// UpdateRequest is the body for PATCH /departments/:id. dept_head_id may be null to remove the head.
type UpdateRequest struct {
	Name       patch.Field[string]     `json:"name"`
	DeptHeadID patch.Field[*uuid.UUID] `json:"dept_head_id"`
}

// Get handles GET /departments/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid department id")
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Update handles PATCH /departments/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid department id")
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, UpdateParams{Name: body.Name, DeptHeadID: body.DeptHeadID})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
