package users

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/middleware"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/patch"
	"github.com/aura-org/backend/pkg/response"
	"github.com/aura-org/backend/pkg/utils"
)

// Handler handles user HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a users handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body for POST /users.
type CreateRequest struct {
	Email        string     `json:"email" binding:"required,email"`
	Password     string     `json:"password" binding:"required"`
	Name         string     `json:"name" binding:"required"`
	Role         string     `json:"role" binding:"required"`
	TeamID       *uuid.UUID `json:"team_id"`
	DepartmentID *uuid.UUID `json:"department_id"`
	AvatarURL    *string    `json:"avatar_url"`
}

// UpdateRequest is the body for PATCH /users/:id. Absent fields are left unchanged; null clears
// team_id, department_id and avatar_url.
type UpdateRequest struct {
	Name         patch.Field[string]      `json:"name"`
	Email        patch.Field[string]      `json:"email"`
	Password     patch.Field[string]      `json:"password"`
	Role         patch.Field[models.Role] `json:"role"`
	TeamID       patch.Field[*uuid.UUID]  `json:"team_id"`
	DepartmentID patch.Field[*uuid.UUID]  `json:"department_id"`
	AvatarURL    patch.Field[*string]     `json:"avatar_url"`
}

// Create handles POST /users (admin only). A dept-head with department_id takes over that
// department's vacant head seat.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "valid email, password, name and role required")
		return
	}
	res, err := h.svc.Create(c.Request.Context(), CreateParams{
		Email:        body.Email,
		Password:     body.Password,
		Name:         body.Name,
		Role:         models.Role(body.Role),
		TeamID:       body.TeamID,
		DepartmentID: body.DepartmentID,
		AvatarURL:    body.AvatarURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Update handles PATCH /users/:id. Users may edit their own name, email, password and avatar;
// hierarchy fields need an admin.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body UpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	params := UpdateParams{
		Name:         body.Name,
		Email:        body.Email,
		Role:         body.Role,
		TeamID:       body.TeamID,
		DepartmentID: body.DepartmentID,
		AvatarURL:    body.AvatarURL,
	}

	callerID, _ := middleware.CurrentUser(c)
	if !middleware.IsAdmin(c) && (callerID != id || params.affectsHierarchy()) {
		response.Forbidden(c, "insufficient permissions")
		return
	}
	if body.Password.Set {
		if !utils.PasswordLongEnough(body.Password.Value) {
			response.Error(c, apperr.Validation("password must be at least 6 characters"))
			return
		}
		hash, err := utils.HashPassword(body.Password.Value)
		if err != nil {
			response.Internal(c, "failed to hash password")
			return
		}
		params.PasswordHash = patch.Of(hash)
	}

	res, err := h.svc.Update(c.Request.Context(), id, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /users/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	callerID, _ := middleware.CurrentUser(c)
	if callerID == id {
		response.BadRequest(c, "cannot delete yourself")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get handles GET /users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u.ToPublic())
}

// List handles GET /users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]models.UserPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	response.OK(c, out)
}
