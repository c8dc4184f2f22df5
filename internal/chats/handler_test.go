package chats

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-org/backend/internal/middleware"
	"github.com/aura-org/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestRouter(h *Handler, userID uuid.UUID, role models.Role) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, string(role))
		c.Next()
	})
	r.POST("/chats/init", h.Init)
	r.POST("/chats/private", h.EnsurePrivate)
	r.POST("/users/:id/chats/reconcile", h.Reconcile)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerInitReconcilesCaller(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(NewHandler(f.engine, nil), f.m, models.RoleMember)

	w, env := do(t, r, http.MethodPost, "/chats/init", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res ReconcileResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, ReconcileResult{Created: 1}, res)
}

func TestHandlerReconcileOtherUserNeedsAdmin(t *testing.T) {
	f := newFixture(t)

	r := newTestRouter(NewHandler(f.engine, nil), f.m, models.RoleMember)
	w, env := do(t, r, http.MethodPost, "/users/"+f.h.String()+"/chats/reconcile", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", env.Code)

	admin := f.org.addUser(models.RoleAdmin, nil, nil)
	r = newTestRouter(NewHandler(f.engine, nil), admin, models.RoleAdmin)
	w, _ = do(t, r, http.MethodPost, "/users/"+f.h.String()+"/chats/reconcile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.chats.hasPair(f.h, f.l))
}

func TestHandlerEnsurePrivate(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(NewHandler(f.engine, nil), f.m, models.RoleMember)

	w, env := do(t, r, http.MethodPost, "/chats/private", gin.H{"user_id": f.h})
	require.Equal(t, http.StatusCreated, w.Code)
	var out PrivateChatResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.False(t, out.Existing)

	w, env = do(t, r, http.MethodPost, "/chats/private", gin.H{"user_id": f.h})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, out.Existing)

	w, _ = do(t, r, http.MethodPost, "/chats/private", gin.H{"user_id": f.l})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/chats/private", gin.H{"user_a": f.h, "user_b": f.l})
	assert.Equal(t, http.StatusForbidden, w.Code, "pairing other users is admin only")

	w, _ = do(t, r, http.MethodPost, "/chats/private", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerEnsurePrivateAdminPair(t *testing.T) {
	f := newFixture(t)
	admin := f.org.addUser(models.RoleAdmin, nil, nil)
	r := newTestRouter(NewHandler(f.engine, nil), admin, models.RoleAdmin)

	w, _ := do(t, r, http.MethodPost, "/chats/private", gin.H{"user_a": f.h, "user_b": f.l})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, f.chats.hasPair(f.h, f.l))

	w, _ = do(t, r, http.MethodPost, "/chats/private", gin.H{"user_a": f.h})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
