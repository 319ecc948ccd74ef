package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticket-exchange/internal/middleware"
	"ticket-exchange/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", middleware.Authenticate(secret), func(c *gin.Context) {
		caller, ok := middleware.CallerFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, caller)
	})
	r.GET("/admin", middleware.Authenticate(secret), middleware.RequireRole(middleware.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := newAuthRouter()
	caller := model.Identity{UserID: "buyer-1", PatronID: "P-1", Email: "b@example.com"}

	t.Run("Success", func(t *testing.T) {
		token, err := middleware.IssueToken(secret, caller, "", time.Minute)
		require.NoError(t, err)

		w := get(r, "/me", token)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":"buyer-1","patron_id":"P-1","email":"b@example.com"}`, w.Body.String())
	})

	t.Run("MissingToken", func(t *testing.T) {
		w := get(r, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := middleware.IssueToken("other-secret", caller, "", time.Minute)
		require.NoError(t, err)

		w := get(r, "/me", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := middleware.IssueToken(secret, caller, "", -time.Minute)
		require.NoError(t, err)

		w := get(r, "/me", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter()
	caller := model.Identity{UserID: "ops-1"}

	userToken, err := middleware.IssueToken(secret, caller, "", time.Minute)
	require.NoError(t, err)
	adminToken, err := middleware.IssueToken(secret, caller, middleware.RoleAdmin, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", userToken).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", adminToken).Code)
}
