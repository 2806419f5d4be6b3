package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"comnet/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/anon", AuthRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/user", func(c *gin.Context) {
		c.Set(CheckUserKey, &models.User{ID: 1})
	}, AuthRequired(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anon", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestNetworkID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if NetworkID(c) != uuid.Nil {
		t.Errorf("expected nil network without middleware")
	}
	id := uuid.New()
	c.Set(NetworkKey, id)
	if NetworkID(c) != id {
		t.Errorf("expected %s, got %s", id, NetworkID(c))
	}
	if _, ok := CurrentUser(c); ok {
		t.Errorf("expected no user")
	}
}
