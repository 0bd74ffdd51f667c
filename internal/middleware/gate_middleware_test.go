// internal/middleware/gate_middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"stocksense-service/internal/gate"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func gateRouter(req gate.Requirements, identityID int64, isAdmin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/target",
		func(c *gin.Context) {
			if identityID != 0 {
				c.Set("identity_id", identityID)
				c.Set("is_admin", isAdmin)
			}
			c.Next()
		},
		Gate(req),
		func(c *gin.Context) {
			c.String(http.StatusOK, "rendered")
		},
	)
	return r
}

func doGet(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/target", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGateRendersForAuthenticated(t *testing.T) {
	r := gateRouter(gate.Requirements{RequireAuth: true}, 7, false)
	w := doGet(t, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rendered", w.Body.String())
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	r := gateRouter(gate.Requirements{RequireAuth: true}, 0, false)
	w := doGet(t, r)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, gate.LoginRoute, w.Header().Get("Location"))
}

func TestGateRedirectsInvestorFromAdminRoute(t *testing.T) {
	r := gateRouter(gate.Requirements{RequireAuth: true, RequireAdmin: true}, 7, false)
	w := doGet(t, r)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, gate.InvestorLanding, w.Header().Get("Location"))
}

func TestGateAdmitsAdminToAdminRoute(t *testing.T) {
	r := gateRouter(gate.Requirements{RequireAuth: true, RequireAdmin: true}, 1, true)
	w := doGet(t, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateBouncesAuthenticatedFromPublicAuthRoute(t *testing.T) {
	r := gateRouter(gate.Requirements{}, 7, false)
	w := doGet(t, r)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, gate.InvestorLanding, w.Header().Get("Location"))
}
