// internal/app/router.go
package app

import (
	"net/http"

	"stocksense-service/internal/gate"
	authHandler "stocksense-service/internal/handlers/auth"
	dashboardHandler "stocksense-service/internal/handlers/dashboard"
	rtHandler "stocksense-service/internal/handlers/realtime"
	"stocksense-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler      *authHandler.AuthHandler
	DashboardHandler *dashboardHandler.DashboardHandler
	WSHandler        *rtHandler.WebSocketHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

// SetupRouter declares the route table. Every gated surface states its
// requirements once; the gate middleware turns them into render,
// redirect or pending outcomes from the request's auth snapshot.
func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/signup", h.AuthHandler.SignUp)
		authPublic.POST("/signin", h.AuthHandler.SignIn)
		authPublic.GET("/verify-email", h.AuthHandler.VerifyEmail)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/signout", h.AuthHandler.SignOut)
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.GET("/sessions", h.AuthHandler.Sessions)
		authProtected.DELETE("/sessions/:jti", h.AuthHandler.RevokeSession)
	}

	// ==================== Investor Dashboard ====================
	dashboard := r.Group(gate.InvestorLanding)
	dashboard.Use(
		h.AuthMiddleware.OptionalAuth(),
		middleware.Gate(gate.Requirements{RequireAuth: true}),
	)
	{
		dashboard.GET("", h.DashboardHandler.Overview)
	}

	// ==================== Admin ====================
	admin := r.Group(gate.AdminLanding)
	admin.Use(
		h.AuthMiddleware.OptionalAuth(),
		middleware.Gate(gate.Requirements{RequireAuth: true, RequireAdmin: true}),
	)
	{
		admin.GET("", h.DashboardHandler.ListUsers)
	}

	// The gate bounces an already signed-in client from the login page
	// to its role's landing route.
	r.GET(gate.LoginRoute,
		h.AuthMiddleware.OptionalAuth(),
		middleware.Gate(gate.Requirements{}),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"page": "login"})
		},
	)

	// Unknown routes land on a plain 404; nothing falls through to a
	// gated surface by accident.
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
