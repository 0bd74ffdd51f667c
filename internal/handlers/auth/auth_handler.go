// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/middleware"
	xerrors "stocksense-service/internal/pkg/errors"
	"stocksense-service/internal/pkg/response"
	authUsecase "stocksense-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Registration ==========

// SignUp handles investor registration (public endpoint).
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req auth.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	resp, err := h.authService.SignUp(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("registration failed",
			zap.String("email", req.Email),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, xerrors.ErrRateLimited):
			response.Error(c, http.StatusTooManyRequests, "too many registration attempts", nil)
		default:
			response.Error(c, http.StatusBadRequest, "registration failed", err)
		}
		return
	}

	response.Success(c, http.StatusCreated, resp.Message, resp)
}

// VerifyEmail completes registration from the emailed link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req auth.VerifyEmailRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "missing verification token", err)
		return
	}

	if err := h.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		response.Error(c, http.StatusBadRequest, "verification failed", err)
		return
	}

	response.Success(c, http.StatusOK, "email verified, you can now sign in", nil)
}

// ========== Sign-in ==========

// SignIn verifies credentials and issues a session. The response tells
// the client which landing route its role maps to.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req auth.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	resp, err := h.authService.SignIn(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("sign-in failed",
			zap.String("email", req.Email),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		switch {
		case errors.Is(err, xerrors.ErrRateLimited):
			response.Error(c, http.StatusTooManyRequests, "too many login attempts", nil)
		case errors.Is(err, xerrors.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, xerrors.MessageOrDefault(err, "invalid email or password"), nil)
		default:
			response.Error(c, http.StatusInternalServerError, "sign-in failed", nil)
		}
		return
	}

	h.logger.Info("user signed in",
		zap.Int64("identity_id", resp.User.IdentityID),
		zap.String("email", resp.User.Email),
		zap.String("role", resp.User.Role),
	)

	response.Success(c, http.StatusOK, "sign-in successful", resp)
}

// ========== Sign-out ==========

// SignOut destroys the caller's sessions everywhere (requires auth).
// Cleanup always runs; a transport failure is reported afterwards.
func (h *AuthHandler) SignOut(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	jti := middleware.MustGetJTI(c)

	if err := h.authService.SignOut(c.Request.Context(), identityID, jti); err != nil {
		h.logger.Error("sign-out transport failure",
			zap.Int64("identity_id", identityID),
			zap.Error(err),
		)
		// Local session state is already gone; tell the client both facts.
		response.Error(c, http.StatusBadGateway, "signed out locally, remote sign-out failed", err)
		return
	}

	response.Success(c, http.StatusOK, "signed out", nil)
}

// ========== Session ==========

// Me returns the caller's identity and profile.
func (h *AuthHandler) Me(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	profile, err := h.authService.GetProfile(c.Request.Context(), identityID)
	if err != nil {
		// The session stays valid without a profile; report the degraded
		// view instead of failing the request.
		response.Success(c, http.StatusOK, "profile unavailable", gin.H{
			"identity_id": identityID,
			"email":       middleware.GetEmail(c),
			"is_admin":    false,
		})
		return
	}

	response.Success(c, http.StatusOK, "ok", gin.H{
		"identity_id": identityID,
		"email":       profile.Email,
		"full_name":   profile.FullName.String,
		"role":        profile.Role,
		"is_admin":    profile.IsAdmin(),
		"watchlist":   profile.Watchlist,
	})
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	sessions, err := h.authService.GetActiveSessions(c.Request.Context(), identityID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}

	response.Success(c, http.StatusOK, "ok", sessions)
}

// RevokeSession revokes one of the caller's sessions by JTI.
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	jti := c.Param("jti")
	if jti == "" {
		response.Error(c, http.StatusBadRequest, "missing session id", nil)
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), identityID, jti); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to revoke session", err)
		return
	}

	response.Success(c, http.StatusOK, "session revoked", nil)
}
