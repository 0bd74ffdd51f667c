// internal/handlers/dashboard/dashboard_handler.go
package dashboard

import (
	"net/http"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/middleware"
	"stocksense-service/internal/pkg/response"
	authUsecase "stocksense-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardHandler serves the gated landing surfaces: the investor
// dashboard for any authenticated session and the user administration
// view for admins.
type DashboardHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewDashboardHandler(authService *authUsecase.AuthService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		authService: authService,
		logger:      logger,
	}
}

// Overview is the investor landing. A missing profile degrades to an
// empty watchlist rather than an error.
func (h *DashboardHandler) Overview(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	watchlist := []string{}
	var fullName, investorType string

	profile, err := h.authService.GetProfile(c.Request.Context(), identityID)
	if err != nil {
		h.logger.Warn("profile unavailable for dashboard",
			zap.Int64("identity_id", identityID), zap.Error(err))
	} else {
		if profile.Watchlist != nil {
			watchlist = profile.Watchlist
		}
		fullName = profile.FullName.String
		investorType = profile.InvestorType.String
	}

	response.Success(c, http.StatusOK, "ok", gin.H{
		"identity_id":   identityID,
		"full_name":     fullName,
		"investor_type": investorType,
		"watchlist":     watchlist,
	})
}

// ListUsers is the admin landing: every registered investor plus the
// admins themselves.
func (h *DashboardHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	investors, err := h.authService.ListProfiles(ctx, auth.RoleInvestor)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list users", err)
		return
	}
	admins, err := h.authService.ListProfiles(ctx, auth.RoleAdmin)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, "ok", gin.H{
		"investors": investors,
		"admins":    admins,
		"total":     len(investors) + len(admins),
	})
}
