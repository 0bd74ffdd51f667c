// internal/service/auth/email.go
package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EmailHelper composes and sends auth-related mail. Delivery is
// best-effort: failures are logged, never surfaced to the caller.
type EmailHelper struct {
	sender  Mailer
	baseURL string
	logger  *zap.Logger
}

func NewEmailHelper(sender Mailer, baseURL string, logger *zap.Logger) *EmailHelper {
	return &EmailHelper{sender: sender, baseURL: baseURL, logger: logger}
}

func (h *EmailHelper) SendEmailVerification(ctx context.Context, to, fullName, token string) {
	if h.sender == nil {
		return
	}
	name := fullName
	if name == "" {
		name = "Investor"
	}
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", h.baseURL, token)
	body := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Welcome to StockSense. Confirm your email address to activate your account:</p>
		<p><a class="button" href="%s">Verify email</a></p>
		<p>This link expires in 24 hours. If you did not create an account, you can ignore this message.</p>
	`, name, link)

	if err := h.sender.Send(to, "Confirm your StockSense account", body); err != nil {
		h.logger.Error("failed to send verification email",
			zap.String("to", to), zap.Error(err))
	}
}

func (h *EmailHelper) SendWelcomeEmail(ctx context.Context, to, fullName string) {
	if h.sender == nil {
		return
	}
	body := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your email is verified and your account is active.</p>
		<p><a class="button" href="%s/login">Sign in to your dashboard</a></p>
	`, fullName, h.baseURL)

	if err := h.sender.Send(to, "Welcome to StockSense", body); err != nil {
		h.logger.Error("failed to send welcome email",
			zap.String("to", to), zap.Error(err))
	}
}
