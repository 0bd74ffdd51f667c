// internal/domain/auth/dto.go
package auth

import "time"

// SignUpRequest for account registration. Role is never accepted from the
// client; registration always produces an investor.
type SignUpRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"full_name" binding:"required"`
	InvestorType string `json:"investor_type"`
	IPAddress    string `json:"-"`
	UserAgent    string `json:"-"`
}

// SignInRequest for credential verification.
type SignInRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// SignInResponse carries the issued session plus the role-appropriate
// landing route the client is expected to navigate to.
type SignInResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	LandingRoute string    `json:"landing_route"`
	User         UserInfo  `json:"user"`
}

// SignUpResponse reports registration status. No session is issued until
// the email is verified, so there is nothing session-shaped here.
type SignUpResponse struct {
	IdentityID int64  `json:"identity_id"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// UserInfo minimal user information returned with a session.
type UserInfo struct {
	IdentityID   int64  `json:"identity_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	InvestorType string `json:"investor_type,omitempty"`
}

// VerifyEmailRequest completes registration.
type VerifyEmailRequest struct {
	Token string `form:"token" binding:"required"`
}
