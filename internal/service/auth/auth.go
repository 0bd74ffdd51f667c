// internal/service/auth/auth.go
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/gate"
	xerrors "stocksense-service/internal/pkg/errors"
	"stocksense-service/internal/pkg/jwt"
	"stocksense-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	authRepo    AuthStore
	profiles    ProfileStore
	jwtManager  *jwt.Manager
	sessions    SessionCache
	rateLimiter LoginLimiter
	broker      EventPublisher
	emailHelper *EmailHelper
	logger      *zap.Logger
}

func NewAuthService(
	authRepo AuthStore,
	profiles ProfileStore,
	jwtManager *jwt.Manager,
	sessions SessionCache,
	rateLimiter LoginLimiter,
	broker EventPublisher,
	emailHelper *EmailHelper,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		authRepo:    authRepo,
		profiles:    profiles,
		jwtManager:  jwtManager,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		broker:      broker,
		emailHelper: emailHelper,
		logger:      logger,
	}
}

// ========== Registration ==========

// SignUp creates a new investor account. The role is always investor
// here no matter what the client sent; admin accounts only ever come
// from the startup bootstrap. No session is issued until the email is
// verified.
func (s *AuthService) SignUp(ctx context.Context, req *auth.SignUpRequest) (*auth.SignUpResponse, error) {
	if req.IPAddress != "" {
		allowed, err := s.rateLimiter.CheckRegistrationAttempt(ctx, req.IPAddress)
		if err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
		if !allowed {
			return nil, xerrors.ErrRateLimited
		}
	}

	exists, err := s.authRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, xerrors.Wrap(xerrors.ErrRegistrationFailed, "email already registered")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &auth.Identity{
		Email:  sql.NullString{String: req.Email, Valid: true},
		Status: "pending_verification",
	}

	if err := s.authRepo.CreateIdentity(ctx, identity); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrRegistrationFailed, err.Error())
	}

	// New identity: make sure no session artifact predates it.
	if err := s.sessions.PurgeResidue(ctx, identity.ID); err != nil {
		s.logger.Warn("residue purge failed during sign-up", zap.Error(err))
	}

	cred := &auth.Credential{
		IdentityID:   identity.ID,
		PasswordHash: string(hashedPassword),
	}

	if err := s.authRepo.CreateCredential(ctx, cred); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrRegistrationFailed, err.Error())
	}

	profile := &auth.Profile{
		ID:           identity.ID,
		Email:        req.Email,
		FullName:     sql.NullString{String: req.FullName, Valid: req.FullName != ""},
		Role:         auth.RoleInvestor,
		InvestorType: sql.NullString{String: req.InvestorType, Valid: req.InvestorType != ""},
	}

	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrRegistrationFailed, err.Error())
	}

	if err := s.sendEmailVerification(ctx, identity.ID, req.Email, req.FullName); err != nil {
		// Don't fail registration if the verification mail can't go out
		s.logger.Error("failed to send verification email", zap.Error(err))
	}

	return &auth.SignUpResponse{
		IdentityID: identity.ID,
		Email:      req.Email,
		Status:     identity.Status,
		Message:    "registration successful, please check your email for the confirmation link",
	}, nil
}

func (s *AuthService) sendEmailVerification(ctx context.Context, identityID int64, email, fullName string) error {
	token := generateToken()

	vToken := &auth.VerificationToken{
		IdentityID: identityID,
		TokenType:  "email_verify",
		Token:      token,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}

	if err := s.authRepo.CreateVerificationToken(ctx, vToken); err != nil {
		return err
	}

	s.emailHelper.SendEmailVerification(ctx, email, fullName, token)
	return nil
}

func generateToken() string {
	tokenBytes := make([]byte, 32)
	rand.Read(tokenBytes)
	return base64.URLEncoding.EncodeToString(tokenBytes)
}

// VerifyEmail verifies a pending account using its emailed token and
// activates it.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	vToken, err := s.authRepo.FindVerificationToken(ctx, "email_verify", token)
	if err != nil {
		return fmt.Errorf("invalid or expired token")
	}

	if err := s.authRepo.MarkEmailVerified(ctx, vToken.IdentityID); err != nil {
		return fmt.Errorf("failed to activate account: %w", err)
	}

	if err := s.authRepo.MarkTokenAsUsed(ctx, vToken.ID); err != nil {
		s.logger.Error("failed to mark token as used", zap.Error(err))
	}

	profile, _ := s.profiles.GetProfile(ctx, vToken.IdentityID)
	fullName := "Investor"
	if profile != nil && profile.FullName.Valid {
		fullName = profile.FullName.String
	}
	if profile != nil {
		s.emailHelper.SendWelcomeEmail(ctx, profile.Email, fullName)
	}

	return nil
}

// ========== Sign-in ==========

// SignIn authenticates email/password credentials and issues a session.
// Any pre-existing session residue for the identity is purged first, and
// prior sessions are globally invalidated, mirroring the defensive
// client behavior of cleaning up before establishing a fresh session.
//
// A missing or unreadable profile does not fail the sign-in: the caller
// gets an authenticated, non-admin session and the condition is logged.
func (s *AuthService) SignIn(ctx context.Context, req *auth.SignInRequest) (*auth.SignInResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	identity, err := s.authRepo.FindIdentityByEmail(ctx, req.Email)
	if err != nil {
		return nil, xerrors.ErrInvalidCredentials
	}

	if identity.Status == "pending_verification" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidCredentials, "email not verified")
	}
	if identity.Status == "disabled" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidCredentials, "account is disabled")
	}
	if identity.LockedUntil.Valid && identity.LockedUntil.Time.After(time.Now()) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidCredentials,
			fmt.Sprintf("account is temporarily locked until %s", identity.LockedUntil.Time.Format(time.RFC3339)))
	}

	cred, err := s.authRepo.FindCredentialByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, xerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		s.authRepo.IncrementFailedLoginAttempts(ctx, identity.ID, 30*time.Minute)
		return nil, xerrors.Wrap(xerrors.ErrInvalidCredentials,
			fmt.Sprintf("attempts remaining: %d", remaining))
	}

	if err := s.authRepo.UpdateIdentityLastLogin(ctx, identity.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}
	s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Email)

	// Session hygiene: no stale artifact may coexist with the new
	// session. A failed global invalidation is tolerated, the purge is
	// not conditional on it.
	if err := s.sessions.PurgeResidue(ctx, identity.ID); err != nil {
		s.logger.Warn("residue purge failed during sign-in", zap.Error(err))
	}
	if err := s.sessions.InvalidateAllUserSessions(ctx, identity.ID); err != nil {
		s.logger.Warn("pre-sign-in global invalidation failed", zap.Error(err))
	}

	return s.establishSession(ctx, identity, req.IPAddress, req.UserAgent)
}

// establishSession resolves the profile, issues tokens and records the
// session in Redis and the DB.
func (s *AuthService) establishSession(ctx context.Context, identity *auth.Identity, ipAddress, userAgent string) (*auth.SignInResponse, error) {
	profile, err := s.profiles.GetProfile(ctx, identity.ID)
	if err != nil {
		s.logger.Warn("profile unavailable, degrading to non-admin",
			zap.Int64("identity_id", identity.ID),
			zap.Error(xerrors.Wrap(xerrors.ErrProfileUnavailable, err.Error())),
		)
		profile = nil
	}

	role := auth.RoleInvestor
	if profile.IsAdmin() {
		role = auth.RoleAdmin
	}

	accessToken, accessJTI, err := s.jwtManager.Generator.GenerateAccessToken(
		identity.ID, identity.Email.String, role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, _, err := s.jwtManager.Generator.GenerateRefreshToken(identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(s.jwtManager.Generator.Ttl)

	dbSession := &auth.Session{
		IdentityID:   identity.ID,
		SessionToken: accessJTI,
		RefreshToken: sql.NullString{String: refreshToken, Valid: true},
		IPAddress:    sql.NullString{String: ipAddress, Valid: ipAddress != ""},
		UserAgent:    sql.NullString{String: userAgent, Valid: userAgent != ""},
		ExpiresAt:    expiresAt,
	}

	if err := s.authRepo.CreateSession(ctx, dbSession); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sessionData := &session.SessionData{
		JTI:            accessJTI,
		IdentityID:     identity.ID,
		SessionID:      dbSession.ID,
		Email:          identity.Email.String,
		Role:           role,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		LoginAt:        time.Now(),
		LastActivityAt: time.Now(),
		ExpiresAt:      expiresAt,
		IsActive:       true,
	}

	if err := s.sessions.CreateSession(ctx, sessionData); err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	s.broker.Publish(ctx, session.Event{
		Type:        session.EventSignedIn,
		IdentityID:  identity.ID,
		JTI:         accessJTI,
		Established: true,
	})

	resp := &auth.SignInResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtManager.Generator.Ttl.Seconds()),
		ExpiresAt:    expiresAt,
		LandingRoute: gate.LandingFor(role == auth.RoleAdmin),
		User: auth.UserInfo{
			IdentityID: identity.ID,
			Email:      identity.Email.String,
			Role:       role,
		},
	}
	if profile != nil {
		resp.User.FullName = profile.FullName.String
		resp.User.InvestorType = profile.InvestorType.String
	}

	return resp, nil
}

// ========== Sign-out ==========

// SignOut destroys the caller's sessions everywhere. Residue is purged
// both before and after the global invalidation so a failed remote call
// still leaves the local session store clean; a transport failure is
// reported to the caller but never blocks the cleanup.
func (s *AuthService) SignOut(ctx context.Context, identityID int64, jti string) error {
	if err := s.sessions.PurgeResidue(ctx, identityID); err != nil {
		s.logger.Warn("residue purge failed before sign-out", zap.Error(err))
	}

	var transportErr error
	if err := s.sessions.InvalidateAllUserSessions(ctx, identityID); err != nil {
		transportErr = xerrors.Wrap(xerrors.ErrSessionTransport, err.Error())
		s.logger.Error("global sign-out failed, local state still cleared",
			zap.Int64("identity_id", identityID), zap.Error(err))
	}

	if err := s.sessions.BlacklistToken(ctx, jti, s.jwtManager.Generator.Ttl); err != nil {
		s.logger.Warn("failed to blacklist token", zap.Error(err))
	}

	if err := s.sessions.PurgeResidue(ctx, identityID); err != nil {
		s.logger.Warn("residue purge failed after sign-out", zap.Error(err))
	}

	s.broker.Publish(ctx, session.Event{
		Type:       session.EventRevoked,
		IdentityID: identityID,
		JTI:        jti,
		Reason:     "user signed out",
	})

	return transportErr
}

// RevokeSession revokes one specific session (another device/tab).
func (s *AuthService) RevokeSession(ctx context.Context, identityID int64, jti string) error {
	if err := s.sessions.InvalidateSession(ctx, identityID, jti); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if err := s.sessions.BlacklistToken(ctx, jti, s.jwtManager.Generator.Ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	s.broker.Publish(ctx, session.Event{
		Type:       session.EventRevoked,
		IdentityID: identityID,
		JTI:        jti,
		Reason:     "session revoked",
	})

	return nil
}

// ========== Token & session lookups ==========

// ValidateToken validates a JWT access token against signature,
// blacklist and the live session store.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	blacklisted, err := s.sessions.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, xerrors.ErrSessionExpired
	}

	if _, err := s.sessions.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrSessionExpired, err.Error())
	}

	return claims, nil
}

// GetProfile retrieves the profile for an identity.
func (s *AuthService) GetProfile(ctx context.Context, identityID int64) (*auth.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, identityID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrProfileUnavailable, err.Error())
	}
	return profile, nil
}

// ListProfiles returns every profile with the given role (admin screens).
func (s *AuthService) ListProfiles(ctx context.Context, role string) ([]*auth.Profile, error) {
	return s.profiles.ListProfilesByRole(ctx, role)
}

// GetActiveSessions returns all live sessions for an identity.
func (s *AuthService) GetActiveSessions(ctx context.Context, identityID int64) ([]*session.SessionData, error) {
	sessions, err := s.sessions.GetUserActiveSessions(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	return sessions, nil
}
