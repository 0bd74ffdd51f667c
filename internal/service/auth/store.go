// internal/service/auth/store.go
package auth

import (
	"context"
	"time"

	"stocksense-service/internal/domain/auth"
	"stocksense-service/internal/pkg/session"
)

// The service talks to its collaborators through narrow interfaces so
// the auth flows can be exercised against fakes. The postgres
// repositories, the Redis session manager and the broker satisfy them.

// AuthStore is the persistence surface for identities, credentials,
// session audit rows and verification tokens.
type AuthStore interface {
	FindIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error)
	FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateIdentity(ctx context.Context, identity *auth.Identity) error
	MarkEmailVerified(ctx context.Context, id int64) error
	UpdateIdentityLastLogin(ctx context.Context, id int64) error
	IncrementFailedLoginAttempts(ctx context.Context, id int64, lockDuration time.Duration) error

	CreateCredential(ctx context.Context, cred *auth.Credential) error
	FindCredentialByIdentity(ctx context.Context, identityID int64) (*auth.Credential, error)

	CreateSession(ctx context.Context, session *auth.Session) error

	CreateVerificationToken(ctx context.Context, token *auth.VerificationToken) error
	FindVerificationToken(ctx context.Context, tokenType, token string) (*auth.VerificationToken, error)
	MarkTokenAsUsed(ctx context.Context, tokenID int64) error
}

// ProfileStore reads and creates the role-bearing profile records.
type ProfileStore interface {
	GetProfile(ctx context.Context, identityID int64) (*auth.Profile, error)
	CreateProfile(ctx context.Context, profile *auth.Profile) error
	ListProfilesByRole(ctx context.Context, role string) ([]*auth.Profile, error)
}

// SessionCache is the live session store (Redis).
type SessionCache interface {
	CreateSession(ctx context.Context, data *session.SessionData) error
	GetSession(ctx context.Context, identityID int64, jti string) (*session.SessionData, error)
	InvalidateSession(ctx context.Context, identityID int64, jti string) error
	InvalidateAllUserSessions(ctx context.Context, identityID int64) error
	PurgeResidue(ctx context.Context, identityID int64) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	GetUserActiveSessions(ctx context.Context, identityID int64) ([]*session.SessionData, error)
}

// LoginLimiter throttles credential and registration attempts.
type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, email string) error
	CheckRegistrationAttempt(ctx context.Context, ip string) (bool, error)
}

// EventPublisher emits session-change notifications.
type EventPublisher interface {
	Publish(ctx context.Context, event session.Event)
}

// Mailer sends outgoing mail. Sending is always best-effort.
type Mailer interface {
	Send(to, subject, bodyHTML string) error
}
