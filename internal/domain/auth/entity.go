// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Role values. Profile.Role is the sole source of administrative
// authorization; no other field may grant elevated access.
const (
	RoleInvestor = "investor"
	RoleAdmin    = "admin"
)

// Identity represents the minimal principal bound to a session.
type Identity struct {
	ID                  int64          `json:"id" db:"id"`
	Email               sql.NullString `json:"email" db:"email"`
	EmailVerified       bool           `json:"email_verified" db:"email_verified"`
	EmailVerifiedAt     sql.NullTime   `json:"email_verified_at" db:"email_verified_at"`
	Status              string         `json:"status" db:"status"` // active, pending_verification, disabled
	LastLogin           sql.NullTime   `json:"last_login" db:"last_login"`
	FailedLoginAttempts int            `json:"-" db:"failed_login_attempts"`
	LockedUntil         sql.NullTime   `json:"-" db:"locked_until"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt           sql.NullTime   `json:"-" db:"deleted_at"`
}

// Credential holds the local password hash for an identity.
type Credential struct {
	ID                int64        `json:"id" db:"id"`
	IdentityID        int64        `json:"identity_id" db:"identity_id"`
	PasswordHash      string       `json:"-" db:"password_hash"`
	PasswordChangedAt sql.NullTime `json:"-" db:"password_changed_at"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// Profile is the durable, role-bearing record keyed by identity id.
// The coordinator only ever reads it; registration creates it.
type Profile struct {
	ID           int64          `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	FullName     sql.NullString `json:"full_name" db:"full_name"`
	Role         string         `json:"role" db:"role"` // investor, admin
	InvestorType sql.NullString `json:"investor_type" db:"investor_type"`
	Watchlist    []string       `json:"watchlist" db:"watchlist"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile's role grants admin access.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Session is the audit record of an issued session. The Redis copy keyed
// by identity+JTI is the live source of truth; this row survives it.
type Session struct {
	ID             int64          `json:"id" db:"id"`
	IdentityID     int64          `json:"identity_id" db:"identity_id"`
	SessionToken   string         `json:"-" db:"session_token"` // access token JTI
	RefreshToken   sql.NullString `json:"-" db:"refresh_token"`
	IPAddress      sql.NullString `json:"ip_address" db:"ip_address"`
	UserAgent      sql.NullString `json:"user_agent" db:"user_agent"`
	Status         string         `json:"status" db:"status"` // active, expired, revoked
	LoginAt        time.Time      `json:"login_at" db:"login_at"`
	LastActivityAt time.Time      `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
	LogoutAt       sql.NullTime   `json:"logout_at" db:"logout_at"`
}

// VerificationToken represents an email verification token.
type VerificationToken struct {
	ID         int64        `json:"id" db:"id"`
	IdentityID int64        `json:"identity_id" db:"identity_id"`
	TokenType  string       `json:"token_type" db:"token_type"` // email_verify
	Token      string       `json:"token" db:"token"`
	ExpiresAt  time.Time    `json:"expires_at" db:"expires_at"`
	UsedAt     sql.NullTime `json:"used_at" db:"used_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// AuthState is the derived, in-memory truth about "who is logged in and
// with what role". Owned by a single writer (the coordinator); everything
// else reads value snapshots.
//
// Invariants: IsAdmin == (Profile != nil && Profile.Role == RoleAdmin);
// IsLoading is true only between startup (or a session event) and the
// completion of the subsequent profile fetch.
type AuthState struct {
	Identity  *Identity `json:"identity"`
	Profile   *Profile  `json:"profile"`
	IsLoading bool      `json:"is_loading"`
	IsAdmin   bool      `json:"is_admin"`
}

// Authenticated reports whether a session-bound identity is present.
func (s AuthState) Authenticated() bool {
	return s.Identity != nil
}
