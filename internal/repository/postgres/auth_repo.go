// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocksense-service/internal/domain/auth"
	xerrors "stocksense-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// ========== Identity Methods ==========

// FindIdentityByEmail retrieves an identity by email
func (r *AuthRepository) FindIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	query := `
		SELECT id, email, email_verified, email_verified_at,
		       status, last_login, failed_login_attempts, locked_until,
		       created_at, updated_at, deleted_at
		FROM auth_identities
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, email).Scan(
		&identity.ID, &identity.Email, &identity.EmailVerified, &identity.EmailVerifiedAt,
		&identity.Status, &identity.LastLogin, &identity.FailedLoginAttempts, &identity.LockedUntil,
		&identity.CreatedAt, &identity.UpdatedAt, &identity.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// FindIdentityByID retrieves an identity by id
func (r *AuthRepository) FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	query := `
		SELECT id, email, email_verified, email_verified_at,
		       status, last_login, failed_login_attempts, locked_until,
		       created_at, updated_at, deleted_at
		FROM auth_identities
		WHERE id = $1 AND deleted_at IS NULL
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, id).Scan(
		&identity.ID, &identity.Email, &identity.EmailVerified, &identity.EmailVerifiedAt,
		&identity.Status, &identity.LastLogin, &identity.FailedLoginAttempts, &identity.LockedUntil,
		&identity.CreatedAt, &identity.UpdatedAt, &identity.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// ExistsByEmail checks whether an identity with this email already exists
func (r *AuthRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM auth_identities
			WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	return exists, nil
}

// CreateIdentity inserts a new identity and sets its generated id
func (r *AuthRepository) CreateIdentity(ctx context.Context, identity *auth.Identity) error {
	query := `
		INSERT INTO auth_identities (email, email_verified, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		identity.Email, identity.EmailVerified, identity.Status,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

// UpdateIdentityStatus updates an identity's status
func (r *AuthRepository) UpdateIdentityStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE auth_identities SET status = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, id, status); err != nil {
		return fmt.Errorf("failed to update identity status: %w", err)
	}

	return nil
}

// MarkEmailVerified flips the verification flags and activates the account
func (r *AuthRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	query := `
		UPDATE auth_identities
		SET email_verified = TRUE, email_verified_at = NOW(), status = 'active', updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	return nil
}

// UpdateIdentityLastLogin resets failed attempts and records the login time
func (r *AuthRepository) UpdateIdentityLastLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE auth_identities
		SET last_login = NOW(), failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// IncrementFailedLoginAttempts bumps the counter and locks the account
// once it passes the threshold
func (r *AuthRepository) IncrementFailedLoginAttempts(ctx context.Context, id int64, lockDuration time.Duration) error {
	query := `
		UPDATE auth_identities
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= 5 THEN NOW() + $2::interval ELSE locked_until END,
		    updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, id, lockDuration.String()); err != nil {
		return fmt.Errorf("failed to increment failed attempts: %w", err)
	}

	return nil
}

// ========== Credential Methods ==========

// CreateCredential stores the bcrypt hash for a new identity
func (r *AuthRepository) CreateCredential(ctx context.Context, cred *auth.Credential) error {
	query := `
		INSERT INTO auth_credentials (identity_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, cred.IdentityID, cred.PasswordHash).
		Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// FindCredentialByIdentity retrieves the stored password hash
func (r *AuthRepository) FindCredentialByIdentity(ctx context.Context, identityID int64) (*auth.Credential, error) {
	query := `
		SELECT id, identity_id, password_hash, password_changed_at, created_at, updated_at
		FROM auth_credentials
		WHERE identity_id = $1
	`

	var cred auth.Credential
	err := r.db.QueryRow(ctx, query, identityID).Scan(
		&cred.ID, &cred.IdentityID, &cred.PasswordHash,
		&cred.PasswordChangedAt, &cred.CreatedAt, &cred.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return &cred, nil
}

// ========== Session Methods ==========

// CreateSession records an issued session
func (r *AuthRepository) CreateSession(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO auth_sessions (identity_id, session_token, refresh_token, ip_address, user_agent,
		                           status, login_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'active', NOW(), NOW(), $6)
		RETURNING id, login_at, last_activity_at
	`

	err := r.db.QueryRow(ctx, query,
		session.IdentityID, session.SessionToken, session.RefreshToken,
		session.IPAddress, session.UserAgent, session.ExpiresAt,
	).Scan(&session.ID, &session.LoginAt, &session.LastActivityAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// FindSessionByToken looks a session up by its access-token JTI
func (r *AuthRepository) FindSessionByToken(ctx context.Context, jti string) (*auth.Session, error) {
	query := `
		SELECT id, identity_id, session_token, refresh_token, ip_address, user_agent,
		       status, login_at, last_activity_at, expires_at, logout_at
		FROM auth_sessions
		WHERE session_token = $1
	`

	var session auth.Session
	err := r.db.QueryRow(ctx, query, jti).Scan(
		&session.ID, &session.IdentityID, &session.SessionToken, &session.RefreshToken,
		&session.IPAddress, &session.UserAgent, &session.Status,
		&session.LoginAt, &session.LastActivityAt, &session.ExpiresAt, &session.LogoutAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

// UpdateSessionActivity touches the last-activity timestamp
func (r *AuthRepository) UpdateSessionActivity(ctx context.Context, sessionID int64) error {
	query := `UPDATE auth_sessions SET last_activity_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}

	return nil
}

// InvalidateSession revokes a single session
func (r *AuthRepository) InvalidateSession(ctx context.Context, sessionID int64) error {
	query := `UPDATE auth_sessions SET status = 'revoked', logout_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	return nil
}

// InvalidateAllUserSessions revokes every active session for an identity
func (r *AuthRepository) InvalidateAllUserSessions(ctx context.Context, identityID int64) error {
	query := `
		UPDATE auth_sessions SET status = 'revoked', logout_at = NOW()
		WHERE identity_id = $1 AND status = 'active'
	`

	if _, err := r.db.Exec(ctx, query, identityID); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	return nil
}

// ========== Verification Token Methods ==========

// CreateVerificationToken stores a new verification token
func (r *AuthRepository) CreateVerificationToken(ctx context.Context, token *auth.VerificationToken) error {
	query := `
		INSERT INTO auth_verification_tokens (identity_id, token_type, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		token.IdentityID, token.TokenType, token.Token, token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	return nil
}

// FindVerificationToken retrieves an unused, unexpired token
func (r *AuthRepository) FindVerificationToken(ctx context.Context, tokenType, token string) (*auth.VerificationToken, error) {
	query := `
		SELECT id, identity_id, token_type, token, expires_at, used_at, created_at
		FROM auth_verification_tokens
		WHERE token_type = $1 AND token = $2 AND used_at IS NULL AND expires_at > NOW()
	`

	var vToken auth.VerificationToken
	err := r.db.QueryRow(ctx, query, tokenType, token).Scan(
		&vToken.ID, &vToken.IdentityID, &vToken.TokenType, &vToken.Token,
		&vToken.ExpiresAt, &vToken.UsedAt, &vToken.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}

	return &vToken, nil
}

// MarkTokenAsUsed consumes a verification token
func (r *AuthRepository) MarkTokenAsUsed(ctx context.Context, tokenID int64) error {
	query := `UPDATE auth_verification_tokens SET used_at = NOW() WHERE id = $1`

	if _, err := r.db.Exec(ctx, query, tokenID); err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}

	return nil
}
