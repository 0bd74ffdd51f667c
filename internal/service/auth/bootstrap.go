// internal/service/auth/bootstrap.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stocksense-service/internal/domain/auth"
	xerrors "stocksense-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdminExists creates the configured admin account at startup if
// it does not already exist. This is the only path that produces an
// admin role; the public registration endpoint always assigns investor.
func (s *AuthService) EnsureAdminExists(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		s.logger.Info("admin bootstrap skipped, no admin credentials configured")
		return nil
	}

	existing, err := s.authRepo.FindIdentityByEmail(ctx, email)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return fmt.Errorf("failed to look up admin identity: %w", err)
	}
	if existing != nil {
		s.logger.Info("admin account already present", zap.String("email", email))
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	identity := &auth.Identity{
		Email:  sql.NullString{String: email, Valid: true},
		Status: "active",
	}
	if err := s.authRepo.CreateIdentity(ctx, identity); err != nil {
		return fmt.Errorf("failed to create admin identity: %w", err)
	}

	cred := &auth.Credential{
		IdentityID:   identity.ID,
		PasswordHash: string(hashedPassword),
	}
	if err := s.authRepo.CreateCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to create admin credential: %w", err)
	}

	profile := &auth.Profile{
		ID:       identity.ID,
		Email:    email,
		FullName: sql.NullString{String: fullName, Valid: fullName != ""},
		Role:     auth.RoleAdmin,
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to create admin profile: %w", err)
	}

	s.logger.Info("admin account bootstrapped",
		zap.String("email", email),
		zap.Int64("identity_id", identity.ID),
	)
	return nil
}
