// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"stocksense-service/internal/domain/auth"
	xerrors "stocksense-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// ProfileRepository reads the role-bearing profile records. Profiles are
// created at registration and read whenever a session becomes active;
// nothing in the auth flow mutates them afterwards.
type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile retrieves a profile by identity id
func (r *ProfileRepository) GetProfile(ctx context.Context, identityID int64) (*auth.Profile, error) {
	query := `
		SELECT id, email, full_name, role, investor_type, watchlist, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var profile auth.Profile
	err := r.db.QueryRow(ctx, query, identityID).Scan(
		&profile.ID, &profile.Email, &profile.FullName, &profile.Role,
		&profile.InvestorType, pq.Array(&profile.Watchlist),
		&profile.CreatedAt, &profile.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

// CreateProfile inserts the registration-time profile record
func (r *ProfileRepository) CreateProfile(ctx context.Context, profile *auth.Profile) error {
	query := `
		INSERT INTO profiles (id, email, full_name, role, investor_type, watchlist, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		profile.ID, profile.Email, profile.FullName, profile.Role,
		profile.InvestorType, pq.Array(profile.Watchlist),
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// ListProfilesByRole returns all profiles carrying a role, newest first.
// Used by the admin user-management screen.
func (r *ProfileRepository) ListProfilesByRole(ctx context.Context, role string) ([]*auth.Profile, error) {
	query := `
		SELECT id, email, full_name, role, investor_type, watchlist, created_at, updated_at
		FROM profiles
		WHERE role = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*auth.Profile
	for rows.Next() {
		var profile auth.Profile
		if err := rows.Scan(
			&profile.ID, &profile.Email, &profile.FullName, &profile.Role,
			&profile.InvestorType, pq.Array(&profile.Watchlist),
			&profile.CreatedAt, &profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, &profile)
	}

	return profiles, rows.Err()
}
