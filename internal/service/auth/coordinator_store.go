// internal/service/auth/coordinator_store.go
package auth

import (
	"context"
	"errors"

	"stocksense-service/internal/domain/auth"
	xerrors "stocksense-service/internal/pkg/errors"
)

// BoundStore adapts the auth service to the coordinator interfaces for
// one principal, identified by the bearer token it was constructed with.
// The realtime hub builds one per connection.
type BoundStore struct {
	service *AuthService
	token   string
}

func NewBoundStore(service *AuthService, token string) *BoundStore {
	return &BoundStore{service: service, token: token}
}

// CurrentSession validates the bound token against the live session
// store. A revoked, expired or unknown session is "no session", not an
// error.
func (b *BoundStore) CurrentSession(ctx context.Context) (*CurrentSession, error) {
	claims, err := b.service.ValidateToken(ctx, b.token)
	if err != nil {
		if errors.Is(err, xerrors.ErrSessionExpired) || errors.Is(err, xerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cur := &CurrentSession{
		IdentityID: claims.IdentityID,
		Email:      claims.Email,
		JTI:        claims.ID,
	}
	if claims.ExpiresAt != nil {
		cur.ExpiresAt = claims.ExpiresAt.Time
	}
	return cur, nil
}

// FetchProfile satisfies ProfileFetcher.
func (b *BoundStore) FetchProfile(ctx context.Context, identityID int64) (*auth.Profile, error) {
	return b.service.GetProfile(ctx, identityID)
}
