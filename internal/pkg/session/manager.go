// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stocksense-service/internal/repository/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis key prefixes owned by the session layer. The hygiene purge
// enumerates every one of them for an identity, not just the primary
// session key, so an interrupted sign-in cannot leave a stale token
// behind for the next session to pick up.
const (
	sessionPrefix   = "session:"
	refreshPrefix   = "refresh:"
	authStatePrefix = "authstate:"
	blacklistPrefix = "blacklist:"
)

type Manager struct {
	client   *redis.Client
	authRepo *postgres.AuthRepository
	logger   *zap.Logger
}

func NewManager(client *redis.Client, authRepo *postgres.AuthRepository, logger *zap.Logger) *Manager {
	return &Manager{
		client:   client,
		authRepo: authRepo,
		logger:   logger,
	}
}

// CreateSession stores a new session in Redis and touches the DB record
func (m *Manager) CreateSession(ctx context.Context, session *SessionData) error {
	key := m.sessionKey(session.IdentityID, session.JTI)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}

	// Redis is the source of truth; the DB row is audit trail only
	if session.SessionID > 0 {
		if err := m.authRepo.UpdateSessionActivity(ctx, session.SessionID); err != nil {
			m.logger.Warn("failed to update DB session activity", zap.Error(err))
		}
	}

	return nil
}

// GetSession retrieves a session from Redis with DB fallback
func (m *Manager) GetSession(ctx context.Context, identityID int64, jti string) (*SessionData, error) {
	key := m.sessionKey(identityID, jti)

	data, err := m.client.Get(ctx, key).Bytes()
	if err == nil {
		var session SessionData
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}

		session.LastActivityAt = time.Now()
		go m.touchActivity(context.Background(), identityID, jti)

		return &session, nil
	}

	if err != redis.Nil {
		m.logger.Warn("redis error, falling back to DB", zap.Error(err))
	}

	dbSession, dbErr := m.authRepo.FindSessionByToken(ctx, jti)
	if dbErr != nil {
		return nil, fmt.Errorf("session not found: %w", dbErr)
	}

	if dbSession.IdentityID != identityID {
		return nil, fmt.Errorf("session identity mismatch")
	}
	if dbSession.Status != "active" || dbSession.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("session revoked or expired")
	}

	sessionData := &SessionData{
		JTI:            jti,
		IdentityID:     dbSession.IdentityID,
		SessionID:      dbSession.ID,
		IPAddress:      dbSession.IPAddress.String,
		UserAgent:      dbSession.UserAgent.String,
		LoginAt:        dbSession.LoginAt,
		LastActivityAt: dbSession.LastActivityAt,
		ExpiresAt:      dbSession.ExpiresAt,
		IsActive:       true,
	}

	identity, err := m.authRepo.FindIdentityByID(ctx, identityID)
	if err == nil && identity.Email.Valid {
		sessionData.Email = identity.Email.String
	}

	// Restore to Redis for next time
	go func() {
		if err := m.CreateSession(context.Background(), sessionData); err != nil {
			m.logger.Warn("failed to restore session to redis", zap.Error(err))
		}
	}()

	return sessionData, nil
}

func (m *Manager) touchActivity(ctx context.Context, identityID int64, jti string) {
	key := m.sessionKey(identityID, jti)

	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		return // session gone or expired
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return
	}

	session.LastActivityAt = time.Now()

	updated, err := json.Marshal(session)
	if err != nil {
		return
	}

	if ttl := time.Until(session.ExpiresAt); ttl > 0 {
		m.client.Set(ctx, key, updated, ttl)
	}
}

// InvalidateSession removes a single session from Redis and the DB
func (m *Manager) InvalidateSession(ctx context.Context, identityID int64, jti string) error {
	key := m.sessionKey(identityID, jti)

	if err := m.client.Del(ctx, key).Err(); err != nil {
		m.logger.Warn("failed to delete session from redis", zap.Error(err))
	}

	dbSession, err := m.authRepo.FindSessionByToken(ctx, jti)
	if err == nil {
		if err := m.authRepo.InvalidateSession(ctx, dbSession.ID); err != nil {
			return fmt.Errorf("failed to invalidate DB session: %w", err)
		}
	}

	return nil
}

// InvalidateAllUserSessions revokes every session for an identity
// (global sign-out: all devices and tabs, not just the caller's).
func (m *Manager) InvalidateAllUserSessions(ctx context.Context, identityID int64) error {
	pattern := fmt.Sprintf("%s%d:*", sessionPrefix, identityID)

	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			m.logger.Warn("failed to delete session key",
				zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}

	if err := m.authRepo.InvalidateAllUserSessions(ctx, identityID); err != nil {
		return fmt.Errorf("failed to invalidate DB sessions: %w", err)
	}

	return nil
}

// PurgeResidue removes every persisted session artifact for an identity
// across all known key prefixes. Run before establishing a new session
// and around destroying one; a half-cleaned state must never silently
// reuse a stale token.
func (m *Manager) PurgeResidue(ctx context.Context, identityID int64) error {
	patterns := []string{
		fmt.Sprintf("%s%d:*", sessionPrefix, identityID),
		fmt.Sprintf("%s%d:*", refreshPrefix, identityID),
		fmt.Sprintf("%s%d", authStatePrefix, identityID),
	}

	var firstErr error
	for _, pattern := range patterns {
		iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
				m.logger.Warn("failed to purge session artifact",
					zap.String("key", iter.Val()), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if err := iter.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist until its natural expiry
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return m.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// GetUserActiveSessions returns all live sessions for an identity
func (m *Manager) GetUserActiveSessions(ctx context.Context, identityID int64) ([]*SessionData, error) {
	pattern := fmt.Sprintf("%s%d:*", sessionPrefix, identityID)

	var sessions []*SessionData
	iter := m.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := m.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue // expired between scan and get
		}

		var session SessionData
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}

		sessions = append(sessions, &session)
	}

	return sessions, iter.Err()
}

func (m *Manager) sessionKey(identityID int64, jti string) string {
	return fmt.Sprintf("%s%d:%s", sessionPrefix, identityID, jti)
}
