// internal/pkg/session/types.go
package session

import "time"

// SessionData is the live session record kept in Redis, keyed by
// identity id + access-token JTI.
type SessionData struct {
	JTI            string    `json:"jti"`
	IdentityID     int64     `json:"identity_id"`
	SessionID      int64     `json:"session_id"` // DB session ID
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsActive       bool      `json:"is_active"`
}

// EventType classifies session-change notifications.
type EventType string

const (
	EventSignedIn  EventType = "session:signed_in"
	EventRefreshed EventType = "session:refreshed"
	EventRevoked   EventType = "session:revoked"
	EventExpired   EventType = "session:expired"
)

// Event is a session-change notification published on the broker.
// Established indicates whether a session exists after the event; JTI is
// empty on identity-wide revocations.
type Event struct {
	Type        EventType `json:"type"`
	IdentityID  int64     `json:"identity_id"`
	JTI         string    `json:"jti,omitempty"`
	Established bool      `json:"established"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}
