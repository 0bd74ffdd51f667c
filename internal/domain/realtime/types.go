// internal/domain/realtime/types.go
package realtime

import (
	"encoding/json"
	"time"
)

// EventType classifies frames on the dashboard websocket.
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Auth-state events (server -> client)
	EventTypeAuthState   EventType = "auth:state"
	EventTypeForceLogout EventType = "session:force_logout"
)

// Message is the universal frame format on the websocket.
type Message struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMessage(eventType EventType, data interface{}) *Message {
	return &Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AuthStateData is the auth snapshot pushed to a connected client
// whenever its session or role resolution changes.
type AuthStateData struct {
	Authenticated bool   `json:"authenticated"`
	IsAdmin       bool   `json:"is_admin"`
	IsLoading     bool   `json:"is_loading"`
	IdentityID    int64  `json:"identity_id,omitempty"`
	Email         string `json:"email,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	Role          string `json:"role,omitempty"`
}

// ForceLogoutData tells a client its session is gone.
type ForceLogoutData struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorData carries error frames.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
