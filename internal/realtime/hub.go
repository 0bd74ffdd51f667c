// internal/realtime/hub.go
package realtime

import (
	"context"
	"sync"
	"time"

	domain "stocksense-service/internal/domain/auth"
	rtypes "stocksense-service/internal/domain/realtime"
	"stocksense-service/internal/service/auth"

	"go.uber.org/zap"
)

// Hub tracks dashboard websocket connections. Each connection gets its
// own auth coordinator, bound to the token it connected with: the
// coordinator resolves the session, fetches the profile out of line and
// observes session-change events, and the hub relays every resulting
// state snapshot down the socket. A session revoked anywhere — another
// tab, another device, an admin — closes the connection here.
type Hub struct {
	clients      map[int64]map[*Client]bool
	coordinators map[*Client]*auth.Coordinator
	mu           sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	authService    *auth.AuthService
	events         auth.EventSource
	startupTimeout time.Duration
	logger         *zap.Logger
}

func NewHub(authService *auth.AuthService, events auth.EventSource, startupTimeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[int64]map[*Client]bool),
		coordinators:   make(map[*Client]*auth.Coordinator),
		Register:       make(chan *Client),
		unregister:     make(chan *Client, 16),
		authService:    authService,
		events:         events,
		startupTimeout: startupTimeout,
		logger:         logger,
	}
}

// AuthenticateClient validates a connection token against the live
// session store.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.authService.ValidateToken(ctx, token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &ClientAuth{
		IdentityID: claims.IdentityID,
		JTI:        claims.ID,
		Email:      claims.Email,
		Role:       claims.Role,
		Token:      token,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(ctx, client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.String("jti", client.jti),
		zap.Int("total", total),
	)

	client.SendMessage(rtypes.NewMessage(rtypes.EventTypeConnected, map[string]interface{}{
		"identity_id": client.identityID,
	}))

	h.attachCoordinator(ctx, client)
}

// attachCoordinator wires a per-connection auth coordinator to the
// client and starts it.
func (h *Hub) attachCoordinator(ctx context.Context, client *Client) {
	store := auth.NewBoundStore(h.authService, client.token)
	coordinator := auth.NewCoordinator(store, store, h.events, h.startupTimeout, h.logger)

	coordinator.SetOnChange(func(state domain.AuthState) {
		client.SendMessage(rtypes.NewMessage(rtypes.EventTypeAuthState, authStateData(state)))

		if !state.Authenticated() && !state.IsLoading {
			client.SendMessage(rtypes.NewMessage(rtypes.EventTypeForceLogout, rtypes.ForceLogoutData{
				Reason:  "session revoked",
				Message: "You have been logged out",
			}))
			h.unregister <- client
		}
	})

	if err := coordinator.Start(ctx); err != nil {
		h.logger.Error("failed to start auth coordinator",
			zap.Int64("identity_id", client.identityID), zap.Error(err))
		h.unregister <- client
		return
	}

	h.mu.Lock()
	h.coordinators[client] = coordinator
	h.mu.Unlock()
}

func authStateData(state domain.AuthState) rtypes.AuthStateData {
	data := rtypes.AuthStateData{
		Authenticated: state.Authenticated(),
		IsAdmin:       state.IsAdmin,
		IsLoading:     state.IsLoading,
	}
	if state.Identity != nil {
		data.IdentityID = state.Identity.ID
		data.Email = state.Identity.Email.String
	}
	if state.Profile != nil {
		data.Role = state.Profile.Role
		data.FullName = state.Profile.FullName.String
	}
	return data
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	coordinator := h.coordinators[client]
	delete(h.coordinators, client)

	removed := false
	if clients, ok := h.clients[client.identityID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			removed = true
			if len(clients) == 0 {
				delete(h.clients, client.identityID)
			}
		}
	}
	total := h.totalClients()
	h.mu.Unlock()

	if coordinator != nil {
		go coordinator.Close()
	}
	if removed {
		client.Close()
		h.logger.Info("websocket client disconnected",
			zap.Int64("identity_id", client.identityID),
			zap.Int("total", total),
		)
	}
}

// DisconnectIdentity drops every connection for one identity.
func (h *Hub) DisconnectIdentity(identityID int64, reason string) {
	h.mu.RLock()
	var targets []*Client
	for client := range h.clients[identityID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.SendMessage(rtypes.NewMessage(rtypes.EventTypeDisconnected, map[string]interface{}{
			"reason": reason,
		}))
		h.unregister <- client
	}
}

func (h *Hub) ConnectedClients(identityID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// totalClients must be called with mu held.
func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client, coordinator := range h.coordinators {
		go coordinator.Close()
		delete(h.coordinators, client)
	}
	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
