// internal/realtime/client.go
package realtime

import (
	"context"
	"sync"
	"time"

	rtypes "stocksense-service/internal/domain/realtime"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ClientAuth holds the session identity a connection was opened with.
// Token is the raw bearer token; the per-connection coordinator
// revalidates it against the live session store.
type ClientAuth struct {
	IdentityID int64
	JTI        string
	Email      string
	Role       string
	Token      string
}

// Client is one dashboard websocket connection. Its auth state is owned
// by a per-connection coordinator; the client only relays frames.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	identityID int64
	jti        string
	email      string
	token      string
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		identityID: auth.IdentityID,
		jti:        auth.JTI,
		email:      auth.Email,
		token:      auth.Token,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Client) IdentityID() int64 { return c.identityID }
func (c *Client) JTI() string       { return c.jti }

// ReadPump consumes frames from the client until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Debug("websocket read error", zap.Error(err))
				}
				return
			}
			c.handleMessage(message)
		}
	}
}

// WritePump pushes queued frames and keepalive pings to the client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	msg, err := rtypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "failed to parse message", err.Error())
		return
	}

	switch msg.Type {
	case rtypes.EventTypePing:
		c.SendMessage(rtypes.NewMessage(rtypes.EventTypePong, nil))
	}
}

// SendMessage queues a frame for delivery. A client that can't keep up
// is disconnected rather than blocking the hub.
func (c *Client) SendMessage(msg *rtypes.Message) {
	data, err := msg.ToJSON()
	if err != nil {
		c.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
		c.hub.unregister <- c
	}
}

func (c *Client) SendError(code, message, details string) {
	c.SendMessage(rtypes.NewMessage(rtypes.EventTypeError, rtypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close tears the connection down once. The send channel is left open
// so a concurrent SendMessage can never hit a closed channel; both pumps
// exit on the cancelled context.
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
}
