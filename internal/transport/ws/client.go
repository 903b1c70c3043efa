package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/transport"
)

const (
	// writeWait is the allowed time for a single write to complete
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait so the peer has time to
	// answer before the read deadline fires
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is a single websocket connection owned by the hub
type Client struct {
	id     transport.ClientID
	userID model.UserID
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub

	closeOnce sync.Once
}

func newClient(id transport.ClientID, userID model.UserID, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    hub,
	}
}

// ID returns the connection handle
func (c *Client) ID() transport.ClientID {
	return c.id
}

// close shuts the send channel and the underlying connection once
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// readPump reads inbound frames and hands them to the hub's handler.
// It owns the read side of the connection; when it returns the client is
// dropped, which fires the disconnect event exactly once.
func (c *Client) readPump() {
	defer c.hub.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error",
					slog.String("client", string(c.id)),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.hub.handler.Dispatch(context.Background(), c.id, msg)
	}
}

// writePump writes queued frames and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
