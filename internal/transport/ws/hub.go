// Package ws implements the transport.Messenger abstraction over
// gorilla/websocket connections.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/transport"
)

// EventHandler receives connection lifecycle and inbound events from the
// hub. The session coordinator implements it.
type EventHandler interface {
	Connect(client transport.ClientID, userID model.UserID)
	Dispatch(ctx context.Context, client transport.ClientID, raw []byte)
	Disconnect(ctx context.Context, client transport.ClientID)
}

// Hub owns every websocket connection and the room membership map. Sends
// go through per-connection buffered channels so a slow client never
// blocks the caller.
type Hub struct {
	logger  *slog.Logger
	handler EventHandler

	mu      sync.RWMutex
	clients map[transport.ClientID]*Client
	rooms   map[string]map[transport.ClientID]*Client
}

// NewHub creates a hub with no connections
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With(slog.String("component", "ws")),
		clients: make(map[transport.ClientID]*Client),
		rooms:   make(map[string]map[transport.ClientID]*Client),
	}
}

// SetHandler wires the event handler. Must be called before Register;
// split from construction because the coordinator also needs the hub as
// its Messenger.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// Ensure Hub implements the messenger abstraction
var _ transport.Messenger = (*Hub)(nil)

// Register adopts an upgraded connection for an authenticated user,
// notifies the handler, and starts the connection's pumps. A second
// connection for the same user coexists at the hub level; the coordinator
// re-points addressing at the newest one.
func (h *Hub) Register(conn *websocket.Conn, userID model.UserID) transport.ClientID {
	client := newClient(transport.ClientID(ulid.Make().String()), userID, conn, h)

	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client registered",
		slog.String("client", string(client.id)),
		slog.String("user_id", string(userID)),
		slog.Int("total_clients", total),
	)

	h.handler.Connect(client.id, userID)

	go client.writePump()
	go client.readPump()

	return client.id
}

// drop removes a connection from the hub and every room and fires the
// disconnect event exactly once.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	for roomID, members := range h.rooms {
		delete(members, client.id)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	client.close()

	h.logger.Info("websocket client dropped",
		slog.String("client", string(client.id)),
		slog.Int("total_clients", total),
	)

	h.handler.Disconnect(context.Background(), client.id)
}

// SendTo delivers an event to one connection
func (h *Hub) SendTo(clientID transport.ClientID, event string, payload any) {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Warn("send to unknown client",
			slog.String("client", string(clientID)),
			slog.String("event", event),
		)
		return
	}

	msg, err := marshalEvent(event, payload)
	if err != nil {
		h.logger.Error("event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	h.deliver(client, msg, event)
}

// SendToRoom delivers an event to every connection in a room
func (h *Hub) SendToRoom(roomID string, event string, payload any) {
	msg, err := marshalEvent(event, payload)
	if err != nil {
		h.logger.Error("event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for _, client := range h.rooms[roomID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		h.deliver(client, msg, event)
	}
}

// BroadcastAll delivers an event to every connected client
func (h *Hub) BroadcastAll(event string, payload any) {
	msg, err := marshalEvent(event, payload)
	if err != nil {
		h.logger.Error("event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		all = append(all, client)
	}
	h.mu.RUnlock()

	for _, client := range all {
		h.deliver(client, msg, event)
	}
}

// JoinRoom adds a connection to a room channel
func (h *Hub) JoinRoom(clientID transport.ClientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[transport.ClientID]*Client)
	}
	h.rooms[roomID][clientID] = client
}

// LeaveRoom removes a connection from a room channel
func (h *Hub) LeaveRoom(clientID transport.ClientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close tears down every connection
func (h *Hub) Close() {
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		all = append(all, client)
	}
	h.clients = make(map[transport.ClientID]*Client)
	h.rooms = make(map[string]map[transport.ClientID]*Client)
	h.mu.Unlock()

	for _, client := range all {
		client.close()
	}
	h.logger.Info("websocket hub closed", slog.Int("disconnected_clients", len(all)))
}

// deliver queues a frame on a client's send channel without blocking
func (h *Hub) deliver(client *Client, msg []byte, event string) {
	select {
	case client.send <- msg:
	default:
		h.logger.Warn("message dropped - client buffer full",
			slog.String("client", string(client.id)),
			slog.String("event", event),
		)
	}
}

func marshalEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(model.Envelope{Event: event, Data: payload})
}
