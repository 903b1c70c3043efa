// Package transport defines the messaging-channel abstraction the session
// coordinator sends through. The websocket implementation lives in
// transport/ws; tests substitute an in-memory recorder.
package transport

// ClientID is an opaque handle addressing a single connection
type ClientID string

// Messenger delivers named events to connections. Sends are fire and
// forget: delivery failures are the transport's concern (logged and the
// connection torn down), never the coordinator's.
type Messenger interface {
	// SendTo delivers an event to one connection
	SendTo(client ClientID, event string, payload any)

	// SendToRoom delivers an event to every connection in a room
	SendToRoom(roomID string, event string, payload any)

	// BroadcastAll delivers an event to every connected client
	BroadcastAll(event string, payload any)

	// JoinRoom adds a connection to a room channel
	JoinRoom(client ClientID, roomID string)

	// LeaveRoom removes a connection from a room channel
	LeaveRoom(client ClientID, roomID string)
}
