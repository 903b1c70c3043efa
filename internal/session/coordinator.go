// Package session binds connection events to the lobby and match
// registries and translates match outcomes into outbound messages.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/seawire/broadside/internal/game"
	"github.com/seawire/broadside/internal/lobby"
	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/transport"
)

// UserLookup resolves a user id to an identity. It may block; the
// coordinator never calls it while holding a registry lock.
type UserLookup interface {
	LookupUser(ctx context.Context, id model.UserID) (*model.User, error)
}

// connState tracks what a connection is currently bound to. The room is
// held by id only; the match registry owns the match itself.
type connState struct {
	userID model.UserID
	roomID string
}

// Coordinator drives the session and match lifecycle for all connections.
// One instance owns all lobby and room state in the process.
type Coordinator struct {
	lobby     *lobby.Registry
	matches   *game.Registry
	users     UserLookup
	messenger transport.Messenger
	logger    *slog.Logger

	mu      sync.Mutex
	conns   map[transport.ClientID]*connState
	clients map[model.UserID]transport.ClientID
}

// NewCoordinator creates a coordinator over the given registries
func NewCoordinator(
	lobbyReg *lobby.Registry,
	matches *game.Registry,
	users UserLookup,
	messenger transport.Messenger,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		lobby:     lobbyReg,
		matches:   matches,
		users:     users,
		messenger: messenger,
		logger:    logger.With(slog.String("component", "session")),
		conns:     make(map[transport.ClientID]*connState),
		clients:   make(map[model.UserID]transport.ClientID),
	}
}

// Connect registers an authenticated connection for later addressing.
// A second connection for the same user replaces the first.
func (c *Coordinator) Connect(client transport.ClientID, userID model.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[client] = &connState{userID: userID}
	c.clients[userID] = client

	c.logger.Info("connection registered",
		slog.String("user_id", string(userID)),
		slog.String("client", string(client)),
	)
}

// Disconnect handles a connection closing. The transport delivers this
// exactly once per connection; it is the only cancellation signal, so it
// drives the same forfeit/cancel path as an explicit leave.
func (c *Coordinator) Disconnect(ctx context.Context, client transport.ClientID) {
	c.mu.Lock()
	state, ok := c.conns[client]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.conns, client)
	if c.clients[state.userID] == client {
		delete(c.clients, state.userID)
	}
	c.mu.Unlock()

	c.logger.Info("connection closed",
		slog.String("user_id", string(state.userID)),
		slog.String("client", string(client)),
	)

	if state.roomID != "" {
		c.departMatch(ctx, state.roomID, state.userID)
		return
	}

	if released, ok := c.lobby.Leave(state.userID); ok {
		c.notifyChallengeDissolved(released, state.userID)
	}
	c.broadcastLobby()
}

// Dispatch decodes an inbound envelope and routes it to the matching
// handler. Handler errors are logged and isolated to the sending
// connection.
func (c *Coordinator) Dispatch(ctx context.Context, client transport.ClientID, raw []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("malformed event envelope",
			slog.String("client", string(client)),
			slog.String("error", err.Error()),
		)
		return
	}

	switch env.Event {
	case model.EventJoinLobby:
		c.JoinLobby(ctx, client)
	case model.EventLeaveLobby:
		c.LeaveLobby(client)
	case model.EventRequestChallenge:
		var p model.ChallengePayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.RequestChallenge(client, p)
		}
	case model.EventAcceptChallenge:
		var p model.ChallengePayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.AcceptChallenge(client, p)
		}
	case model.EventRejectChallenge:
		var p model.ChallengePayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.RejectChallenge(client, p)
		}
	case model.EventCancelChallenge:
		var p model.ChallengePayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.CancelChallenge(client, p)
		}
	case model.EventPlayerReady:
		var p model.PlayerReadyPayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.PlayerReady(ctx, client, p)
		}
	case model.EventResetShips:
		var p model.ResetShipsPayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.ResetShips(client, p)
		}
	case model.EventShotCalled:
		var p model.ShotCalledPayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.ShotCalled(ctx, client, p)
		}
	case model.EventLeaveGame:
		var p model.LeaveGamePayload
		if decode(c.logger, env.Event, env.Data, &p) {
			c.LeaveGame(ctx, client, p)
		}
	default:
		c.logger.Warn("unknown event",
			slog.String("event", env.Event),
			slog.String("client", string(client)),
		)
	}
}

func decode(logger *slog.Logger, event string, data json.RawMessage, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Warn("malformed event payload",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// JoinLobby resolves the connection's user and adds them to the lobby.
// The identity lookup happens before any registry lock is taken.
func (c *Coordinator) JoinLobby(ctx context.Context, client transport.ClientID) {
	userID, ok := c.userFor(client)
	if !ok {
		return
	}

	user, err := c.users.LookupUser(ctx, userID)
	if err != nil {
		c.logger.Warn("lobby join declined: user not resolvable",
			slog.String("user_id", string(userID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if released, ok := c.lobby.Join(user.ID, user.Username, client); ok {
		c.notifyChallengeDissolved(released, user.ID)
	}
	c.broadcastLobby()
}

// LeaveLobby removes the connection's user from the lobby
func (c *Coordinator) LeaveLobby(client transport.ClientID) {
	userID, ok := c.userFor(client)
	if !ok {
		return
	}
	if released, ok := c.lobby.Leave(userID); ok {
		c.notifyChallengeDissolved(released, userID)
	}
	c.broadcastLobby()
}

// notifyChallengeDissolved tells the counterpart of a departed user that
// their pending challenge no longer exists.
func (c *Coordinator) notifyChallengeDissolved(released lobby.Presence, departedID model.UserID) {
	c.messenger.SendTo(released.Client, model.EventChallengeCanceled, model.ChallengeCanceledPayload{
		ChallengerUserID: departedID,
		Message:          "The other player left the lobby.",
	})
}

// RequestChallenge opens a challenge from the connection's user to another
// lobby member. The second of two racing requests against the same target
// resolves to unavailable.
func (c *Coordinator) RequestChallenge(client transport.ClientID, p model.ChallengePayload) {
	if !c.senderIs(client, p.ChallengerUserID) {
		return
	}

	challenger, ok := c.lobby.Lookup(p.ChallengerUserID)
	if !ok {
		c.logger.Warn("challenge declined: challenger not in lobby",
			slog.String("user_id", string(p.ChallengerUserID)),
		)
		return
	}

	if err := c.lobby.MarkPending(p.ChallengerUserID, p.ChallengedUserID); err != nil {
		c.messenger.SendTo(client, model.EventChallengeUnavailable, model.ChallengeUnavailablePayload{
			Message: "That player is not available for a challenge right now.",
		})
		return
	}

	challenged, ok := c.lobby.Lookup(p.ChallengedUserID)
	if !ok {
		// Raced a leave between MarkPending and Lookup; roll back.
		_ = c.lobby.ClearPending(p.ChallengerUserID, p.ChallengedUserID)
		c.messenger.SendTo(client, model.EventChallengeUnavailable, model.ChallengeUnavailablePayload{
			Message: "That player has left the lobby.",
		})
		return
	}

	c.messenger.SendTo(challenged.Client, model.EventChallengeReceived, model.ChallengeReceivedPayload{
		ChallengerUserID:   challenger.UserID,
		ChallengerUsername: challenger.Username,
	})
	c.broadcastLobby()
}

// AcceptChallenge forms a room from a pending challenge. Both presence
// records are claimed in one critical section, the match is created, and
// both connections are moved into the room channel.
func (c *Coordinator) AcceptChallenge(client transport.ClientID, p model.ChallengePayload) {
	if !c.senderIs(client, p.ChallengedUserID) {
		return
	}

	challenger, challenged, err := c.lobby.ClaimPair(p.ChallengerUserID, p.ChallengedUserID)
	if err != nil {
		c.messenger.SendTo(client, model.EventChallengeUnavailable, model.ChallengeUnavailablePayload{
			Message: "Your opponent is no longer available.",
		})
		return
	}

	roomID := game.RoomID(challenger.UserID, challenged.UserID)
	c.matches.Create(roomID, challenger.UserID, challenged.UserID)

	c.bindRoom(challenger.Client, roomID)
	c.bindRoom(challenged.Client, roomID)
	c.messenger.JoinRoom(challenger.Client, roomID)
	c.messenger.JoinRoom(challenged.Client, roomID)

	c.logger.Info("match formed",
		slog.String("room_id", roomID),
		slog.String("challenger", string(challenger.UserID)),
		slog.String("challenged", string(challenged.UserID)),
	)

	c.messenger.SendToRoom(roomID, model.EventRoomReady, model.RoomReadyPayload{RoomID: roomID})
	c.broadcastLobby()
}

// RejectChallenge declines a pending challenge on behalf of the challenged
// user and notifies the challenger.
func (c *Coordinator) RejectChallenge(client transport.ClientID, p model.ChallengePayload) {
	if !c.senderIs(client, p.ChallengedUserID) {
		return
	}

	if err := c.lobby.ClearPending(p.ChallengerUserID, p.ChallengedUserID); err != nil {
		c.logger.Warn("reject declined",
			slog.String("challenger", string(p.ChallengerUserID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if challenger, ok := c.lobby.Lookup(p.ChallengerUserID); ok {
		c.messenger.SendTo(challenger.Client, model.EventChallengeRejected, model.ChallengeRejectedPayload{
			ChallengedUserID: p.ChallengedUserID,
			Message:          "Your challenge was declined.",
		})
	}
	c.broadcastLobby()
}

// CancelChallenge withdraws a pending challenge on behalf of the
// challenger and notifies the challenged user.
func (c *Coordinator) CancelChallenge(client transport.ClientID, p model.ChallengePayload) {
	if !c.senderIs(client, p.ChallengerUserID) {
		return
	}

	if err := c.lobby.ClearPending(p.ChallengerUserID, p.ChallengedUserID); err != nil {
		c.logger.Warn("cancel declined",
			slog.String("challenger", string(p.ChallengerUserID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if challenged, ok := c.lobby.Lookup(p.ChallengedUserID); ok {
		c.messenger.SendTo(challenged.Client, model.EventChallengeCanceled, model.ChallengeCanceledPayload{
			ChallengerUserID: p.ChallengerUserID,
			Message:          "The challenge was withdrawn.",
		})
	}
	c.broadcastLobby()
}

// PlayerReady stores a fleet layout and, once both players have submitted,
// announces the starting turn to the room.
func (c *Coordinator) PlayerReady(ctx context.Context, client transport.ClientID, p model.PlayerReadyPayload) {
	if !c.senderIs(client, p.PlayerID) {
		return
	}

	match, ok := c.matches.Get(p.RoomID)
	if !ok {
		c.logger.Warn("ready declined: match not found", slog.String("room_id", p.RoomID))
		return
	}

	allReady, err := match.SetReady(p.PlayerID, p.Ships)
	if err != nil {
		c.logger.Warn("ready declined",
			slog.String("room_id", p.RoomID),
			slog.String("player_id", string(p.PlayerID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if opponentID, ok := match.OpponentOf(p.PlayerID); ok {
		if opponentClient, ok := c.clientFor(opponentID); ok {
			c.messenger.SendTo(opponentClient, model.EventOpponentReady, model.OpponentReadyPayload{
				Username: c.displayName(ctx, p.PlayerID),
			})
		}
	}

	if allReady {
		c.messenger.SendToRoom(p.RoomID, model.EventAllPlayersReady, model.AllPlayersReadyPayload{
			RoomID:            p.RoomID,
			CurrentPlayerTurn: match.CurrentTurn(),
		})
	}
}

// ResetShips re-arms a player's board and tells the opponent
func (c *Coordinator) ResetShips(client transport.ClientID, p model.ResetShipsPayload) {
	if !c.senderIs(client, p.PlayerID) {
		return
	}

	match, ok := c.matches.Get(p.RoomID)
	if !ok {
		c.logger.Warn("reset declined: match not found", slog.String("room_id", p.RoomID))
		return
	}

	if err := match.ResetShips(p.PlayerID); err != nil {
		c.logger.Warn("reset declined",
			slog.String("room_id", p.RoomID),
			slog.String("player_id", string(p.PlayerID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if opponentID, ok := match.OpponentOf(p.PlayerID); ok {
		if opponentClient, ok := c.clientFor(opponentID); ok {
			c.messenger.SendTo(opponentClient, model.EventOpponentReset, model.OpponentResetPayload{
				PlayerID: p.PlayerID,
			})
		}
	}
}

// ShotCalled resolves a shot. Out-of-turn and wrong-state submissions are
// dropped without an outbound event, so a duplicate shot racing the turn
// flip can never double-apply.
func (c *Coordinator) ShotCalled(ctx context.Context, client transport.ClientID, p model.ShotCalledPayload) {
	if !c.senderIs(client, p.CurrentPlayerID) {
		return
	}

	match, ok := c.matches.Get(p.RoomID)
	if !ok {
		c.logger.Warn("shot declined: match not found", slog.String("room_id", p.RoomID))
		return
	}

	outcome, err := match.ApplyShot(p.CurrentPlayerID, p.Square)
	if err != nil {
		c.logger.Debug("shot rejected",
			slog.String("room_id", p.RoomID),
			slog.String("player_id", string(p.CurrentPlayerID)),
			slog.String("error", err.Error()),
		)
		return
	}

	switch outcome.Kind {
	case game.OutcomeMiss:
		c.messenger.SendToRoom(p.RoomID, model.EventShotMiss, model.ShotResultPayload{
			Square:            p.Square,
			CurrentPlayerTurn: outcome.NextTurn,
		})
	case game.OutcomeHit:
		c.messenger.SendToRoom(p.RoomID, model.EventShotHit, model.ShotResultPayload{
			Square:            p.Square,
			CurrentPlayerTurn: outcome.NextTurn,
		})
	case game.OutcomeSunk:
		c.messenger.SendToRoom(p.RoomID, model.EventShipSunk, model.ShotResultPayload{
			Square:            p.Square,
			CurrentPlayerTurn: outcome.NextTurn,
		})
	case game.OutcomeGameOver:
		winnerName := c.displayName(ctx, outcome.Winner)
		c.messenger.SendToRoom(p.RoomID, model.EventGameOver, model.GameOverPayload{
			Winner:   winnerName,
			WinnerID: outcome.Winner,
			Message:  "All enemy ships destroyed.",
		})
		c.teardownRoom(p.RoomID)
	}
}

// LeaveGame handles an explicit departure from a room
func (c *Coordinator) LeaveGame(ctx context.Context, client transport.ClientID, p model.LeaveGamePayload) {
	if !c.senderIs(client, p.PlayerID) {
		return
	}

	c.messenger.LeaveRoom(client, p.RoomID)
	c.unbindRoom(client)
	c.departMatch(ctx, p.RoomID, p.PlayerID)
}

// departMatch drives the forfeit/cancel path shared by explicit leaves and
// disconnects.
func (c *Coordinator) departMatch(ctx context.Context, roomID string, playerID model.UserID) {
	match, ok := c.matches.Get(roomID)
	if !ok {
		return
	}

	dep, err := match.RemovePlayer(playerID)
	if err != nil {
		c.logger.Warn("departure ignored",
			slog.String("room_id", roomID),
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if dep.Empty {
		c.matches.Destroy(roomID)
		c.logger.Info("match torn down", slog.String("room_id", roomID))
		return
	}

	if dep.Forfeit {
		winnerName := c.displayName(ctx, dep.Winner)
		c.messenger.SendToRoom(roomID, model.EventGameOver, model.GameOverPayload{
			Winner:   winnerName,
			WinnerID: dep.Winner,
			Message:  "Your opponent left the game.",
		})
	} else {
		c.messenger.SendToRoom(roomID, model.EventGameCancelled, model.GameCancelledPayload{
			Message: "Your opponent left before the game started.",
		})
	}
	c.teardownRoom(roomID)
}

// teardownRoom destroys a finished match, unbinds every connection still
// referencing it, and releases their room channel membership.
func (c *Coordinator) teardownRoom(roomID string) {
	c.matches.Destroy(roomID)

	c.mu.Lock()
	var members []transport.ClientID
	for client, state := range c.conns {
		if state.roomID == roomID {
			state.roomID = ""
			members = append(members, client)
		}
	}
	c.mu.Unlock()

	for _, client := range members {
		c.messenger.LeaveRoom(client, roomID)
	}
}

// displayName resolves a username for display. Lookup failure degrades to
// an empty name; it never blocks or fails the surrounding action.
func (c *Coordinator) displayName(ctx context.Context, userID model.UserID) string {
	user, err := c.users.LookupUser(ctx, userID)
	if err != nil {
		c.logger.Warn("username lookup failed",
			slog.String("user_id", string(userID)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return user.Username
}

func (c *Coordinator) broadcastLobby() {
	c.messenger.BroadcastAll(model.EventUpdateLobby, c.lobby.Snapshot())
}

// senderIs reports whether the connection is authenticated as the user an
// event payload claims to act for. Mismatches are dropped and logged; the
// payload id is never trusted on its own.
func (c *Coordinator) senderIs(client transport.ClientID, claimed model.UserID) bool {
	userID, ok := c.userFor(client)
	if !ok || userID != claimed {
		c.logger.Warn("event dropped: sender does not match claimed user",
			slog.String("client", string(client)),
			slog.String("claimed_user_id", string(claimed)),
		)
		return false
	}
	return true
}

func (c *Coordinator) userFor(client transport.ClientID) (model.UserID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.conns[client]
	if !ok {
		return "", false
	}
	return state.userID, true
}

func (c *Coordinator) clientFor(userID model.UserID) (transport.ClientID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[userID]
	return client, ok
}

func (c *Coordinator) bindRoom(client transport.ClientID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.conns[client]; ok {
		state.roomID = roomID
	}
}

func (c *Coordinator) unbindRoom(client transport.ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.conns[client]; ok {
		state.roomID = ""
	}
}
