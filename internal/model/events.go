package model

// Inbound event names consumed over the websocket
const (
	EventJoinLobby        = "join_pvp_lobby"
	EventLeaveLobby       = "leave_pvp_lobby"
	EventRequestChallenge = "request_challenge"
	EventAcceptChallenge  = "accept_challenge"
	EventRejectChallenge  = "reject_challenge"
	EventCancelChallenge  = "cancel_challenge"
	EventPlayerReady      = "player_ready"
	EventResetShips       = "reset_ships"
	EventShotCalled       = "shot_called"
	EventLeaveGame        = "leave_game"
)

// Outbound event names emitted over the websocket
const (
	EventUpdateLobby          = "update_lobby"
	EventChallengeReceived    = "challenge_received"
	EventChallengeUnavailable = "challenge_unavailable"
	EventChallengeCanceled    = "challenge_canceled"
	EventChallengeRejected    = "challenge_rejected"
	EventRoomReady            = "room_ready"
	EventOpponentReady        = "opponent_ready"
	EventAllPlayersReady      = "all_players_ready"
	EventOpponentReset        = "opponent_reset"
	EventShotHit              = "shot_hit"
	EventShotMiss             = "shot_miss"
	EventShipSunk             = "ship_sunk"
	EventGameOver             = "game_over"
	EventGameCancelled        = "game_cancelled"
)

// Envelope is the wire frame carrying every websocket event
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// LobbyUser is one entry of the lobby snapshot broadcast to clients
type LobbyUser struct {
	Username           string `json:"username"`
	ID                 UserID `json:"id"`
	InPendingChallenge bool   `json:"inPendingChallenge"`
}

// Inbound payloads

type JoinLobbyPayload struct {
	UserID UserID `json:"userId"`
}

type ChallengePayload struct {
	ChallengerUserID UserID `json:"challengerUserId"`
	ChallengedUserID UserID `json:"challengedUserId"`
}

type PlayerReadyPayload struct {
	PlayerID UserID              `json:"playerId"`
	RoomID   string              `json:"roomId"`
	Ships    map[string][]string `json:"ships"`
}

type ResetShipsPayload struct {
	PlayerID UserID `json:"playerId"`
	RoomID   string `json:"roomId"`
}

type ShotCalledPayload struct {
	RoomID          string `json:"roomId"`
	CurrentPlayerID UserID `json:"currentPlayerId"`
	Square          string `json:"square"`
}

type LeaveGamePayload struct {
	RoomID      string `json:"roomId"`
	PlayerID    UserID `json:"playerId"`
	CurrentRoom string `json:"currentRoom"`
}

// Outbound payloads

type ChallengeReceivedPayload struct {
	ChallengerUserID   UserID `json:"challengerUserId"`
	ChallengerUsername string `json:"challengerUsername"`
}

type ChallengeUnavailablePayload struct {
	Message string `json:"message"`
}

type ChallengeCanceledPayload struct {
	ChallengerUserID UserID `json:"challengerUserId"`
	Message          string `json:"message"`
}

type ChallengeRejectedPayload struct {
	ChallengedUserID UserID `json:"challengedUserId"`
	Message          string `json:"message"`
}

type RoomReadyPayload struct {
	RoomID string `json:"roomId"`
}

type OpponentReadyPayload struct {
	Username string `json:"username"`
}

type AllPlayersReadyPayload struct {
	RoomID            string `json:"roomId"`
	CurrentPlayerTurn UserID `json:"currentPlayerTurn"`
}

type OpponentResetPayload struct {
	PlayerID UserID `json:"playerId"`
}

// ShotResultPayload carries shot_hit, shot_miss and ship_sunk results.
// CurrentPlayerTurn is empty when the shot ended the game.
type ShotResultPayload struct {
	Square            string `json:"square"`
	CurrentPlayerTurn UserID `json:"currentPlayerTurn"`
}

type GameOverPayload struct {
	Winner   string `json:"winner"`
	WinnerID UserID `json:"winnerId"`
	Message  string `json:"message"`
}

type GameCancelledPayload struct {
	Message string `json:"message"`
}
