package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")

	// Lobby errors
	ErrNotInLobby           = errors.New("user is not in the lobby")
	ErrChallengeUnavailable = errors.New("challenged user is unavailable")
	ErrNoPendingChallenge   = errors.New("no pending challenge between these users")

	// Match errors
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotInMatch      = errors.New("player is not in this match")
	ErrOutOfTurn       = errors.New("not this player's turn")
	ErrInvalidState    = errors.New("operation not valid in current match state")
	ErrMatchFinished   = errors.New("match is already finished")
	ErrFleetIncomplete = errors.New("fleet placement is incomplete")
)
