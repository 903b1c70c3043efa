package model

import "time"

// UserID uniquely identifies a user across the system
type UserID string

// User is the public identity referenced by lobby and match state.
// It is owned by the users service and never mutated by the game core.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// Account extends User with credentials and is stored separately so the
// password hash never travels with lobby or match state.
type Account struct {
	UserID       UserID
	Username     string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
