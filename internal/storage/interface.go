package storage

import (
	"context"

	"github.com/seawire/broadside/internal/model"
)

// Storage defines the interface for user identity persistence. Lobby and
// match state is deliberately not here: it lives in process memory and is
// lost on restart.
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUser(ctx context.Context, id model.UserID) error

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, userID model.UserID) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	DeleteAccount(ctx context.Context, userID model.UserID) error
	DeleteUsernameIndex(ctx context.Context, username string) error
}
