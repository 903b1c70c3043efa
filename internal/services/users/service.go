// Package users is the identity service: account CRUD and the user
// lookup the game core consumes.
package users

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/seawire/broadside/internal/dependencies/clock"
	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/storage"
)

// ErrInvalidCredentials is returned when a username/password pair does
// not match a stored account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service provides user identity operations
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new users service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "users")),
	}
}

// UpdateParams holds the optional fields of an account update
type UpdateParams struct {
	Username *string
	Email    *string
	Password *string
}

// CreateUser registers a new account with a bcrypt-hashed password
func (s *Service) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	// Check username uniqueness
	_, err := s.storage.GetAccountByUsername(ctx, username)
	if err == nil {
		return nil, model.ErrUsernameExists
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:       model.UserID("u_" + ulid.Make().String()),
		Username: username,
	}
	account := &model.Account{
		UserID:       user.ID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.storage.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("user created", slog.String("user_id", string(user.ID)))
	return user, nil
}

// LookupUser resolves a user id to its public identity
func (s *Service) LookupUser(ctx context.Context, id model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}

// ListUsers returns all registered users
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.storage.ListUsers(ctx)
}

// UpdateUser applies the provided fields to an existing account
func (s *Service) UpdateUser(ctx context.Context, id model.UserID, params UpdateParams) (*model.User, error) {
	user, err := s.storage.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	account, err := s.storage.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	oldUsername := account.Username
	if params.Username != nil && *params.Username != account.Username {
		if _, err := s.storage.GetAccountByUsername(ctx, *params.Username); err == nil {
			return nil, model.ErrUsernameExists
		} else if !errors.Is(err, model.ErrUserNotFound) {
			return nil, err
		}
		account.Username = *params.Username
		user.Username = *params.Username
	}
	if params.Email != nil {
		account.Email = *params.Email
	}
	if params.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = string(hash)
	}

	account.UpdatedAt = s.clock.Now()

	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.storage.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	// The account is saved under the new name before the old index entry
	// is dropped, so a failure mid-rename never loses the account itself.
	if account.Username != oldUsername {
		if err := s.storage.DeleteUsernameIndex(ctx, oldUsername); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser removes a user and its account
func (s *Service) DeleteUser(ctx context.Context, id model.UserID) error {
	if _, err := s.storage.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.storage.DeleteAccount(ctx, id); err != nil {
		return err
	}
	return s.storage.DeleteUser(ctx, id)
}

// VerifyCredentials checks a username/password pair and returns the
// matching user.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (*model.User, error) {
	account, err := s.storage.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.storage.GetUser(ctx, account.UserID)
}
