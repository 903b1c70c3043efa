package redis

import (
	"fmt"

	"github.com/seawire/broadside/internal/model"
)

// Key prefix for all identity data
const keyPrefix = "broadside"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// accountKey returns the Redis key for an Account
func accountKey(userID model.UserID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, userID)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// usersIndexKey returns the Redis key for the SET of all user ids
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}
