package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/seawire/broadside/internal/dependencies/clock"
	"github.com/seawire/broadside/internal/dependencies/random"
	"github.com/seawire/broadside/internal/game"
	"github.com/seawire/broadside/internal/lobby"
	"github.com/seawire/broadside/internal/services/auth"
	"github.com/seawire/broadside/internal/services/users"
	"github.com/seawire/broadside/internal/session"
	"github.com/seawire/broadside/internal/storage"
	"github.com/seawire/broadside/internal/storage/memory"
	redisstorage "github.com/seawire/broadside/internal/storage/redis"
	"github.com/seawire/broadside/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	UsersService *users.Service
	AuthService  *auth.Service

	// Game state
	Lobby   *lobby.Registry
	Matches *game.Registry

	// Transport
	Coordinator *session.Coordinator
	Hub         *ws.Hub
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	return newWithDependencies(store, clk, rnd, authCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, authCfg auth.Config, logger *slog.Logger) *App {
	usersService := users.New(store, clk, logger)
	authService := auth.New(usersService, clk, authCfg)

	lobbyRegistry := lobby.NewRegistry()
	matchRegistry := game.NewRegistry(rnd)

	// The hub delivers inbound frames to the coordinator, and the
	// coordinator sends outbound events through the hub. Construct the
	// hub first, then bind the coordinator as its handler.
	hub := ws.NewHub(logger)
	coordinator := session.NewCoordinator(lobbyRegistry, matchRegistry, usersService, hub, logger)
	hub.SetHandler(coordinator)

	return &App{
		Storage:      store,
		Clock:        clk,
		Random:       rnd,
		UsersService: usersService,
		AuthService:  authService,
		Lobby:        lobbyRegistry,
		Matches:      matchRegistry,
		Coordinator:  coordinator,
		Hub:          hub,
	}
}
