package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds environment-driven settings for the game server.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:""`
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	StorageType     string        `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
}

// Load parses server configuration from the environment.
func Load() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
