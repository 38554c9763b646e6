// Package config loads server settings from the environment, reading a
// local .env file first when one exists.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full server configuration. Database and Redis URLs are
// optional: without them the server runs in-memory only, which is enough
// for local play and tests.
type Config struct {
	Addr        string `env:"CLUEFALL_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"CLUEFALL_DATABASE_URL"`
	RedisURL    string `env:"CLUEFALL_REDIS_URL"`
	LogLevel    string `env:"CLUEFALL_LOG_LEVEL" envDefault:"info"`

	// HistoryStream is the Redis stream action records are appended to.
	HistoryStream string `env:"CLUEFALL_HISTORY_STREAM" envDefault:"cluefall:actions"`

	// ShuffleSeed pins the dealer's RNG; zero means time-based. Useful for
	// reproducing a reported game.
	ShuffleSeed int64 `env:"CLUEFALL_SHUFFLE_SEED"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return env.ParseAs[Config]()
}
