package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Backend  BackendConfig
	Realtime RealtimeConfig
	Mongo    MongoConfig
	Redis    RedisConfig

	// RemoteCheckTimeout bounds the remote sector permission check before
	// the guard falls back to the local decision.
	RemoteCheckTimeout time.Duration `env:"REMOTE_CHECK_TIMEOUT, default=3s"`
}

type BackendConfig struct {
	BaseURL string        `env:"BACKEND_BASE_URL, default=http://localhost:8000"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT,  default=10s"`
}

type RealtimeConfig struct {
	URL string `env:"REALTIME_URL, default=ws://localhost:8000/api/socket.io"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=access_gateway"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
