package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	"go-chat-stream/internal/infrastructure/logger"
)

// Config is the environment-driven configuration surface: listeners,
// keep-alive cadence, session signing, and storage location.
type Config struct {
	// Addr is the HTTP listen address serving REST, SSE, and the
	// WebSocket upgrade endpoint.
	Addr string

	// JWTSecret signs session tokens (HS256).
	JWTSecret string

	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration

	// KeepAliveInterval is the cadence of SSE keep-alive comments and
	// WebSocket ping frames.
	KeepAliveInterval time.Duration

	// DBPath is the sqlite database file.
	DBPath string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration from the environment, after loading a .env
// file when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:              envOrDefault("CHAT_ADDR", ":8080"),
		JWTSecret:         envOrDefault("CHAT_JWT_SECRET", "change-me-in-production"),
		TokenTTL:          durationOrDefault("CHAT_TOKEN_TTL", 24*time.Hour),
		KeepAliveInterval: durationOrDefault("CHAT_KEEPALIVE_INTERVAL", 15*time.Second),
		DBPath:            envOrDefault("CHAT_DB_PATH", "data/chat.db"),
		LogLevel:          envOrDefault("CHAT_LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("CHAT_LOG_FORMAT", "console"),
		LogFile:           os.Getenv("CHAT_LOG_FILE"),
	}
}

// Logger derives the logger configuration.
func (c *Config) Logger() *logger.Config {
	cfg := logger.NewDefaultConfig()
	cfg.Level = logger.ParseLevel(c.LogLevel)
	cfg.Format = c.LogFormat
	if c.LogFile != "" {
		cfg.Output = "file"
		cfg.FilePath = c.LogFile
	}
	return cfg
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
