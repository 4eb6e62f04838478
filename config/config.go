// config/config.go - Environment configuration
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Streak    StreakConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins string
	StaticDir   string
	BodyLimit   int
}

type DatabaseConfig struct {
	Type       string // postgres or sqlite
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
	LogLevel   string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	MaxRequests       int
	WindowSeconds     int
	AuthMaxRequests   int
	AuthWindowSeconds int
}

type RedisConfig struct {
	URL            string
	LeaderboardTTL time.Duration
}

type StreakConfig struct {
	ResetAt string // HH:MM, UTC
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	cfg := read()
	return cfg, cfg.Validate()
}

// LoadTooling reads the same sources as Load but only checks the database
// settings. Command-line tools that never issue tokens use it.
func LoadTooling() (*Config, error) {
	cfg := read()
	return cfg, cfg.validateDatabase()
}

func read() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "3000"),
			Env:         getEnv("APP_ENV", "development"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
			StaticDir:   getEnv("STATIC_DIR", "./static"),
			BodyLimit:   getEnvInt("BODY_LIMIT_BYTES", 4*1024*1024),
		},
		Database: DatabaseConfig{
			Type:       strings.ToLower(getEnv("DB_TYPE", "postgres")),
			URL:        os.Getenv("DATABASE_URL"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			Name:       getEnv("DB_NAME", "studyhub"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "./data/studyhub.db"),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getEnvDuration("JWT_TTL", 720*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			MaxRequests:       getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
			WindowSeconds:     getEnvInt("RATE_LIMIT_WINDOW_MS", 900000) / 1000,
			AuthMaxRequests:   getEnvInt("AUTH_RATE_LIMIT_MAX", 5),
			AuthWindowSeconds: getEnvInt("AUTH_RATE_LIMIT_WINDOW_MS", 300000) / 1000,
		},
		Redis: RedisConfig{
			URL:            os.Getenv("REDIS_URL"),
			LeaderboardTTL: getEnvDuration("LEADERBOARD_CACHE_TTL", time.Minute),
		},
		Streak: StreakConfig{
			ResetAt: getEnv("STREAK_RESET_AT", "00:05"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 900
	}
	if cfg.RateLimit.AuthWindowSeconds <= 0 {
		cfg.RateLimit.AuthWindowSeconds = 300
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set. Generate one with: openssl rand -base64 64")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if _, err := time.Parse("15:04", c.Streak.ResetAt); err != nil {
		return fmt.Errorf("STREAK_RESET_AT must be HH:MM: %w", err)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Type {
	case "postgres", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported DB_TYPE %q (want postgres or sqlite)", c.Database.Type)
	}
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// PostgresDSN prefers DATABASE_URL and falls back to the DB_* parts.
func (d DatabaseConfig) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return def
	case "false", "0", "no":
		return false
	default:
		return true
	}
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}
