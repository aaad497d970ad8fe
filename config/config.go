package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Agent    AgentConfig
	Media    MediaConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/synchire?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
	AdminAPIKey string // shared key exchanged for admin tokens; empty disables the endpoint
}

// AgentConfig holds settings for the AI interviewer agent service.
type AgentConfig struct {
	BaseURL        string // e.g. http://localhost:8081
	RequestTimeout int    // seconds for the /join-interview call
	WebhookSecret  string // shared secret for the interview-complete webhook (optional)
}

// MediaConfig holds credentials for the hosted real-time media provider.
type MediaConfig struct {
	AppID           uint32
	ServerSecret    string // 32 characters, from provider console
	APIBaseURL      string // provider REST API for room control
	CaptionLanguage string // BCP-47 language tag for live captioning
	TokenValidSec   int64
}

// EngineConfig holds session engine tunables.
type EngineConfig struct {
	LeaveDebounceMs int // debounce before the sole remote participant leaving ends the session
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))
	mediaAppID, _ := strconv.ParseUint(getEnv("MEDIA_APP_ID", "0"), 10, 32)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/synchire?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "synchire"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
			AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Agent: AgentConfig{
			BaseURL:        getEnv("AGENT_BASE_URL", "http://localhost:8081"),
			RequestTimeout: getEnvInt("AGENT_REQUEST_TIMEOUT_SEC", 30),
			WebhookSecret:  getEnv("AGENT_WEBHOOK_SECRET", ""),
		},
		Media: MediaConfig{
			AppID:           uint32(mediaAppID),
			ServerSecret:    getEnv("MEDIA_SERVER_SECRET", ""),
			APIBaseURL:      getEnv("MEDIA_API_BASE_URL", ""),
			CaptionLanguage: getEnv("MEDIA_CAPTION_LANGUAGE", "en-US"),
			TokenValidSec:   int64(getEnvInt("MEDIA_TOKEN_VALID_SEC", 3600*4)),
		},
		Engine: EngineConfig{
			LeaveDebounceMs: getEnvInt("ENGINE_LEAVE_DEBOUNCE_MS", 500),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
