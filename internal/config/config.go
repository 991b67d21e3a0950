package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"noteenvelope-sync/internal/repository"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Relay     RelayConfig
	WebSocket WebSocketConfig
	Sync      SyncConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
	// APIToken protects /api/v1 when set.
	APIToken string
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type StorageConfig struct {
	Driver  string
	DataDir string
	DSN     string
	Couch   repository.CouchConfig
}

func (s StorageConfig) Repository() repository.Config {
	return repository.Config{
		Driver:  s.Driver,
		DataDir: s.DataDir,
		DSN:     s.DSN,
		Couch:   s.Couch,
	}
}

type RelayConfig struct {
	URL      string
	Secret   string
	TokenTTL time.Duration
	Host     string
	Port     string
	Echo     bool
}

func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type WebSocketConfig struct {
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerTopic int
}

type SyncConfig struct {
	OutboxSize   int
	InFlightTTL  time.Duration
	MinReconnect time.Duration
	MaxReconnect time.Duration
	SeedDefaults bool

	// ResyncInterval is how often pending records are re-offered.
	ResyncInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads envFiles (or .env when none are given) and then the process
// environment. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	godotenv.Load(envFiles...)

	tokenTTL, err := getEnvAsDuration("RELAY_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	writeWait, err := getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pongWait, err := getEnvAsDuration("WS_PONG_WAIT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	inflightTTL, err := getEnvAsDuration("SYNC_INFLIGHT_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	minReconnect, err := getEnvAsDuration("SYNC_RECONNECT_MIN", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxReconnect, err := getEnvAsDuration("SYNC_RECONNECT_MAX", 30*time.Second)
	if err != nil {
		return nil, err
	}
	resync, err := getEnvAsDuration("SYNC_RESYNC_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Host:     getEnv("HOST", "127.0.0.1"),
			Env:      getEnv("ENV", "development"),
			APIToken: getEnv("API_TOKEN", ""),
		},
		Storage: StorageConfig{
			Driver:  getEnv("STORE_DRIVER", repository.DriverBadger),
			DataDir: getEnv("DATA_DIR", defaultDataDir()),
			DSN:     getEnv("STORE_DSN", ""),
			Couch: repository.CouchConfig{
				Host:     getEnv("DB_HOST", "localhost"),
				Port:     getEnv("DB_PORT", "5984"),
				User:     getEnv("DB_USER", "admin"),
				Password: getEnv("DB_PASSWORD", "password"),
				Name:     getEnv("DB_NAME", "noteenvelope"),
			},
		},
		Relay: RelayConfig{
			URL:      getEnv("RELAY_URL", "ws://localhost:8090/ws"),
			Secret:   getEnv("RELAY_SECRET", "dev-secret-change-in-production"),
			TokenTTL: tokenTTL,
			Host:     getEnv("RELAY_HOST", "0.0.0.0"),
			Port:     getEnv("RELAY_PORT", "8090"),
			Echo:     getEnvAsBool("RELAY_ECHO", false),
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 10485760)),
			WriteWait:       writeWait,
			PongWait:        pongWait,
			PingPeriod:      pongWait * 9 / 10,
			MaxConnPerTopic: getEnvAsInt("WS_MAX_CONN_PER_TOPIC", 32),
		},
		Sync: SyncConfig{
			OutboxSize:     getEnvAsInt("SYNC_OUTBOX_SIZE", 256),
			InFlightTTL:    inflightTTL,
			MinReconnect:   minReconnect,
			MaxReconnect:   maxReconnect,
			SeedDefaults:   getEnvAsBool("SYNC_SEED_DEFAULTS", true),
			ResyncInterval: resync,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
	if cfg.Sync.MaxReconnect < cfg.Sync.MinReconnect {
		return nil, fmt.Errorf("SYNC_RECONNECT_MAX (%s) is below SYNC_RECONNECT_MIN (%s)", cfg.Sync.MaxReconnect, cfg.Sync.MinReconnect)
	}
	return cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "noteenvelope")
	}
	return ".noteenvelope"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
