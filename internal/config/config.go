package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket transport
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	RateLimit      float64 // inbound messages per second per connection
	RateBurst      int

	// Call routing timings
	ConnectDelay       time.Duration
	QueueNoticeDelay   time.Duration
	QueueFallbackDelay time.Duration
	QueueWaitEstimate  time.Duration
	RingTimeout        time.Duration
	DemoRingTimeout    time.Duration
	TestCallDelay      time.Duration
	DemoCallInterval   time.Duration
	StatsInterval      time.Duration

	// Auth
	AuthEnabled bool
	OIDCIssuer  string
	JWTSecret   string

	// Redis event mirror; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OIDCIssuer:     getEnv("OIDC_ISSUER", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisChannel:   getEnv("REDIS_CHANNEL", "callcenter:events"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"WS_READ_TIMEOUT", "60s", &config.WSReadTimeout},
		{"WS_WRITE_TIMEOUT", "10s", &config.WSWriteTimeout},
		{"CONNECT_DELAY", "2s", &config.ConnectDelay},
		{"QUEUE_NOTICE_DELAY", "1s", &config.QueueNoticeDelay},
		{"QUEUE_FALLBACK_DELAY", "0", &config.QueueFallbackDelay},
		{"QUEUE_WAIT_ESTIMATE", "30s", &config.QueueWaitEstimate},
		{"RING_TIMEOUT", "60s", &config.RingTimeout},
		{"DEMO_RING_TIMEOUT", "45s", &config.DemoRingTimeout},
		{"TEST_CALL_DELAY", "5s", &config.TestCallDelay},
		{"DEMO_CALL_INTERVAL", "120s", &config.DemoCallInterval},
		{"STATS_INTERVAL", "5s", &config.StatsInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = v
	}

	maxSize, err := strconv.ParseInt(getEnv("WS_MAX_MESSAGE_SIZE", "8192"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MAX_MESSAGE_SIZE: %w", err)
	}
	config.MaxMessageSize = maxSize

	config.RateLimit, err = strconv.ParseFloat(getEnv("WS_RATE_LIMIT", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_RATE_LIMIT: %w", err)
	}
	config.RateBurst, err = strconv.Atoi(getEnv("WS_RATE_BURST", "40"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_RATE_BURST: %w", err)
	}

	config.AuthEnabled, err = strconv.ParseBool(getEnv("AUTH_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_ENABLED: %w", err)
	}

	config.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	if config.WSReadTimeout <= 0 {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: must be positive")
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// parseDuration accepts a Go duration string ("90s", "2m") or plain seconds ("90")
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// AllowAllOrigins reports whether ALLOWED_ORIGINS is the wildcard
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
