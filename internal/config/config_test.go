package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8000" {
					t.Errorf("expected port 8000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
				if !cfg.AllowAllOrigins() {
					t.Errorf("expected wildcard origins, got %v", cfg.AllowedOrigins)
				}
				if cfg.ConnectDelay != 2*time.Second || cfg.RingTimeout != 60*time.Second || cfg.DemoRingTimeout != 45*time.Second {
					t.Errorf("unexpected routing timings %v/%v/%v", cfg.ConnectDelay, cfg.RingTimeout, cfg.DemoRingTimeout)
				}
				if cfg.QueueFallbackDelay != 0 {
					t.Errorf("expected queue fallback disabled, got %v", cfg.QueueFallbackDelay)
				}
				if cfg.DemoCallInterval != 120*time.Second || cfg.StatsInterval != 5*time.Second {
					t.Errorf("unexpected intervals %v/%v", cfg.DemoCallInterval, cfg.StatsInterval)
				}
				if cfg.MaxMessageSize != 8192 || cfg.RateLimit != 20 || cfg.RateBurst != 40 {
					t.Errorf("unexpected transport limits %d/%v/%d", cfg.MaxMessageSize, cfg.RateLimit, cfg.RateBurst)
				}
				if cfg.AuthEnabled {
					t.Error("auth should be disabled by default")
				}
				if cfg.RedisAddr != "" || cfg.RedisChannel != "callcenter:events" {
					t.Errorf("unexpected redis config %q/%q", cfg.RedisAddr, cfg.RedisChannel)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                 "9000",
				"LOG_LEVEL":            "debug",
				"WS_READ_TIMEOUT":      "30",
				"WS_WRITE_TIMEOUT":     "5s",
				"ALLOWED_ORIGINS":      "http://example.com, http://test.com",
				"RING_TIMEOUT":         "1m30s",
				"QUEUE_FALLBACK_DELAY": "10",
				"AUTH_ENABLED":         "true",
				"REDIS_ADDR":           "localhost:6379",
				"REDIS_DB":             "2",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 30*time.Second {
					t.Errorf("expected WSReadTimeout 30s, got %v", cfg.WSReadTimeout)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("unexpected allowed origins %v", cfg.AllowedOrigins)
				}
				if cfg.AllowAllOrigins() {
					t.Error("explicit origins must not allow all")
				}
				if cfg.RingTimeout != 90*time.Second {
					t.Errorf("expected RingTimeout 90s, got %v", cfg.RingTimeout)
				}
				if cfg.QueueFallbackDelay != 10*time.Second {
					t.Errorf("expected QueueFallbackDelay 10s, got %v", cfg.QueueFallbackDelay)
				}
				if !cfg.AuthEnabled {
					t.Error("expected auth enabled")
				}
				if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
					t.Errorf("unexpected redis config %q/%d", cfg.RedisAddr, cfg.RedisDB)
				}
			},
		},
		{
			name: "invalid WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "zero WS_READ_TIMEOUT",
			env: map[string]string{
				"WS_READ_TIMEOUT": "0",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_WRITE_TIMEOUT",
			env: map[string]string{
				"WS_WRITE_TIMEOUT": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid WS_RATE_BURST",
			env: map[string]string{
				"WS_RATE_BURST": "lots",
			},
			wantErr: true,
		},
		{
			name: "invalid AUTH_ENABLED",
			env: map[string]string{
				"AUTH_ENABLED": "maybe",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"45", 45 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{" 10s ", 10 * time.Second},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if err != nil {
			t.Errorf("parseDuration(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseDuration("soon"); err == nil {
		t.Error("expected error for non-duration")
	}
}

func TestWebSocketConstants(t *testing.T) {
	// Clear environment and set clean defaults
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// PongWait should equal WSReadTimeout
	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	// PingPeriod should be less than PongWait
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	// WriteWait should equal WSWriteTimeout
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
