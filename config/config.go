// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For the chat credentials, use ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHTTPAddr          = ":8080"
	DefaultConnectDelay      = 12 * time.Second
	DefaultKeepAliveMaxAge   = 4 * time.Hour
	DefaultKeepAliveInterval = 30 * time.Minute
	DefaultSearchPageSize    = 100
	DefaultStateHost         = "glitch.me"
	DefaultPixelURL          = "https://cdn.glitch.com/us-east-1%3Af5641323-74ec-49b7-a124-58c71eaab2db%2Fping.png"
)

// DefaultStateLegacyHosts are accepted when reading state links written under the host's older names.
var DefaultStateLegacyHosts = []string{"gomix.me", "hyperdev.space"}

type Config struct {
	// Chat account
	Email    string
	Password string
	LoginURL string // empty means the stackchat default
	ChatURL  string

	// Project
	ProjectName string // empty means learn it from the first request's Host
	HTTPAddr    string
	PixelURL    string

	// Bot
	ConnectDelay      time.Duration
	KeepAliveMaxAge   time.Duration
	KeepAliveInterval time.Duration // 0 disables the timer
	SearchPageSize    int
	StateHost         string
	StateLegacyHosts  []string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads environment variables and applies defaults. It doesn't fail if the chat credentials are
// missing; use ValidateChatReady() when chat is required. Malformed durations and numbers are errors.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Email = os.Getenv("SE_EMAIL")
	if cfg.Email == "" {
		cfg.Email = os.Getenv("SE_USERNAME")
	}
	cfg.Password = os.Getenv("SE_PASSWORD")
	cfg.LoginURL = os.Getenv("SE_LOGIN_URL")
	cfg.ChatURL = os.Getenv("SE_CHAT_URL")

	cfg.ProjectName = strings.TrimSpace(os.Getenv("PROJECT_NAME"))
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = DefaultHTTPAddr
		}
	}
	cfg.PixelURL = os.Getenv("PIXEL_URL")
	if cfg.PixelURL == "" {
		cfg.PixelURL = DefaultPixelURL
	}

	var err error
	if cfg.ConnectDelay, err = durationEnv("CHAT_CONNECT_DELAY", DefaultConnectDelay); err != nil {
		return nil, err
	}
	if cfg.KeepAliveMaxAge, err = durationEnv("STATE_KEEPALIVE_MAX_AGE", DefaultKeepAliveMaxAge); err != nil {
		return nil, err
	}
	if cfg.KeepAliveMaxAge <= 0 {
		return nil, fmt.Errorf("invalid STATE_KEEPALIVE_MAX_AGE: must be positive")
	}
	if cfg.KeepAliveInterval, err = durationEnv("STATE_KEEPALIVE_INTERVAL", DefaultKeepAliveInterval); err != nil {
		return nil, err
	}

	cfg.SearchPageSize = DefaultSearchPageSize
	if v := os.Getenv("STATE_SEARCH_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid STATE_SEARCH_PAGE_SIZE %q: want a positive integer", v)
		}
		cfg.SearchPageSize = n
	}

	cfg.StateHost = os.Getenv("STATE_HOST")
	if cfg.StateHost == "" {
		cfg.StateHost = DefaultStateHost
	}
	if v, ok := os.LookupEnv("STATE_LEGACY_HOSTS"); ok {
		cfg.StateLegacyHosts = splitList(v)
	} else {
		cfg.StateLegacyHosts = append([]string(nil), DefaultStateLegacyHosts...)
	}

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// ValidateChatReady checks the credentials needed to log in to chat.
func (c *Config) ValidateChatReady() error {
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("missing chat env: require SE_EMAIL (or SE_USERNAME) and SE_PASSWORD")
	}
	return nil
}

// durationEnv parses a Go duration ("90s", "4h") or a bare number of seconds.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(v); err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
