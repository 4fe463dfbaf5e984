// Package config gathers every setting of the chat server in one place.
//
// Values come from environment variables (a .env file is loaded first when present).
// CONFIG_FILE may name a YAML file whose values sit underneath the environment:
// defaults < YAML file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries all configuration; each section is its own struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Chat     ChatConfig     `yaml:"chat"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig holds HTTP listener and process settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Env            string   `yaml:"env"`       // "development" or "production"
	LogLevel       string   `yaml:"log_level"` // zerolog level name
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // e.g. ./data/gatherly.db
}

// JWTConfig holds the secret used to verify connection credentials.
type JWTConfig struct {
	Secret string `yaml:"secret"` // keep private
}

// ChatConfig holds the limits of the messaging core.
type ChatConfig struct {
	MaxTextLength      int           `yaml:"max_text_length"`      // runes
	MaxImageURLLength  int           `yaml:"max_image_url_length"` // bytes
	DefaultPageSize    int           `yaml:"default_page_size"`
	MaxPageSize        int           `yaml:"max_page_size"`
	TypingTTL          time.Duration `yaml:"typing_ttl"`
	SendQueueSize      int           `yaml:"send_queue_size"`
	MembershipCacheTTL time.Duration `yaml:"membership_cache_ttl"`
	RateLimitMessages  int           `yaml:"rate_limit_messages"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
	RateLimitCooldown  time.Duration `yaml:"rate_limit_cooldown"`
	ConnectLimit       int           `yaml:"connect_limit"` // upgrades per IP per minute

	// MaxFrameBytes caps one inbound WebSocket frame and one REST send body.
	// Zero derives it from the text and URL limits; see FrameLimit.
	MaxFrameBytes int `yaml:"max_frame_bytes"`
}

// frameOverhead covers the envelope around a send payload: keys, op, nonce and
// room id.
const frameOverhead = 1024

// MinFrameBytes is the smallest frame that still carries every valid send when
// the client escapes everything: a rune may arrive as a \uXXXX\uXXXX surrogate
// pair (12 bytes) and a URL byte as \u00XX (6 bytes).
func (c ChatConfig) MinFrameBytes() int {
	return 12*c.MaxTextLength + 6*c.MaxImageURLLength + frameOverhead
}

// FrameLimit returns MaxFrameBytes, or MinFrameBytes when it is not set.
func (c ChatConfig) FrameLimit() int64 {
	if c.MaxFrameBytes > 0 {
		return int64(c.MaxFrameBytes)
	}
	return int64(c.MinFrameBytes())
}

// RedisConfig is optional; when URL is set the send limiter is shared through Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Defaults returns the configuration used when nothing overrides a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     5000,
			Env:      "development",
			LogLevel: "info",
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
			},
		},
		Database: DatabaseConfig{
			Path: "./data/gatherly.db",
		},
		Chat: ChatConfig{
			MaxTextLength:      4000,
			MaxImageURLLength:  2048,
			DefaultPageSize:    50,
			MaxPageSize:        100,
			TypingTTL:          5 * time.Second,
			SendQueueSize:      256,
			MembershipCacheTTL: 30 * time.Second,
			RateLimitMessages:  5,
			RateLimitWindow:    5 * time.Second,
			RateLimitCooldown:  15 * time.Second,
			ConnectLimit:       30,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	// Missing .env is fine; production uses real environment variables.
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Env = getEnv("ENV", c.Server.Env)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}

	var err error
	if c.Server.Port, err = envInt("SERVER_PORT", c.Server.Port); err != nil {
		return err
	}
	if c.Chat.MaxTextLength, err = envInt("CHAT_MAX_TEXT_LENGTH", c.Chat.MaxTextLength); err != nil {
		return err
	}
	if c.Chat.MaxImageURLLength, err = envInt("CHAT_MAX_IMAGE_URL_LENGTH", c.Chat.MaxImageURLLength); err != nil {
		return err
	}
	if c.Chat.DefaultPageSize, err = envInt("CHAT_DEFAULT_PAGE_SIZE", c.Chat.DefaultPageSize); err != nil {
		return err
	}
	if c.Chat.MaxPageSize, err = envInt("CHAT_MAX_PAGE_SIZE", c.Chat.MaxPageSize); err != nil {
		return err
	}
	if c.Chat.SendQueueSize, err = envInt("CHAT_SEND_QUEUE_SIZE", c.Chat.SendQueueSize); err != nil {
		return err
	}
	if c.Chat.RateLimitMessages, err = envInt("CHAT_RATE_LIMIT_MESSAGES", c.Chat.RateLimitMessages); err != nil {
		return err
	}
	if c.Chat.ConnectLimit, err = envInt("CHAT_CONNECT_LIMIT", c.Chat.ConnectLimit); err != nil {
		return err
	}
	if c.Chat.MaxFrameBytes, err = envInt("CHAT_MAX_FRAME_BYTES", c.Chat.MaxFrameBytes); err != nil {
		return err
	}
	if c.Chat.TypingTTL, err = envDuration("CHAT_TYPING_TTL", c.Chat.TypingTTL); err != nil {
		return err
	}
	if c.Chat.MembershipCacheTTL, err = envDuration("CHAT_MEMBERSHIP_CACHE_TTL", c.Chat.MembershipCacheTTL); err != nil {
		return err
	}
	if c.Chat.RateLimitWindow, err = envDuration("CHAT_RATE_LIMIT_WINDOW", c.Chat.RateLimitWindow); err != nil {
		return err
	}
	if c.Chat.RateLimitCooldown, err = envDuration("CHAT_RATE_LIMIT_COOLDOWN", c.Chat.RateLimitCooldown); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	ch := c.Chat
	switch {
	case ch.MaxTextLength <= 0:
		return errors.New("chat.max_text_length must be positive")
	case ch.MaxImageURLLength <= 0:
		return errors.New("chat.max_image_url_length must be positive")
	case ch.DefaultPageSize <= 0 || ch.MaxPageSize < ch.DefaultPageSize:
		return errors.New("chat page sizes must be positive and max >= default")
	case ch.TypingTTL <= 0:
		return errors.New("chat.typing_ttl must be positive")
	case ch.SendQueueSize <= 0:
		return errors.New("chat.send_queue_size must be positive")
	case ch.RateLimitMessages <= 0 || ch.RateLimitWindow <= 0:
		return errors.New("chat rate limit must be positive")
	case ch.MaxFrameBytes < 0:
		return errors.New("chat.max_frame_bytes must not be negative")
	case ch.MaxFrameBytes > 0 && ch.MaxFrameBytes < ch.MinFrameBytes():
		return fmt.Errorf("chat.max_frame_bytes %d cannot carry a %d-character message; need at least %d",
			ch.MaxFrameBytes, ch.MaxTextLength, ch.MinFrameBytes())
	}
	return nil
}

// Addr returns the listen address, e.g. "0.0.0.0:5000".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment reports whether the server runs in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
