// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strings"
)

// Config holds all runtime configuration for the notification server.
type Config struct {
	// Port the HTTP/WebSocket server listens on. The web app defaults its
	// NOTIFICATION_SERVER_URL to port 4000, so we do too.
	Port string

	// Logging
	LogLevel string
	LogFile  string

	// JWTSecret, when set, switches the /ws endpoint into hardened mode:
	// clients must present a signed token instead of a bare userId.
	JWTSecret string

	// Redis bridge for multi-instance fan-out. Empty address disables it.
	RedisAddr     string
	RedisPassword string

	// AllowedOrigins for CORS and the WebSocket origin check. "*" allows all.
	AllowedOrigins []string
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "4000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "notify-server.log"),
		JWTSecret:      os.Getenv("NOTIFY_JWT_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

// BridgeEnabled reports whether the Redis fan-out bridge is configured.
func (c *Config) BridgeEnabled() bool {
	return c.RedisAddr != ""
}

// HardenedAuth reports whether /ws requires a signed token.
func (c *Config) HardenedAuth() bool {
	return c.JWTSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
