// Package config loads server configuration from a .env file, environment
// variables, and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	RateLimit RateLimitConfig
	Stats     StatsConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	Path string
}

type RateLimitConfig struct {
	// Requests allowed per caller per window on the statistics endpoint.
	Requests      int
	WindowSeconds int
}

type StatsConfig struct {
	TopRequestersLimit int
	StalePendingDays   int
}

// Load reads configuration. A .env file in the working directory is applied
// first if present, then real environment variables, then flags.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		DB: DBConfig{
			Path: "leave.db",
		},
		RateLimit: RateLimitConfig{
			Requests:      100,
			WindowSeconds: 60,
		},
		Stats: StatsConfig{
			TopRequestersLimit: 5,
			StalePendingDays:   7,
		},
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("leave-engine", flag.ContinueOnError)
	port := fs.Int("port", 0, "HTTP server port")
	dbPath := fs.String("db", "", "SQLite database path (use :memory: for in-memory)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	return cfg, nil
}

func loadEnv(cfg *Config) {
	if val := os.Getenv("PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = p
		}
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.AllowedOrigins = parts
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.DB.Path = val
	}
	if val := os.Getenv("RATE_LIMIT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.RateLimit.Requests = p
		}
	}
	if val := os.Getenv("RATE_WINDOW_SECONDS"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.RateLimit.WindowSeconds = p
		}
	}
	if val := os.Getenv("TOP_REQUESTERS_LIMIT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Stats.TopRequestersLimit = p
		}
	}
	if val := os.Getenv("STALE_PENDING_DAYS"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Stats.StalePendingDays = p
		}
	}
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) StalePendingAfter() time.Duration {
	return time.Duration(c.Stats.StalePendingDays) * 24 * time.Hour
}
