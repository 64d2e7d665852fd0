package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type APIConfig struct {
	Addr           string        `env:"REALM_API_ADDR" envDefault:":8080"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	JWTSecret      string        `env:"REALM_JWT_SECRET"`
	TokenTTL       time.Duration `env:"REALM_TOKEN_TTL" envDefault:"168h"`
	RulesPath      string        `env:"REALM_RULES_PATH"`
	WorldTickEvery time.Duration `env:"REALM_WORLD_TICK_EVERY" envDefault:"1h"`
	RateLimitRPS   float64       `env:"REALM_RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int           `env:"REALM_RATE_LIMIT_BURST" envDefault:"20"`
	LogLevel       string        `env:"REALM_LOG_LEVEL" envDefault:"info"`
}

type WorkerConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL"`
	RulesPath       string        `env:"REALM_RULES_PATH"`
	WorldTickEvery  time.Duration `env:"REALM_WORLD_TICK_EVERY" envDefault:"1h"`
	ActionPollEvery time.Duration `env:"REALM_ACTION_POLL_EVERY" envDefault:"2s"`
	RegenEvery      time.Duration `env:"REALM_REGEN_EVERY" envDefault:"5m"`
	ChronicleDir    string        `env:"REALM_CHRONICLE_DIR" envDefault:"data/chronicle"`
	DiscordToken    string        `env:"REALM_DISCORD_TOKEN"`
	DiscordChannel  string        `env:"REALM_DISCORD_CHANNEL"`
	RunOnce         bool          `env:"REALM_WORKER_RUN_ONCE" envDefault:"false"`
	LogLevel        string        `env:"REALM_LOG_LEVEL" envDefault:"info"`
}

type MaintConfig struct {
	DatabaseURL    string        `env:"DATABASE_URL"`
	RulesPath      string        `env:"REALM_RULES_PATH"`
	WorldTickEvery time.Duration `env:"REALM_WORLD_TICK_EVERY" envDefault:"1h"`
	LogLevel       string        `env:"REALM_LOG_LEVEL" envDefault:"warn"`
}

type CLIConfig struct {
	APIBaseURL string `env:"REALM_API_BASE_URL" envDefault:"http://localhost:8080"`
	Home       string `env:"REALM_HOME"`
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("REALM_JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return cfg, fmt.Errorf("REALM_TOKEN_TTL must be positive")
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorldTickEvery <= 0 || cfg.ActionPollEvery <= 0 || cfg.RegenEvery <= 0 {
		return cfg, fmt.Errorf("worker intervals must be positive")
	}
	return cfg, nil
}

func LoadMaintFromEnv() (MaintConfig, error) {
	var cfg MaintConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.Home = strings.TrimSpace(cfg.Home)
	return cfg
}

// ParseLevel maps REALM_LOG_LEVEL onto slog levels, defaulting to info.
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger every binary writes to stdout.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
