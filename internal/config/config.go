package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	Database DatabaseConfig

	JWTSecret string `env:"JWT_SECRET"`

	ClientURL      string   `env:"CLIENT_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	PruneSchedule  string        `env:"PRUNE_SCHEDULE" envDefault:"@daily"`
	PruneRetention time.Duration `env:"PRUNE_RETENTION" envDefault:"0s"`

	SlackWebhookURL   string `env:"SLACK_WEBHOOK_URL"`
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`
}

type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"staffing"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Parse()
}

// Parse builds a Config from the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Database.Driver == "sqlite" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for sqlite")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST or DATABASE_URL is required")
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}

	if c.PruneRetention < 0 {
		return fmt.Errorf("PRUNE_RETENTION must not be negative")
	}

	return nil
}

// Origins returns the CORS origins: local development hosts, CLIENT_URL and ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	if c.ClientURL != "" {
		origins = append(origins, c.ClientURL)
	}

	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return origins
}
