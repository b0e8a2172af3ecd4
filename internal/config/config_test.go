package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PORT", "DATABASE_URL", "PRUNE_SCHEDULE", "PRUNE_RETENTION"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "@daily", cfg.PruneSchedule)
	assert.Zero(t, cfg.PruneRetention)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:staffing.db")
	t.Setenv("PRUNE_RETENTION", "720h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CLIENT_URL", "https://app.example")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 720*time.Hour, cfg.PruneRetention)
	assert.Equal(t, []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"https://app.example",
		"https://a.example",
		"https://b.example",
	}, cfg.Origins())
}

func TestValidate(t *testing.T) {
	for _, scenario := range []struct {
		Name   string
		Mutate func(*Config)
	}{
		{Name: "unknown driver", Mutate: func(c *Config) { c.Database.Driver = "oracle" }},
		{Name: "sqlite without url", Mutate: func(c *Config) { c.Database.Driver = "sqlite"; c.Database.URL = "" }},
		{Name: "no host or url", Mutate: func(c *Config) { c.Database.Host = ""; c.Database.URL = "" }},
		{Name: "negative rate", Mutate: func(c *Config) { c.RateLimitRPS = -1 }},
		{Name: "negative retention", Mutate: func(c *Config) { c.PruneRetention = -time.Hour }},
		{Name: "empty port", Mutate: func(c *Config) { c.Port = "" }},
	} {
		t.Run(scenario.Name, func(t *testing.T) {
			cfg := Config{
				Port:     "3000",
				Database: DatabaseConfig{Driver: "postgres", Host: "localhost"},
			}
			scenario.Mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
