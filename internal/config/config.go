package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Scheduler struct {
		// Backend is "memory" or "redis"; empty picks redis when redis.addr is set.
		Backend      string `yaml:"backend"`
		PollInterval string `yaml:"pollInterval"`
		Retention    string `yaml:"retention"`
	} `yaml:"scheduler"`
	Presence struct {
		MarkAsGone string `yaml:"markAsGone"`
		ListLimit  int    `yaml:"listLimit"`
	} `yaml:"presence"`
	// Organizers are seeded at startup when their user has no organizer record yet.
	Organizers []struct {
		UserID         string `yaml:"userId"`
		OrganizationID string `yaml:"organizationId"`
		Name           string `yaml:"name"`
	} `yaml:"organizers"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Load reads YAML config from path. Secrets may come from the environment instead
// (JWT_SECRET, REDIS_PASSWORD, DATABASE_URL) and override the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
}

// SchedulerBackend resolves the configured scheduler backend.
func (c Config) SchedulerBackend() string {
	switch c.Scheduler.Backend {
	case "memory", "redis":
		return c.Scheduler.Backend
	}
	if c.Redis.Addr != "" {
		return "redis"
	}
	return "memory"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
