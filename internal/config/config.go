package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides a file value.
const EnvPrefix = "GIVEAWAYBOT_"

// Winner selection policies.
const (
	WinnerPolicyRandom     = "random"
	WinnerPolicyDesignated = "designated"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord" envPrefix:"DISCORD_"`
	Giveaway       GiveawayConfig       `yaml:"giveaway" envPrefix:"GIVEAWAY_"`
	Database       DatabaseConfig       `yaml:"database" envPrefix:"DATABASE_"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token         string `yaml:"token" env:"TOKEN"`
	GuildID       string `yaml:"guild_id" env:"GUILD_ID"`
	CommandPrefix string `yaml:"command_prefix"`
}

// GiveawayConfig holds countdown and winner selection settings.
type GiveawayConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	Marker             string        `yaml:"marker"`
	BannerURL          string        `yaml:"banner_url"`
	WinnerPolicy       string        `yaml:"winner_policy" env:"WINNER_POLICY"`
	DesignatedWinnerID string        `yaml:"designated_winner_id" env:"DESIGNATED_WINNER_ID"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // "sqlx", "ent", "sqlite" or "redis"

	// Postgres ("sqlx" and "ent").
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// SQLite file ("sqlite").
	Path string `yaml:"path" env:"PATH"`

	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig holds settings for the "redis" driver.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	// Identity names this replica in the lease. Empty means POD_NAME or
	// the hostname.
	Identity       string        `yaml:"identity"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path and applies
// GIVEAWAYBOT_* environment overrides on top of it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Discord: DiscordConfig{
			CommandPrefix: "!",
		},
		Giveaway: GiveawayConfig{
			TickInterval: 5 * time.Second,
			Marker:       "🎉",
			WinnerPolicy: WinnerPolicyRandom,
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "sqlx",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "giveaway.db",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "giveawaybot:",
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "giveawaybot",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "giveawaybot-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "ent", "sqlite", "redis":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be one of sqlx, ent, sqlite, redis", c.Database.Driver)
	}

	if c.Giveaway.TickInterval < time.Second || c.Giveaway.TickInterval%time.Second != 0 {
		return fmt.Errorf("giveaway tick_interval %s must be a whole number of seconds, at least 1s", c.Giveaway.TickInterval)
	}
	if c.Giveaway.Marker == "" {
		return fmt.Errorf("giveaway marker must not be empty")
	}

	switch c.Giveaway.WinnerPolicy {
	case WinnerPolicyRandom:
	case WinnerPolicyDesignated:
		if c.Giveaway.DesignatedWinnerID == "" {
			return fmt.Errorf("winner_policy %q requires designated_winner_id", WinnerPolicyDesignated)
		}
	default:
		return fmt.Errorf("unsupported winner_policy %q: must be %q or %q",
			c.Giveaway.WinnerPolicy, WinnerPolicyRandom, WinnerPolicyDesignated)
	}

	if c.Discord.CommandPrefix == "" {
		return fmt.Errorf("discord command_prefix must not be empty")
	}
	return nil
}
