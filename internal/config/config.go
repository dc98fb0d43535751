// Package config provides YAML-based configuration loading for Pipedesk.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultStages are seeded into every new pipeline unless overridden.
var DefaultStages = []string{"Pending", "Called", "No Answer", "Interested"}

// Config is the top-level Pipedesk configuration, loaded from pipedesk.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Followup FollowupConfig `yaml:"followup"`
}

// DatabaseConfig selects the GORM dialector and its connection settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite, mysql, postgres
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	LogLevel string `yaml:"log_level"` // silent, error, warn, info
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig holds session signing and registration settings.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	RegistrationCode string        `yaml:"registration_code"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
}

// PipelineConfig controls pipeline defaults.
type PipelineConfig struct {
	DefaultStages []string `yaml:"default_stages"`
}

// FollowupConfig controls the follow-up reminder digest.
type FollowupConfig struct {
	Schedule          string        `yaml:"schedule"`
	Lookahead         time.Duration `yaml:"lookahead"`
	SlackWebhookURL   string        `yaml:"slack_webhook_url"`
	DiscordWebhookURL string        `yaml:"discord_webhook_url"`
	SMTP              SMTPConfig    `yaml:"smtp"`
}

// SMTPConfig holds outbound mail settings for the email digest.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != "" && len(s.To) > 0
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config, if present, is loaded into the process
// environment first so ${VAR} references can be resolved.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. ${VAR} references are
// expanded from the environment before decoding.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "pipedesk.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Database.Name == "" {
		c.Database.Name = "pipedesk"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "silent"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if len(c.Pipeline.DefaultStages) == 0 {
		c.Pipeline.DefaultStages = append([]string(nil), DefaultStages...)
	}
	if c.Followup.Schedule == "" {
		c.Followup.Schedule = "0 8 * * *"
	}
	if c.Followup.Lookahead == 0 {
		c.Followup.Lookahead = 24 * time.Hour
	}
	if c.Followup.SMTP.Port == 0 {
		c.Followup.SMTP.Port = 587
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql, postgres)", c.Database.Driver))
	}
	switch c.Database.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Sprintf("database.log_level %q is not supported", c.Database.LogLevel))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required")
	} else if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, "auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.SessionTTL < 0 {
		errs = append(errs, "auth.session_ttl must be positive")
	}
	for i, name := range c.Pipeline.DefaultStages {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("pipeline.default_stages[%d] is empty", i))
		}
	}
	if c.Followup.Lookahead < 0 {
		errs = append(errs, "followup.lookahead must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
