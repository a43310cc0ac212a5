// Package config loads the layered daybook configuration: built-in defaults,
// then the user file in the config directory, then an explicit file.
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/storage/kv"
	"github.com/julianstephens/daybook/internal/storage/postgres"
	"github.com/julianstephens/daybook/internal/utils"
)

// Config represents the complete daybook configuration
type Config struct {
	// Store is the document store DSN: a SQLite path, a postgres:// URL,
	// a nats:// URL (or nats://embedded) or memory://.
	Store string `yaml:"store"`
	// AdminEmail is the forum administrator.
	AdminEmail string `yaml:"admin_email"`
	// Timezone is an IANA name used for calendar dates; empty means local.
	Timezone string       `yaml:"timezone"`
	Server   ServerConfig `yaml:"server"`
	NATS     NATSConfig   `yaml:"nats"`
}

// ServerConfig configures `daybook serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SecretKeyPath holds the session signing key; created on first use.
	SecretKeyPath string        `yaml:"secret_key_path"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	// DevLogin enables POST /auth/login with a bare e-mail address.
	DevLogin bool `yaml:"dev_login"`
}

// NATSConfig configures the embedded NATS server used by nats://embedded.
type NATSConfig struct {
	StoreDir string `yaml:"store_dir"`
}

// Default returns a Config with sensible defaults rooted at configDir.
func Default(configDir string) *Config {
	return &Config{
		Store: filepath.Join(configDir, constants.AppName+".db"),
		Server: ServerConfig{
			Addr:          constants.DefaultServerAddr,
			SecretKeyPath: filepath.Join(configDir, "session.key"),
			SessionTTL:    constants.SessionTTL,
		},
		NATS: NATSConfig{
			StoreDir: filepath.Join(configDir, "jetstream"),
		},
	}
}

// Load applies the user file (configDir/config.yaml, optional) and then
// explicit (required when set) over the defaults.
func Load(configDir, explicit string) (*Config, error) {
	cfg := Default(configDir)

	userFile := filepath.Join(configDir, constants.ConfigFileName)
	if err := cfg.apply(userFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if explicit != "" {
		if err := cfg.apply(utils.ExpandPath(explicit)); err != nil {
			return nil, err
		}
	}
	cfg.Store = utils.ExpandPath(cfg.Store)
	cfg.Server.SecretKeyPath = utils.ExpandPath(cfg.Server.SecretKeyPath)
	cfg.NATS.StoreDir = utils.ExpandPath(cfg.NATS.StoreDir)
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path, configDir string) (*Config, error) {
	cfg := Default(configDir)
	if err := cfg.apply(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays the keys present in the file at path.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store) == "" {
		return fmt.Errorf("store is required")
	}
	if err := ValidateStore(c.Store); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.AdminEmail != "" && !strings.Contains(c.AdminEmail, "@") {
		return fmt.Errorf("admin_email %q is not an e-mail address", c.AdminEmail)
	}
	return nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ValidateStore rejects DSNs no backend accepts.
func ValidateStore(dsn string) error {
	switch {
	case postgres.IsConnString(dsn):
		return postgres.ValidateConnString(dsn)
	case kv.IsURL(dsn), dsn == MemoryDSN:
		return nil
	case strings.Contains(dsn, "://"):
		scheme, _, _ := strings.Cut(dsn, "://")
		return fmt.Errorf("unsupported store scheme %q", scheme)
	default:
		return nil
	}
}

// MemoryDSN selects the in-process store.
const MemoryDSN = "memory://"
