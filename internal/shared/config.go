package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Discogs  DiscogsConfig  `toml:"discogs"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Sync     SyncConfig     `toml:"sync"`
	Enrich   EnrichConfig   `toml:"enrich"`
	Security SecurityConfig `toml:"security"`
}

// DiscogsConfig contains Discogs API credentials and identity.
//
// OAuthSecret holds the access-token secret sealed with the local key file;
// the plaintext secret never touches disk.
type DiscogsConfig struct {
	ConsumerKey    string `toml:"consumer_key"`
	ConsumerSecret string `toml:"consumer_secret"`
	PersonalToken  string `toml:"personal_token"`
	Username       string `toml:"username"`
	OAuthToken     string `toml:"oauth_token"`
	OAuthSecret    string `toml:"oauth_secret"`
	UserAgent      string `toml:"user_agent"`
}

// StorageConfig selects and configures the snapshot store backend.
type StorageConfig struct {
	Backend      string `toml:"backend"` // "sqlite", "redis" or "memory"
	Path         string `toml:"path"`
	RedisAddr    string `toml:"redis_addr"`
	RedisDB      int    `toml:"redis_db"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncConfig tunes the collection fetch loop.
type SyncConfig struct {
	PageSize         int `toml:"page_size"`
	PageDelayMS      int `toml:"page_delay_ms"`
	SnapshotTTLHours int `toml:"snapshot_ttl_hours"`
}

// EnrichConfig tunes the master enrichment batches.
type EnrichConfig struct {
	BatchSize        int `toml:"batch_size"`
	ItemDelayMS      int `toml:"item_delay_ms"`
	SaveInterval     int `toml:"save_interval"`
	ProgressTTLHours int `toml:"progress_ttl_hours"`
	MasterTTLHours   int `toml:"master_ttl_hours"`
}

// SecurityConfig locates the key file used to seal stored credentials.
type SecurityConfig struct {
	KeyPath string `toml:"key_path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration back to the specified path.
//
// Called after `auth login` stores the sealed access pair.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultKeyPath returns the key-file location used when security.key_path is unset.
func DefaultKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".crates", "crates.key"), nil
}
