package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/compress"
	"github.com/ssargent/keyds/pkg/logging"
)

// Config represents the keyds configuration
type Config struct {
	DataDir  string    `yaml:"data_dir"`
	Port     int       `yaml:"port"`
	Bind     string    `yaml:"bind"`
	Security Security  `yaml:"security"`
	Logging  Logging   `yaml:"logging"`
	Storage  Storage   `yaml:"storage"`
	Datasets []Dataset `yaml:"datasets,omitempty"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage configures the access method datasets are stored with
type Storage struct {
	Compression   string `yaml:"compression"`
	Sync          bool   `yaml:"sync"`
	RouteReadOnly bool   `yaml:"route_read_only"`
	Encoding      string `yaml:"encoding"`
}

// Dataset is a dataset served by the REST API
type Dataset struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Schema string `yaml:"schema"`
	Mode   string `yaml:"mode,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Security: Security{
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Storage: Storage{
			Compression: compress.None,
			Sync:        true,
			Encoding:    "identity",
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file holds the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates and saves a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./keyds.yaml"
	}

	// ~/.config/keyds/config.yaml on Linux and macOS
	return filepath.Join(homeDir, ".config", "keyds", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if _, err := compress.Lookup(c.Storage.Compression); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if _, err := codec.LookupTranscoder(c.Storage.Encoding); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		switch {
		case d.Name == "":
			return fmt.Errorf("datasets[%d]: name is required", i)
		case seen[d.Name]:
			return fmt.Errorf("datasets[%d]: duplicate dataset name %q", i, d.Name)
		case d.Path == "":
			return fmt.Errorf("dataset %s: path is required", d.Name)
		case d.Schema == "":
			return fmt.Errorf("dataset %s: schema is required", d.Name)
		}
		if _, err := access.ParseMode(d.Mode); err != nil {
			return fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		seen[d.Name] = true
	}
	return nil
}

// ResolvePath places relative dataset paths under DataDir
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// Dataset looks up a configured dataset by name
func (c *Config) Dataset(name string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Method builds the pebble access method described by Storage
func (c *Config) Method(logger *slog.Logger) (*access.Pebble, error) {
	algo, err := compress.Lookup(c.Storage.Compression)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return access.NewPebble(
		access.WithCompression(algo),
		access.WithSync(c.Storage.Sync),
		access.WithPebbleLogger(logging.NewPebbleLogger(logger)),
	), nil
}

// Transcoder returns the string field encoding named by Storage.Encoding
func (c *Config) Transcoder() (codec.Transcoder, error) {
	tc, err := codec.LookupTranscoder(c.Storage.Encoding)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return tc, nil
}
