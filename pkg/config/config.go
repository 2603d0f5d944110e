package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chathub/pkg/errors"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address  string         `yaml:"address"`
	TLS      TLSConfig      `yaml:"tls"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Hub      HubConfig      `yaml:"hub"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	BehindProxy bool   `yaml:"behind_proxy"`
}

// DatabaseConfig represents presence-audit database settings
type DatabaseConfig struct {
	Type    string `yaml:"type"` // sqlite | mysql | none
	Path    string `yaml:"path"` // sqlite file path
	DSN     string `yaml:"dsn"`  // mysql data source name
	MaxOpen int    `yaml:"max_open_connections"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HubConfig represents hub and transport tuning
type HubConfig struct {
	SendBufferSize  int    `yaml:"send_buffer_size"`
	WriteTimeoutSec int    `yaml:"write_timeout_seconds"`
	PongTimeoutSec  int    `yaml:"pong_timeout_seconds"`
	RosterDelimiter string `yaml:"roster_delimiter"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":8080",
		TLS: TLSConfig{
			Enabled:     false,
			CertFile:    "",
			KeyFile:     "",
			BehindProxy: false,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			Path:    "./presence.db",
			MaxOpen: 25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Hub: HubConfig{
			SendBufferSize:  256,
			WriteTimeoutSec: 5,
			PongTimeoutSec:  90,
			RosterDelimiter: ";",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if bufSize := os.Getenv("HUB_SEND_BUFFER"); bufSize != "" {
		if val, err := strconv.Atoi(bufSize); err == nil {
			config.Hub.SendBufferSize = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: server address cannot be empty", errors.ErrInvalidConfig)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("%w: sqlite database path cannot be empty", errors.ErrInvalidConfig)
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: mysql DSN cannot be empty", errors.ErrInvalidConfig)
		}
	case "none":
	default:
		return fmt.Errorf("%w: unknown database type %s", errors.ErrInvalidConfig, c.Database.Type)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("%w: TLS enabled but cert/key files not provided", errors.ErrInvalidConfig)
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("%w: certificate file not found: %v", errors.ErrInvalidConfig, err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("%w: key file not found: %v", errors.ErrInvalidConfig, err)
		}
	}

	if c.Hub.SendBufferSize < 1 {
		return fmt.Errorf("%w: hub send buffer size must be at least 1", errors.ErrInvalidConfig)
	}

	if c.Hub.RosterDelimiter == "" {
		return fmt.Errorf("%w: hub roster delimiter cannot be empty", errors.ErrInvalidConfig)
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level %s", errors.ErrInvalidConfig, c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// GetDatabasePath returns the absolute sqlite database path
func (c *ServerConfig) GetDatabasePath() string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	wd, err := os.Getwd()
	if err != nil {
		return c.Database.Path
	}
	return filepath.Join(wd, c.Database.Path)
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, DB: %s, TLS: %v, LogLevel: %s}",
		c.Address, c.Database.Type, c.TLS.Enabled, c.Logging.Level)
}
