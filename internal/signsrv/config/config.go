// Package config loads and validates the signing service configuration from
// a TOML file. Configuration is loaded once at startup and accessed through
// Config().
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the configuration file format version this build accepts.
const Version = "0.1.0"

// SigningConfig holds key-lifecycle and key-at-rest configuration.
type SigningConfig struct {
	KeyEncryptionPasswd string `toml:"key_encryption_passwd"` // Password for private-key encryption at rest
	RevokedKeyRetention string `toml:"revoked_key_retention"` // How long revoked keys are kept before cleanup
}

// GetRevokedKeyRetention returns the revoked key retention as time.Duration
func (s *SigningConfig) GetRevokedKeyRetention() (time.Duration, error) {
	return ParseDuration(s.RevokedKeyRetention)
}

// GetRevokedKeyRetentionOrDefault returns the revoked key retention as
// time.Duration or panics if the value is invalid
func (s *SigningConfig) GetRevokedKeyRetentionOrDefault() time.Duration {
	duration, err := s.GetRevokedKeyRetention()
	if err != nil {
		panic(fmt.Sprintf("invalid revoked key retention: %v", err))
	}
	return duration
}

// RequestsConfig holds signature-request configuration.
type RequestsConfig struct {
	TokenSecret        string `toml:"token_secret"`         // Server-held secret mixed into request tokens
	MaxExpirationHours int    `toml:"max_expiration_hours"` // Ceiling for request expiration
}

// AuditLogConfig holds audit log configuration.
type AuditLogConfig struct {
	Path string `toml:"path"`
}

func (a *AuditLogConfig) GetPath() string {
	return a.Path
}

// ConfigParam holds all configuration parameters for the signing service
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName     string `toml:"server_hostname"`       // Hostname for the server
	ServerPort         string `toml:"server_port"`           // Port for the server
	HandleCORS         bool   `toml:"handle_cors"`           // Whether to handle CORS
	MaxRequestBodySize int64  `toml:"max_request_body_size"` // Maximum size of request body in bytes
	RequestTimeout     string `toml:"request_timeout"`       // Per-request handling timeout

	// Signing configuration
	Signing SigningConfig `toml:"signing"`

	// Signature request configuration
	Requests RequestsConfig `toml:"requests"`

	// Audit log configuration
	AuditLog AuditLogConfig `toml:"audit_log"`

	// Database configuration
	DB struct {
		Host     string `toml:"host"`     // Database host
		Port     int    `toml:"port"`     // Database port
		DBName   string `toml:"dbname"`   // Database name
		User     string `toml:"user"`     // Database user
		Password string `toml:"password"` // Database password
		SSLMode  string `toml:"sslmode"`  // SSL mode for database connection
	} `toml:"db"`
}

var cfg *ConfigParam

// Config returns the current configuration
func Config() *ConfigParam {
	return cfg
}

// DSN returns the database connection string
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// GetRequestTimeout returns the per-request timeout as time.Duration
func (c *ConfigParam) GetRequestTimeout() (time.Duration, error) {
	return ParseDuration(c.RequestTimeout)
}

// ParseDuration parses a duration string in the format "<number><unit>" where unit can be:
// - y: years
// - d: days
// - h: hours
// - m: minutes
// - s: seconds
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	var duration time.Duration
	switch unit {
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "y":
		// Assuming 1 year = 365 days for simplicity
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// ValidateConfig checks if all required configuration values are present and valid
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateSigningConfig(cfg); err != nil {
		return err
	}
	if err := validateRequestsConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "30s"
	}
	if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %v", err)
	}
	return nil
}

func validateSigningConfig(cfg *ConfigParam) error {
	if cfg.Signing.RevokedKeyRetention == "" {
		cfg.Signing.RevokedKeyRetention = "90d"
	}
	if _, err := ParseDuration(cfg.Signing.RevokedKeyRetention); err != nil {
		return fmt.Errorf("invalid signing.revoked_key_retention: %v", err)
	}
	return nil
}

func validateRequestsConfig(cfg *ConfigParam) error {
	if cfg.Requests.TokenSecret == "" {
		return fmt.Errorf("requests.token_secret is required")
	}
	if cfg.Requests.MaxExpirationHours <= 0 {
		cfg.Requests.MaxExpirationHours = 168
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.SSLMode == "" {
		return fmt.Errorf("db.sslmode is required")
	}
	return nil
}

// LoadConfig loads configuration from a file
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	cfg = &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Generate key encryption password if not set. This is intended for eval
	// setups only; production deployments must set a password in the config
	// file or use an external key store.
	if cfg.Signing.KeyEncryptionPasswd == "" {
		cfg.Signing.KeyEncryptionPasswd = "signsrv.inkform.io"
	}

	return nil
}

var isTest = false

func IsTest() bool {
	return isTest
}

func SetTestMode(test bool) {
	isTest = test
}

// TestInit loads the config shipped at the repository root for tests.
func TestInit() {
	isTest = true
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	if err := LoadConfig(filepath.Join(projectRoot, "signsrv.conf")); err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
}
