package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/fastload/internal/codec"
	"github.com/kailas-cloud/fastload/internal/domain/access"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config holds the fastload server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Gallery  GalleryConfig  `yaml:"gallery"`
	Access   AccessConfig   `yaml:"access"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AccessConfig holds the gallery access policy.
type AccessConfig struct {
	// Level is granted to anonymous callers: 0 none, 1 presets, 2 manual paths.
	Level int `yaml:"level"`
	// Tokens elevate bearer-authenticated callers to the manual level.
	Tokens []string `yaml:"tokens"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds hash lookup store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// GalleryConfig holds gallery browsing settings.
type GalleryConfig struct {
	PageSize int `yaml:"page_size"`
	// Presets maps a display name to a directory.
	Presets map[string]string `yaml:"presets"`
	// CacheSize bounds the number of cached directory indexes; 0 = unbounded.
	CacheSize     int    `yaml:"cache_size"`
	Watch         bool   `yaml:"watch"`
	WatchDebounce int    `yaml:"watch_debounce_ms"`
	FileURLPrefix string `yaml:"file_url_prefix"`
	HashTTLSec    int    `yaml:"hash_ttl_sec"` // 0 = no expiry
	SaveMode      string `yaml:"save_mode"`    // embed, sidecar, both
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Gallery.PageSize <= 0 {
		c.Gallery.PageSize = 36
	}
	if c.Gallery.WatchDebounce <= 0 {
		c.Gallery.WatchDebounce = 500
	}
	if c.Gallery.FileURLPrefix == "" {
		c.Gallery.FileURLPrefix = "/file="
	}
	if c.Gallery.SaveMode == "" {
		c.Gallery.SaveMode = "embed"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
		if c.Database.DB < 0 {
			return fmt.Errorf("database.db must be >= 0, got %d", c.Database.DB)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverRedis, c.Database.Driver)
	}
	if !access.Level(c.Access.Level).Valid() {
		return fmt.Errorf("access.level must be 0, 1 or 2, got %d", c.Access.Level)
	}
	for i, tok := range c.Access.Tokens {
		if strings.TrimSpace(tok) == "" {
			return fmt.Errorf("access.tokens[%d] is empty", i)
		}
	}
	if c.Gallery.CacheSize < 0 {
		return fmt.Errorf("gallery.cache_size must not be negative, got %d", c.Gallery.CacheSize)
	}
	for name, dir := range c.Gallery.Presets {
		if dir == "" {
			return fmt.Errorf("gallery.presets.%s: directory is required", name)
		}
	}
	if _, err := codec.ParseSaveMode(c.Gallery.SaveMode); err != nil {
		return fmt.Errorf("gallery.save_mode: %w", err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
