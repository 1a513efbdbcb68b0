// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meshvault/meshvault-server/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Data       DataConfig
	Scanner    ScannerConfig
	Thumbnails ThumbnailsConfig
	Watcher    WatcherConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk data layout configuration. The database,
// rendered thumbnails, and the archive extraction cache all live under
// BasePath.
type DataConfig struct {
	BasePath string
}

// ScannerConfig holds library scan configuration.
type ScannerConfig struct {
	// Workers is the number of concurrent background job slots (default: 2).
	Workers int
	// TriangleBudget caps mesh complexity before thumbnail rendering;
	// larger meshes are decimated down to it (default: 200000).
	TriangleBudget int
	// Schedule is an optional cron expression for periodic scans of all
	// enabled libraries (default: disabled).
	Schedule string
}

// ThumbnailsConfig holds thumbnail rendering configuration.
type ThumbnailsConfig struct {
	// Mode selects the render style: wireframe or solid (default: wireframe).
	Mode string
	// Quality selects supersampling: standard or high (default: standard).
	Quality string
}

// WatcherConfig holds filesystem watcher configuration.
type WatcherConfig struct {
	// Enabled toggles live library watching (default: true).
	Enabled bool
	// SettleDelay is how long a file must stay quiet before an event is
	// emitted (default: 500ms).
	SettleDelay time.Duration
}

// Flags carries the raw command-line flag values for LoadConfig. Callers
// register the flags themselves so each binary can keep its own flag set.
type Flags struct {
	Env            string
	LogLevel       string
	DataPath       string
	Workers        string
	TriangleBudget string
	Schedule       string
	ThumbMode      string
	ThumbQuality   string
	WatcherEnabled string
	SettleDelay    string
	EnvFile        string
}

// ParseFlags registers the shared command-line flags on the default flag
// set and parses them.
func ParseFlags() Flags {
	var f Flags
	flag.StringVar(&f.Env, "env", "", "Environment (development, staging, production)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.DataPath, "data-path", "", "Base path for database, thumbnails, and caches")
	flag.StringVar(&f.Workers, "scan-workers", "", "Concurrent background job slots (default: 2)")
	flag.StringVar(&f.TriangleBudget, "triangle-budget", "", "Mesh decimation target for thumbnails (default: 200000)")
	flag.StringVar(&f.Schedule, "scan-schedule", "", "Cron expression for periodic scans (default: disabled)")
	flag.StringVar(&f.ThumbMode, "thumbnail-mode", "", "Thumbnail render mode: wireframe or solid")
	flag.StringVar(&f.ThumbQuality, "thumbnail-quality", "", "Thumbnail quality: standard or high")
	flag.StringVar(&f.WatcherEnabled, "watcher", "", "Enable live library watching (default: true)")
	flag.StringVar(&f.SettleDelay, "settle-delay", "", "Watcher settle delay (default: 500ms)")
	flag.StringVar(&f.EnvFile, "env-file", ".env", "Path to .env file")
	flag.Parse()
	return f
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(flags Flags) (*Config, error) {
	// Load .env file if it exists (silently ignore if not found).
	envFile := flags.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(flags.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(flags.LogLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(flags.DataPath, "DATA_PATH", ""),
		},
		Scanner: ScannerConfig{
			Workers:        getIntConfigValue(flags.Workers, "SCAN_WORKERS", 2),
			TriangleBudget: getIntConfigValue(flags.TriangleBudget, "TRIANGLE_BUDGET", 200000),
			Schedule:       getConfigValue(flags.Schedule, "SCAN_SCHEDULE", ""),
		},
		Thumbnails: ThumbnailsConfig{
			Mode:    getConfigValue(flags.ThumbMode, "THUMBNAIL_MODE", "wireframe"),
			Quality: getConfigValue(flags.ThumbQuality, "THUMBNAIL_QUALITY", "standard"),
		},
		Watcher: WatcherConfig{
			Enabled: getBoolConfigValue(flags.WatcherEnabled, "WATCHER_ENABLED", true),
		},
	}

	// Parse the watcher settle delay.
	settleStr := getConfigValue(flags.SettleDelay, "WATCHER_SETTLE_DELAY", "500ms")
	settle, err := time.ParseDuration(settleStr)
	if err != nil {
		return nil, fmt.Errorf("invalid watcher settle delay %q: %w", settleStr, err)
	}
	cfg.Watcher.SettleDelay = settle

	// Expand and validate the data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scan workers must be at least 1, got %d", c.Scanner.Workers)
	}

	if c.Scanner.TriangleBudget < 0 {
		return fmt.Errorf("triangle budget cannot be negative, got %d", c.Scanner.TriangleBudget)
	}

	if _, ok := domain.ParseRenderMode(c.Thumbnails.Mode); !ok {
		return fmt.Errorf("invalid thumbnail mode: %s (must be wireframe or solid)", c.Thumbnails.Mode)
	}

	validQualities := map[string]bool{
		"standard": true,
		"high":     true,
	}
	if !validQualities[c.Thumbnails.Quality] {
		return fmt.Errorf("invalid thumbnail quality: %s (must be standard or high)", c.Thumbnails.Quality)
	}

	if c.Watcher.SettleDelay < 0 {
		return fmt.Errorf("watcher settle delay cannot be negative, got %s", c.Watcher.SettleDelay)
	}

	return nil
}

// DatabasePath returns the sqlite database file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.BasePath, "meshvault.db")
}

// ThumbnailsPath returns the directory for rendered thumbnail PNGs.
func (c *Config) ThumbnailsPath() string {
	return filepath.Join(c.Data.BasePath, "thumbnails")
}

// ArchiveCachePath returns the directory for extracted archive members.
func (c *Config) ArchiveCachePath() string {
	return filepath.Join(c.Data.BasePath, "cache", "archives")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "MeshVault", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
