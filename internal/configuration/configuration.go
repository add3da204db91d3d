package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/settings"
)

// Environment variables read by ApplyEnv
const (
	EnvServerURL = "CONDUCTOR_SERVER_URL"
	EnvBackend   = "CONDUCTOR_BACKEND"
	EnvModel     = "CONDUCTOR_MODEL"
	EnvAPIKey    = "CONDUCTOR_API_KEY"
	EnvCustomURL = "CONDUCTOR_CUSTOM_URL"
	EnvLogLevel  = "CONDUCTOR_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	HTTPServerURL     string           `json:"httpServerURL"`     // Conductor backend the feed connects to
	WebsocketPath     string           `json:"websocketPath"`     // Path of the feed on the backend
	OllamaURL         string           `json:"ollamaURL"`         // Used for model discovery when backend is ollama without a custom URL
	LogLevel          string           `json:"logLevel"`          // Log level: debug, info, warn, error
	EnableFileLogging bool             `json:"enableFileLogging"` // Whether to log to file
	InitialSettings   settings.Partial `json:"initialSettings"`   // Seeds the settings panel on startup
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTPServerURL:     "http://localhost:8001",
		WebsocketPath:     "/ws",
		OllamaURL:         backends.DefaultOllamaURL,
		LogLevel:          "info",
		EnableFileLogging: true,
	}
}

// dir returns the appropriate config directory based on OS
func dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir = os.Getenv("APPDATA")
			if configDir == "" {
				return "", fmt.Errorf("LOCALAPPDATA or APPDATA environment variable not set")
			}
		}
	default:
		configDir = os.Getenv("XDG_DATA_HOME")
		if configDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			configDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	return filepath.Join(configDir, logging.AppName, "settings"), nil
}

// Path returns the full path to the configuration file
func Path() (string, error) {
	configDir, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.json"), nil
}

// Load reads the configuration from the settings file.
// If the file doesn't exist, it creates it with default configuration.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(configPath)
}

// LoadFile reads the configuration at configPath, writing defaults there when the file
// is missing
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		config := DefaultConfig()
		if saveErr := config.SaveFile(configPath); saveErr != nil {
			// Still usable, the directory just isn't writable
			return config, fmt.Errorf("failed to save default configuration: %w", saveErr)
		}
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaultsIfMissing(&config)

	return &config, nil
}

// applyDefaultsIfMissing fills fields older settings files don't have
func applyDefaultsIfMissing(c *Config) {
	defaultConfig := DefaultConfig()

	if c.HTTPServerURL == "" {
		c.HTTPServerURL = defaultConfig.HTTPServerURL
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = defaultConfig.WebsocketPath
	}
	if c.OllamaURL == "" {
		c.OllamaURL = defaultConfig.OllamaURL
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultConfig.LogLevel
		// A file without a log level predates file logging, which defaults on
		c.EnableFileLogging = defaultConfig.EnableFileLogging
	}
}

// Save writes the configuration to the settings file
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the configuration to configPath
func (c *Config) SaveFile(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The initial settings may hold an API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are named)
// into the process environment. Variables already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables read through getenv (os.Getenv when nil)
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := strings.TrimSpace(getenv(EnvServerURL)); v != "" {
		c.HTTPServerURL = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	var p settings.Partial
	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		p.Backend = settings.String(v)
	}
	if v := strings.TrimSpace(getenv(EnvModel)); v != "" {
		p.Model = settings.String(v)
	}
	if v := getenv(EnvAPIKey); v != "" {
		p.APIKey = settings.String(v)
	}
	if v := strings.TrimSpace(getenv(EnvCustomURL)); v != "" {
		p.UseCustomURL = settings.Bool(true)
		p.CustomURL = settings.String(v)
	}
	c.InitialSettings = c.InitialSettings.Merge(p)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPServerURL == "" {
		return fmt.Errorf("httpServerURL cannot be empty")
	}
	u, err := url.Parse(c.HTTPServerURL)
	if err != nil {
		return fmt.Errorf("httpServerURL is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("httpServerURL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("httpServerURL must include a host")
	}

	if c.WebsocketPath != "" && !strings.HasPrefix(c.WebsocketPath, "/") {
		return fmt.Errorf("websocketPath must start with /")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be one of debug, info, warn, error")
	}

	if m := c.InitialSettings.MoleculeName; m != nil && *m != "" && !m.Valid() {
		return fmt.Errorf("initialSettings.moleculeName %q is not a known format", *m)
	}

	return nil
}

// GetLogLevel returns the configured level for the logging package
func (c *Config) GetLogLevel() logging.LogLevel {
	return logging.ParseLevel(c.LogLevel)
}

// LoggingConfig builds the logger configuration for TUI mode
func (c *Config) LoggingConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.GetLogLevel()
	lc.EnableFile = c.EnableFileLogging
	return lc
}
