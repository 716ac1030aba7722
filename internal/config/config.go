package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WMIPC_SOCKET_PATH or
// WMIPC_BRIDGE_LISTEN.
const EnvPrefix = "WMIPC"

// Config represents the application configuration
type Config struct {
	SocketPath string       `json:"socket_path" yaml:"socket_path" mapstructure:"socket_path"`
	LogLevel   string       `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat  string       `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
	Output     OutputConfig `json:"output" yaml:"output" mapstructure:"output"`
	Bridge     BridgeConfig `json:"bridge" yaml:"bridge" mapstructure:"bridge"`
	Status     StatusConfig `json:"status" yaml:"status" mapstructure:"status"`
}

// OutputConfig controls how replies are printed
type OutputConfig struct {
	Indent string `json:"indent" yaml:"indent" mapstructure:"indent"`
	Raw    bool   `json:"raw" yaml:"raw" mapstructure:"raw"`
}

// BridgeConfig configures the HTTP/WebSocket bridge
type BridgeConfig struct {
	Listen string `json:"listen" yaml:"listen" mapstructure:"listen"`
	// AllowedTypes limits which request types the bridge forwards. Empty
	// allows all of them.
	AllowedTypes []string `json:"allowed_types" yaml:"allowed_types" mapstructure:"allowed_types"`
}

// StatusConfig configures the status command driver
type StatusConfig struct {
	Command string `json:"command" yaml:"command" mapstructure:"command"`
	Shell   string `json:"shell" yaml:"shell" mapstructure:"shell"`
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

var validLogFormats = map[string]bool{
	logger.FormatAuto: true, logger.FormatConsole: true, logger.FormatJSON: true,
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:  "warn",
		LogFormat: logger.FormatAuto,
		Output: OutputConfig{
			Indent: "    ",
		},
		Bridge: BridgeConfig{
			Listen:       "127.0.0.1:8719",
			AllowedTypes: []string{},
		},
		Status: StatusConfig{
			Shell: "/bin/sh",
		},
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (use: trace, debug, info, warn, error, disabled)", c.LogLevel)
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (use: auto, console, json)", c.LogFormat)
	}
	if strings.Trim(c.Output.Indent, " \t") != "" {
		return fmt.Errorf("invalid indent %q: only spaces and tabs are allowed", c.Output.Indent)
	}
	if c.Bridge.Listen == "" {
		return errors.New("bridge.listen must not be empty")
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $XDG_CONFIG_HOME/wmipc/config.yaml (or ~/.config/...)
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "wmipc", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	log := logger.WithComponent("config")

	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper(path)
	m := &Manager{configPath: path, v: v}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.reload(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", m.configPath).
		Str("socket_path", m.config.SocketPath).
		Msg("Config loaded")

	return m, nil
}

// Load reads configFile (or the default path) without creating it. A
// missing file yields the defaults plus any environment overrides.
func Load(configFile string) (*Config, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	m := &Manager{configPath: path, v: v}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m.Get(), nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("socket_path", d.SocketPath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("output.indent", d.Output.Indent)
	v.SetDefault("output.raw", d.Output.Raw)
	v.SetDefault("bridge.listen", d.Bridge.Listen)
	v.SetDefault("bridge.allowed_types", d.Bridge.AllowedTypes)
	v.SetDefault("status.command", d.Status.Command)
	v.SetDefault("status.shell", d.Status.Shell)
}

// Keys lists every settable configuration key
func Keys() []string {
	return []string{
		"socket_path",
		"log_level",
		"log_format",
		"output.indent",
		"output.raw",
		"bridge.listen",
		"bridge.allowed_types",
		"status.command",
		"status.shell",
	}
}

// reload rebuilds the typed config from viper's merged view
func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Bridge.AllowedTypes == nil {
		cfg.Bridge.AllowedTypes = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	cfg.Bridge.AllowedTypes = append([]string(nil), m.config.Bridge.AllowedTypes...)
	return &cfg
}

// GetViper exposes the underlying viper instance for key-level access
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// Set assigns one key in memory; call Save to persist it
func (m *Manager) Set(key string, value interface{}) error {
	prev := m.v.Get(key)
	m.v.Set(key, value)
	if err := m.reload(); err != nil {
		m.v.Set(key, prev)
		return err
	}
	return nil
}

// SetSocketPath overrides the socket path for this process
func (m *Manager) SetSocketPath(path string) error {
	return m.Set("socket_path", path)
}

// SetLogLevel overrides the log level for this process
func (m *Manager) SetLogLevel(level string) error {
	return m.Set("log_level", level)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	log := logger.WithComponent("config")

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	log.Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the directory holding the configuration file
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
