// Package config loads player settings from a JSON file, with defaults
// and PLAYSYNC_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PLAYSYNC_DEFAULT_VOLUME
const EnvPrefix = "playsync"

// EnvKeyReplacer maps nested keys to environment variable names
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Config holds application configuration
type Config struct {
	DefaultVolume    float64       `mapstructure:"default_volume"`
	VolumeStep       float64       `mapstructure:"volume_step"`
	SeekStep         time.Duration `mapstructure:"seek_step"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	OutputSampleRate int           `mapstructure:"output_sample_rate"`
	Log              LogConfig     `mapstructure:"log"`
	KeyBindings      KeyMap        `mapstructure:"key_bindings"`
}

// LogConfig controls log output
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	PlayPause   string `mapstructure:"play_pause"`
	SeekForward string `mapstructure:"seek_forward"`
	SeekBack    string `mapstructure:"seek_back"`
	VolumeUp    string `mapstructure:"volume_up"`
	VolumeDown  string `mapstructure:"volume_down"`
	Quit        string `mapstructure:"quit"`
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		DefaultVolume:    1.0,
		VolumeStep:       0.1,
		SeekStep:         5 * time.Second,
		TickInterval:     250 * time.Millisecond,
		OutputSampleRate: 44100,
		Log: LogConfig{
			Level: "info",
		},
		KeyBindings: KeyMap{
			PlayPause:   " ",
			SeekForward: "right",
			SeekBack:    "left",
			VolumeUp:    "+",
			VolumeDown:  "-",
			Quit:        "q",
		},
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		return fmt.Errorf("default_volume %v out of range [0, 1]", c.DefaultVolume)
	}
	if c.VolumeStep <= 0 || c.VolumeStep > 1 {
		return fmt.Errorf("volume_step %v out of range (0, 1]", c.VolumeStep)
	}
	if c.SeekStep <= 0 {
		return fmt.Errorf("seek_step must be positive, got %v", c.SeekStep)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.OutputSampleRate <= 0 {
		return fmt.Errorf("output_sample_rate must be positive, got %d", c.OutputSampleRate)
	}
	return nil
}

// settings flattens c into the key layout of the config file
func (c *Config) settings() map[string]any {
	return map[string]any{
		"default_volume":     c.DefaultVolume,
		"volume_step":        c.VolumeStep,
		"seek_step":          c.SeekStep.String(),
		"tick_interval":      c.TickInterval.String(),
		"output_sample_rate": c.OutputSampleRate,
		"log": map[string]any{
			"level": c.Log.Level,
			"json":  c.Log.JSON,
			"file":  c.Log.File,
		},
		"key_bindings": map[string]any{
			"play_pause":   c.KeyBindings.PlayPause,
			"seek_forward": c.KeyBindings.SeekForward,
			"seek_back":    c.KeyBindings.SeekBack,
			"volume_up":    c.KeyBindings.VolumeUp,
			"volume_down":  c.KeyBindings.VolumeDown,
			"quit":         c.KeyBindings.Quit,
		},
	}
}

func newViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("json")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	for name, value := range GetDefaultConfig().settings() {
		v.SetDefault(name, value)
	}
	return v
}

// LoadConfig reads configuration from path on fs. A missing file yields
// the defaults, still subject to environment overrides.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	v := newViper(fs)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if exists {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes configuration to path on fs
func SaveConfig(fs afero.Fs, config *Config, path string) error {
	// Ensure directory exists
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("json")
	if err := v.MergeConfigMap(config.settings()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists
func LoadOrCreate(fs afero.Fs, path string) (*Config, error) {
	config, err := LoadConfig(fs, path)
	if err != nil {
		return nil, err
	}

	// Save default config if file didn't exist
	if exists, _ := afero.Exists(fs, path); !exists {
		if err := SaveConfig(fs, GetDefaultConfig(), path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	return config, nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("PLAYSYNC_CONFIG"); path != "" {
		return path
	}

	// Use XDG config directory if available
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "playsync", "config.json")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(home, ".config", "playsync", "config.json")
}
