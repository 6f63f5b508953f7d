// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Seat      SeatConfig       `mapstructure:"seat"`
	Keyboard  KeyboardConfig   `mapstructure:"keyboard"`
	Backend   BackendConfig    `mapstructure:"backend"`
	Viewports []ViewportConfig `mapstructure:"viewports"`
	// ViewsScaled mirrors a compositor running in logical layout mode, where
	// pointer deltas are already in logical units.
	ViewsScaled bool            `mapstructure:"views_scaled"`
	Barriers    []BarrierConfig `mapstructure:"barriers"`
	Mirror      MirrorConfig    `mapstructure:"mirror"`
	Record      RecordConfig    `mapstructure:"record"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Logging     LoggingConfig   `mapstructure:"logging"`
}

// SeatConfig contains seat-wide settings
type SeatConfig struct {
	ID              string  `mapstructure:"id"`
	InitialPointerX float64 `mapstructure:"initial_pointer_x"`
	InitialPointerY float64 `mapstructure:"initial_pointer_y"`
}

// KeyboardConfig contains repeat and lock settings
type KeyboardConfig struct {
	Repeat           bool `mapstructure:"repeat"`
	RepeatDelayMs    int  `mapstructure:"repeat_delay_ms"`
	RepeatIntervalMs int  `mapstructure:"repeat_interval_ms"`
	NumLock          bool `mapstructure:"numlock"`
	Layouts          int  `mapstructure:"layouts"`
	LayoutIndex      int  `mapstructure:"layout_index"`
}

// BackendConfig controls the evdev backend
type BackendConfig struct {
	InputDir    string   `mapstructure:"input_dir"`
	IgnoreNames []string `mapstructure:"ignore_names"` // Substrings of device names to skip
	Grab        bool     `mapstructure:"grab"`         // EVIOCGRAB opened devices
	Debounce    int      `mapstructure:"debounce_ms"`  // Hotplug rescan debounce
}

// ViewportConfig is one monitor rectangle in the shared coordinate space
type ViewportConfig struct {
	Name   string  `mapstructure:"name"`
	X      int     `mapstructure:"x"`
	Y      int     `mapstructure:"y"`
	Width  int     `mapstructure:"width"`
	Height int     `mapstructure:"height"`
	Scale  float64 `mapstructure:"scale"`
}

// BarrierConfig is an axis-aligned pointer barrier
type BarrierConfig struct {
	X1 float64 `mapstructure:"x1"`
	Y1 float64 `mapstructure:"y1"`
	X2 float64 `mapstructure:"x2"`
	Y2 float64 `mapstructure:"y2"`
	// Directions the pointer may still cross: "+x", "-x", "+y", "-y"
	Directions []string `mapstructure:"directions"`
}

// MirrorConfig controls uinput re-emission of normalized events
type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

// RecordConfig controls the event log
type RecordConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Address string `mapstructure:"address"` // Empty disables the endpoint
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Seat: SeatConfig{
			ID:              "seat0",
			InitialPointerX: 16,
			InitialPointerY: 16,
		},
		Keyboard: KeyboardConfig{
			Repeat:           true,
			RepeatDelayMs:    250,
			RepeatIntervalMs: 33,
			NumLock:          false,
			Layouts:          1,
			LayoutIndex:      0,
		},
		Backend: BackendConfig{
			InputDir:    "/dev/input",
			IgnoreNames: []string{"inputseat"},
			Grab:        false,
			Debounce:    250,
		},
		Viewports:   []ViewportConfig{},
		ViewsScaled: false,
		Barriers:    []BarrierConfig{},
		Mirror: MirrorConfig{
			Enabled: false,
			Name:    "inputseat mirror",
		},
		Record:  RecordConfig{Path: ""},
		Metrics: MetricsConfig{Address: ""},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("inputseat")
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("INPUTSEAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "inputseat"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "inputseat"))
		}
		viper.AddConfigPath("/etc/inputseat")
		viper.AddConfigPath(".")
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	return nil
}

// Individual keys so partial files merge with the defaults.
func setDefaults() {
	viper.SetDefault("seat.id", DefaultConfig.Seat.ID)
	viper.SetDefault("seat.initial_pointer_x", DefaultConfig.Seat.InitialPointerX)
	viper.SetDefault("seat.initial_pointer_y", DefaultConfig.Seat.InitialPointerY)

	viper.SetDefault("keyboard.repeat", DefaultConfig.Keyboard.Repeat)
	viper.SetDefault("keyboard.repeat_delay_ms", DefaultConfig.Keyboard.RepeatDelayMs)
	viper.SetDefault("keyboard.repeat_interval_ms", DefaultConfig.Keyboard.RepeatIntervalMs)
	viper.SetDefault("keyboard.numlock", DefaultConfig.Keyboard.NumLock)
	viper.SetDefault("keyboard.layouts", DefaultConfig.Keyboard.Layouts)
	viper.SetDefault("keyboard.layout_index", DefaultConfig.Keyboard.LayoutIndex)

	viper.SetDefault("backend.input_dir", DefaultConfig.Backend.InputDir)
	viper.SetDefault("backend.ignore_names", DefaultConfig.Backend.IgnoreNames)
	viper.SetDefault("backend.grab", DefaultConfig.Backend.Grab)
	viper.SetDefault("backend.debounce_ms", DefaultConfig.Backend.Debounce)

	viper.SetDefault("viewports", DefaultConfig.Viewports)
	viper.SetDefault("views_scaled", DefaultConfig.ViewsScaled)
	viper.SetDefault("barriers", DefaultConfig.Barriers)

	viper.SetDefault("mirror.enabled", DefaultConfig.Mirror.Enabled)
	viper.SetDefault("mirror.name", DefaultConfig.Mirror.Name)
	viper.SetDefault("record.path", DefaultConfig.Record.Path)
	viper.SetDefault("metrics.address", DefaultConfig.Metrics.Address)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)
}

// Validate rejects values the seat cannot run with
func (c *Config) Validate() error {
	if c.Seat.ID == "" {
		return fmt.Errorf("seat.id must not be empty")
	}
	if c.Keyboard.RepeatDelayMs < 0 || c.Keyboard.RepeatIntervalMs < 0 {
		return fmt.Errorf("keyboard repeat timings must not be negative")
	}
	if c.Keyboard.Layouts < 1 {
		return fmt.Errorf("keyboard.layouts must be at least 1, got %d", c.Keyboard.Layouts)
	}
	if c.Keyboard.LayoutIndex < 0 || c.Keyboard.LayoutIndex >= c.Keyboard.Layouts {
		return fmt.Errorf("keyboard.layout_index %d out of range [0,%d)", c.Keyboard.LayoutIndex, c.Keyboard.Layouts)
	}
	for i, v := range c.Viewports {
		if v.Width <= 0 || v.Height <= 0 {
			return fmt.Errorf("viewport %d (%s) has empty size %dx%d", i, v.Name, v.Width, v.Height)
		}
	}
	for i, b := range c.Barriers {
		if b.X1 != b.X2 && b.Y1 != b.Y2 {
			return fmt.Errorf("barrier %d is not axis aligned", i)
		}
		for _, d := range b.Directions {
			switch d {
			case "+x", "-x", "+y", "-y":
			default:
				return fmt.Errorf("barrier %d has unknown direction %q", i, d)
			}
		}
	}
	return nil
}

// RepeatDelay returns the initial auto-repeat delay
func (k KeyboardConfig) RepeatDelay() time.Duration {
	return time.Duration(k.RepeatDelayMs) * time.Millisecond
}

// RepeatInterval returns the auto-repeat period
func (k KeyboardConfig) RepeatInterval() time.Duration {
	return time.Duration(k.RepeatIntervalMs) * time.Millisecond
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// UpdateKeyboard replaces the keyboard settings in both viper and the loaded config
func UpdateKeyboard(k KeyboardConfig) {
	viper.Set("keyboard.repeat", k.Repeat)
	viper.Set("keyboard.repeat_delay_ms", k.RepeatDelayMs)
	viper.Set("keyboard.repeat_interval_ms", k.RepeatIntervalMs)
	viper.Set("keyboard.numlock", k.NumLock)
	viper.Set("keyboard.layouts", k.Layouts)
	viper.Set("keyboard.layout_index", k.LayoutIndex)
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	cfg.Keyboard = k
}

// UpdateSeatID replaces the seat identifier
func UpdateSeatID(id string) {
	viper.Set("seat.id", id)
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	cfg.Seat.ID = id
}

// UpdateViewports replaces the configured monitor layout
func UpdateViewports(vs []ViewportConfig, scaled bool) {
	entries := make([]map[string]any, 0, len(vs))
	for _, v := range vs {
		entries = append(entries, map[string]any{
			"name":   v.Name,
			"x":      v.X,
			"y":      v.Y,
			"width":  v.Width,
			"height": v.Height,
			"scale":  v.Scale,
		})
	}
	viper.Set("viewports", entries)
	viper.Set("views_scaled", scaled)
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	cfg.Viewports = append([]ViewportConfig(nil), vs...)
	cfg.ViewsScaled = scaled
}

// UpdateOutputs replaces the mirror, record and metrics settings
func UpdateOutputs(m MirrorConfig, r RecordConfig, metrics MetricsConfig) {
	viper.Set("mirror.enabled", m.Enabled)
	viper.Set("mirror.name", m.Name)
	viper.Set("record.path", r.Path)
	viper.Set("metrics.address", metrics.Address)
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	cfg.Mirror = m
	cfg.Record = r
	cfg.Metrics = metrics
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inputseat", "inputseat.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil || os.Getuid() == 0 {
		return "/etc/inputseat/inputseat.toml"
	}

	return filepath.Join(home, ".config", "inputseat", "inputseat.toml")
}
