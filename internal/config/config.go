package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the tool's YAML configuration. Everything here is outer
// surface; the conversion pipeline itself only sees the values the CLI
// hands it.
type Config struct {
	MapsDir string `yaml:"maps_dir"`

	MaxMapSizeDefault   int `yaml:"max_map_size_default"`
	MaxMapSizeLimit     int `yaml:"max_map_size_limit"`
	MaxElevationDefault int `yaml:"max_elevation_default"`
	MaxElevationLimit   int `yaml:"max_elevation_limit"`

	GameVersion    string `yaml:"game_version"`
	KeepJSON       bool   `yaml:"keep_json"`
	NonInteractive bool   `yaml:"non_interactive"`
}

func Defaults() Config {
	return Config{
		MaxMapSizeDefault:   256,
		MaxMapSizeLimit:     512,
		MaxElevationDefault: 16,
		MaxElevationLimit:   64,
		GameVersion:         "0.3.5.1-fb48f47-sw",
	}
}

// Load reads a YAML config, layering it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxMapSizeLimit <= 0 {
		return fmt.Errorf("max_map_size_limit must be > 0")
	}
	if c.MaxMapSizeDefault <= 0 || c.MaxMapSizeDefault > c.MaxMapSizeLimit {
		return fmt.Errorf("max_map_size_default must be in (0, max_map_size_limit]")
	}
	if c.MaxElevationLimit <= 0 {
		return fmt.Errorf("max_elevation_limit must be > 0")
	}
	if c.MaxElevationDefault <= 0 || c.MaxElevationDefault > c.MaxElevationLimit {
		return fmt.Errorf("max_elevation_default must be in (0, max_elevation_limit]")
	}
	if strings.TrimSpace(c.GameVersion) == "" {
		return fmt.Errorf("game_version must not be empty")
	}
	return nil
}

// ClampSize scales oversized requested dimensions down to the size
// limit, preserving the aspect ratio. Dimensions <= 0 ("keep source
// size") pass through. The bool reports whether anything changed.
func (c Config) ClampSize(width, height int) (int, int, bool) {
	if width <= c.MaxMapSizeLimit && height <= c.MaxMapSizeLimit {
		return width, height, false
	}
	largest := width
	if height > largest {
		largest = height
	}
	ratio := float64(c.MaxMapSizeLimit) / float64(largest)
	if width > 0 {
		width = int(float64(width) * ratio)
	}
	if height > 0 {
		height = int(float64(height) * ratio)
	}
	return width, height, true
}
