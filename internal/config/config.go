package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"demandline/internal/datemath"
)

// Config models demandline.yml. It only carries display geometry; the stage
// catalog is fixed in code and deliberately not configurable.
type Config struct {
	Display struct {
		// AnchorYear is the base year of the fixed calendar-anchor
		// coordinate used for per-bar metadata and progress splitting.
		AnchorYear int `yaml:"anchor_year"`
		// UnitsPerYear is how many anchor units one calendar year spans.
		UnitsPerYear float64 `yaml:"units_per_year"`
		// FallbackStart anchors the timeline when no demand has dates.
		FallbackStart string `yaml:"fallback_start"`
	} `yaml:"display"`
}

// Default returns the standard chart geometry: anchor at 2025, 20 units per
// year, one fallback year from 2025-01-01.
func Default() *Config {
	var cfg Config
	cfg.Display.AnchorYear = 2025
	cfg.Display.UnitsPerYear = 20
	cfg.Display.FallbackStart = "2025-01-01"
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Display.AnchorYear < 1970 || c.Display.AnchorYear > 9999 {
		return fmt.Errorf("display.anchor_year %d out of range", c.Display.AnchorYear)
	}
	if c.Display.UnitsPerYear <= 0 {
		return fmt.Errorf("display.units_per_year must be positive")
	}
	if _, err := datemath.Parse(c.Display.FallbackStart); err != nil {
		return fmt.Errorf("display.fallback_start: %w", err)
	}
	return nil
}

// FallbackStartDate returns the parsed fallback timeline start.
func (c *Config) FallbackStartDate() time.Time {
	d, err := datemath.Parse(c.Display.FallbackStart)
	if err != nil {
		return datemath.Date(2025, time.January, 1)
	}
	return d
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "demandline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Omitted fields
// fall back to defaults; fields that are present are validated as written,
// so an explicit zero is an error rather than a silent default.
func FromYAML(data []byte) (*Config, error) {
	var raw struct {
		Display struct {
			AnchorYear    *int     `yaml:"anchor_year"`
			UnitsPerYear  *float64 `yaml:"units_per_year"`
			FallbackStart *string  `yaml:"fallback_start"`
		} `yaml:"display"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg := Default()
	if raw.Display.AnchorYear != nil {
		cfg.Display.AnchorYear = *raw.Display.AnchorYear
	}
	if raw.Display.UnitsPerYear != nil {
		cfg.Display.UnitsPerYear = *raw.Display.UnitsPerYear
	}
	if raw.Display.FallbackStart != nil {
		cfg.Display.FallbackStart = *raw.Display.FallbackStart
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
