// Package config loads the host-side station configuration: district
// layout, console transport, and panel options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Districts []DistrictConfig `yaml:"districts"`
	Console   ConsoleConfig    `yaml:"console"`
	Flash     FlashConfig      `yaml:"flash"`
	Panel     PanelConfig      `yaml:"panel"`
}

type DistrictConfig struct {
	Name string `yaml:"name"`
	Zone string `yaml:"zone"` // "main" or "programming"
	Pin  uint8  `yaml:"pin"`
}

type ConsoleConfig struct {
	Port string `yaml:"port"` // empty = stdio
	Baud int    `yaml:"baud"`
}

type FlashConfig struct {
	Path string `yaml:"path"`
}

type PanelConfig struct {
	TimeScale int `yaml:"time_scale"`
}

// Default is the two-district bench setup: one main, one programming.
func Default() *Config {
	return &Config{
		Districts: []DistrictConfig{
			{Name: "A", Zone: "main", Pin: 0},
			{Name: "PROG", Zone: "programming", Pin: 1},
		},
	}
}

// Load reads and validates a YAML config; an empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the station cannot run.
func (c *Config) Validate() error {
	if len(c.Districts) == 0 {
		return fmt.Errorf("no districts configured")
	}
	seen := map[string]bool{}
	for i, d := range c.Districts {
		if d.Name == "" {
			return fmt.Errorf("district %d: empty name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("district %q: duplicate name", d.Name)
		}
		seen[d.Name] = true
		switch d.Zone {
		case "main", "programming":
		default:
			return fmt.Errorf("district %q: unknown zone %q", d.Name, d.Zone)
		}
	}
	if c.Console.Baud < 0 {
		return fmt.Errorf("console: negative baud rate")
	}
	return nil
}
