// Package config loads plpc settings from a TOML or YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/voidbert/PL/diagnostic"
	"gopkg.in/yaml.v3"
)

// Config is the complete plpc configuration.
type Config struct {
	Compiler    CompilerConfig    `toml:"compiler" yaml:"compiler"`
	Output      OutputConfig      `toml:"output" yaml:"output"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics" yaml:"diagnostics"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

type CompilerConfig struct {
	Optimize bool `toml:"optimize" yaml:"optimize"`
	Comments bool `toml:"comments" yaml:"comments"`
}

// OutputConfig controls where build writes when no -o is given.
type OutputConfig struct {
	Extension string `toml:"extension" yaml:"extension"`
}

type DiagnosticsConfig struct {
	// Color is one of auto, always or never.
	Color string `toml:"color" yaml:"color"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Names looked up by Discover, in order.
var discoveryNames = []string{"plpc.toml", "plpc.yaml", "plpc.yml"}

var ErrUnknownFormat = errors.New("unknown configuration format")

func Default() *Config {
	return &Config{
		Compiler:    CompilerConfig{Optimize: true, Comments: true},
		Output:      OutputConfig{Extension: ".ewvm"},
		Diagnostics: DiagnosticsConfig{Color: string(diagnostic.ColorAuto)},
		Log:         LogConfig{Level: "warn"},
	}
}

// Load reads path over the defaults, so a file only needs the keys it changes. With an empty
// path the configuration is discovered in the working directory, and defaults are returned
// when there is none.
func Load(path string) (*Config, error) {
	if path == "" {
		discovered, ok := Discover(".")
		if !ok {
			return Default(), nil
		}
		path = discovered
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes data in the format named by extension (.toml, .yaml or .yml) and validates
// the result.
func Parse(data []byte, extension string) (*Config, error) {
	config := Default()
	switch strings.ToLower(extension) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, extension)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Discover returns the first of plpc.toml, plpc.yaml and plpc.yml found in dir.
func Discover(dir string) (string, bool) {
	for _, name := range discoveryNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (c *Config) Validate() error {
	if _, err := diagnostic.ParseColorMode(c.Diagnostics.Color); err != nil {
		return fmt.Errorf("diagnostics.color: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if !strings.HasPrefix(c.Output.Extension, ".") {
		return fmt.Errorf("output.extension: %q does not start with a dot", c.Output.Extension)
	}
	return nil
}

// ColorMode is the validated diagnostics colour mode.
func (c *Config) ColorMode() diagnostic.ColorMode {
	mode, err := diagnostic.ParseColorMode(c.Diagnostics.Color)
	if err != nil {
		return diagnostic.ColorAuto
	}
	return mode
}

// LogLevel is the validated log level.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.WarnLevel
	}
	return level
}
