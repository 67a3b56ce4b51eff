// Package config loads the settings of the midivcs tools.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vsariola/midivcs/undo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type (
	Config struct {
		Undo UndoConfig `yaml:"undo"`
		Log  LogConfig  `yaml:"log"`
		Midi MidiConfig `yaml:"midi"`
		VCS  VCSConfig  `yaml:"vcs"`
	}

	UndoConfig struct {
		MaxUnits        int `yaml:"maxUnits"`
		MinTransactions int `yaml:"minTransactions"`
		MaxSerialized   int `yaml:"maxSerialized"`
	}

	LogConfig struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	}

	MidiConfig struct {
		Resolution int `yaml:"resolution"`
	}

	VCSConfig struct {
		AuthorName string `yaml:"authorName"`
	}
)

//go:embed config.yml
var defaultConfigYaml []byte

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if err := yaml.UnmarshalStrict(defaultConfigYaml, &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// Parse overrides the defaults with the settings in data. Unknown keys are
// an error.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Default(), err
	}
	if err := c.validate(); err != nil {
		return Default(), err
	}
	return c, nil
}

// Load reads the configuration from path. If path is empty, config.yml in
// the user config directory is used; a missing file there is not an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Default(), nil
		}
		path = filepath.Join(dir, "midivcs", "config.yml")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return Default(), err
	}
	c, err := Parse(data)
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Undo.MaxUnits < 0 || c.Undo.MinTransactions < 0 || c.Undo.MaxSerialized < 0 {
		return errors.New("undo limits cannot be negative")
	}
	if c.Midi.Resolution <= 0 || c.Midi.Resolution > 0x7fff {
		return fmt.Errorf("invalid MIDI resolution %d", c.Midi.Resolution)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) UndoLimits() undo.Limits {
	return undo.Limits{
		MaxUnits:        c.Undo.MaxUnits,
		MinTransactions: c.Undo.MinTransactions,
		MaxSerialized:   c.Undo.MaxSerialized,
	}
}

// Logger builds the zap logger described by the log settings.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
