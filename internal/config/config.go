// Package config reads the optional ingestlab.yaml project file.
//
// Every key is optional. Command-line flags override file values; relative
// paths in the file are resolved against the file's directory.
//
//	rules: rules/players.yaml
//	documents: samples/
//	database: live.db
//	workers: 4
//	apply_transforms: true
//	policy:
//	  disallow_expressions: true
//	quality_gates:
//	  players.name: 1.0
//	  players:
//	    rank: 0.5
//	mapping:
//	  players:
//	    name: player_name
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ingestlab/internal/analyze"
	"github.com/roach88/ingestlab/internal/apply"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = "ingestlab.yaml"

// Config is the decoded project file.
type Config struct {
	Rules           string                       `yaml:"rules"`
	Documents       string                       `yaml:"documents"`
	Database        string                       `yaml:"database"`
	Workers         int                          `yaml:"workers"`
	ApplyTransforms bool                         `yaml:"apply_transforms"`
	Policy          apply.Policy                 `yaml:"policy"`
	QualityGates    map[string]any               `yaml:"quality_gates"`
	Mapping         map[string]map[string]string `yaml:"mapping"`

	// Path is the file the config was read from, empty for defaults.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{Workers: 1}
}

// Load reads and validates the file at path. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default().
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and that the gate section parses.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if _, err := c.Gates(); err != nil {
		return fmt.Errorf("config: quality_gates: %w", err)
	}
	for res, fields := range c.Mapping {
		for field, target := range fields {
			if target == "" {
				return fmt.Errorf("config: mapping %s.%s: empty target column", res, field)
			}
		}
	}
	return nil
}

// Gates parses the quality_gates section.
func (c *Config) Gates() (analyze.Gates, error) {
	return analyze.ParseGates(c.QualityGates)
}

// FieldMapping returns the mapping section in analyzer form.
func (c *Config) FieldMapping() analyze.Mapping {
	if len(c.Mapping) == 0 {
		return nil
	}
	return analyze.Mapping(c.Mapping)
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Rules, &c.Documents, &c.Database} {
		if *p != "" && !filepath.IsAbs(*p) && *p != ":memory:" {
			*p = filepath.Join(dir, *p)
		}
	}
}
