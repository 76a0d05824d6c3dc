// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/core/types"
)

// Backend declares one named fetcher instance.
type Backend struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// Label declares one edge label and where its edges live.
type Label struct {
	Name       string `yaml:"name"`
	Direction  string `yaml:"direction"`
	Backend    string `yaml:"backend"`
	SrcService string `yaml:"src_service"`
	SrcColumn  string `yaml:"src_column"`
	TgtService string `yaml:"tgt_service"`
	TgtColumn  string `yaml:"tgt_column"`
}

// Config is the full server configuration.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxFrontier  int           `yaml:"max_frontier"`

	DefaultBackend string              `yaml:"default_backend"`
	Backends       []Backend           `yaml:"backends"`
	Services       map[string][]string `yaml:"services"`
	Labels         []Label             `yaml:"labels"`
}

// DefaultConfig returns a single in-memory backend listening on :9094.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":9094",
		LogLevel:     "info",
		LogFormat:    "text",
		QueryTimeout: 10 * time.Second,
		Backends: []Backend{
			{Name: "memory", Type: "memory"},
		},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig using strict
// parsing. Unknown fields are an error. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross references between backends and labels.
func (c *Config) Validate() error {
	var errs []error
	if c.QueryTimeout < 0 {
		errs = append(errs, errors.New("query_timeout must not be negative"))
	}
	if c.MaxFrontier < 0 {
		errs = append(errs, errors.New("max_frontier must not be negative"))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("at least one backend is required"))
	}
	names := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		switch {
		case b.Name == "":
			errs = append(errs, fmt.Errorf("backends[%d]: name is required", i))
		case names[b.Name]:
			errs = append(errs, fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name))
		}
		if b.Type == "" {
			errs = append(errs, fmt.Errorf("backends[%d]: type is required", i))
		}
		names[b.Name] = true
	}
	if c.DefaultBackend != "" && !names[c.DefaultBackend] {
		errs = append(errs, fmt.Errorf("default_backend %q is not declared", c.DefaultBackend))
	}

	for i, l := range c.Labels {
		if l.Name == "" {
			errs = append(errs, fmt.Errorf("labels[%d]: name is required", i))
		}
		if l.Direction != "" {
			if _, err := types.ParseDirection(l.Direction); err != nil {
				errs = append(errs, fmt.Errorf("labels[%d]: %w", i, err))
			}
		}
		if l.Backend != "" && !names[l.Backend] {
			errs = append(errs, fmt.Errorf("labels[%d]: backend %q is not declared", i, l.Backend))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
