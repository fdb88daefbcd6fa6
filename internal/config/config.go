package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cybertodo/internal/model"
	"cybertodo/internal/storage"
)

const DefaultPath = "cybertodo.yml"

type Config struct {
	DataDir  string         `yaml:"data_dir" json:"data_dir"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Defaults DefaultsConfig `yaml:"defaults" json:"defaults"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Activity ActivityConfig `yaml:"activity" json:"activity"`
}

type StorageConfig struct {
	// Backend is "file" or "memory".
	Backend string `yaml:"backend" json:"backend"`
	Key     string `yaml:"key" json:"key"`
}

type DefaultsConfig struct {
	Priority string `yaml:"priority" json:"priority"`
	Category string `yaml:"category" json:"category"`
}

type SearchConfig struct {
	// MatchCategory is a pointer so an explicit false survives defaults.
	MatchCategory *bool `yaml:"match_category" json:"match_category"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Format string `yaml:"format" json:"format"`
}

type ActivityConfig struct {
	Limit int `yaml:"limit" json:"limit"`
}

func (s *StorageConfig) ApplyDefaults() {
	if strings.TrimSpace(s.Backend) == "" {
		s.Backend = "file"
	}
	if strings.TrimSpace(s.Key) == "" {
		s.Key = storage.DefaultKey
	}
}

func (d *DefaultsConfig) ApplyDefaults() {
	if strings.TrimSpace(d.Priority) == "" {
		d.Priority = string(model.PriorityMedium)
	}
	if strings.TrimSpace(d.Category) == "" {
		d.Category = model.DefaultCategory
	}
}

func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	c.Storage.ApplyDefaults()
	c.Defaults.ApplyDefaults()
	if c.Search.MatchCategory == nil {
		on := true
		c.Search.MatchCategory = &on
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":42069"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "json"
	}
	if c.Activity.Limit <= 0 {
		c.Activity.Limit = 1000
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "file", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if _, ok := model.ParsePriority(c.Defaults.Priority); !ok {
		errs = append(errs, fmt.Errorf("defaults.priority: unknown priority %q", c.Defaults.Priority))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// MatchCategory reports the effective search setting.
func (c *Config) MatchCategory() bool {
	return c.Search.MatchCategory == nil || *c.Search.MatchCategory
}

// Default returns a fully defaulted config.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	r.ApplyDefaults()
	return &r, nil
}

// LoadOptional is Load, except a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}
