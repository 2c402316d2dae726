package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"subforge/internal/filter"
)

type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	GeoIP      GeoIPConfig       `yaml:"geoip"`
	Pipeline   PipelineConfig    `yaml:"pipeline"`
	Publishers []PublisherConfig `yaml:"publishers"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type GeoIPConfig struct {
	// CountryPath is optional; without it imported nodes keep whatever
	// country they were given.
	CountryPath string `yaml:"country_path"`
}

type PipelineConfig struct {
	FilterOrder    []string      `yaml:"filter_order"`
	TemplateGroups []string      `yaml:"template_groups"`
	RegexTimeout   time.Duration `yaml:"regex_timeout"`
	UniqueNames    bool          `yaml:"unique_names"`
	Workers        int           `yaml:"workers"`
	// RandomSeed pins random select mode results; nil seeds from the clock.
	RandomSeed *uint64 `yaml:"random_seed"`
}

type PublisherConfig struct {
	Name          string                 `yaml:"name"`
	Type          string                 `yaml:"type"`
	Subscriptions []string               `yaml:"subscriptions"`
	Params        map[string]interface{} `yaml:"params"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	// Defaults
	cfg.Database.Path = "subforge.db"
	cfg.Pipeline.RegexTimeout = 100 * time.Millisecond
	cfg.Pipeline.UniqueNames = true
	cfg.Pipeline.Workers = runtime.NumCPU()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if cfg.Pipeline.RegexTimeout <= 0 {
		cfg.Pipeline.RegexTimeout = 100 * time.Millisecond
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 1
	}
	if _, err := filter.ParseOrder(cfg.Pipeline.FilterOrder); err != nil {
		return nil, fmt.Errorf("invalid pipeline.filter_order: %w", err)
	}
	for i := range cfg.Publishers {
		if cfg.Publishers[i].Name == "" {
			cfg.Publishers[i].Name = cfg.Publishers[i].Type
		}
	}

	return &cfg, nil
}

// Seed returns the configured random seed or one derived from the clock.
func (p PipelineConfig) Seed() uint64 {
	if p.RandomSeed != nil {
		return *p.RandomSeed
	}
	return uint64(time.Now().UnixNano())
}

func (c *Config) FilterPublishers(names []string) {
	if len(names) == 0 {
		return
	}
	whitelist := make(map[string]bool)
	for _, n := range names {
		whitelist[n] = true
	}
	var filtered []PublisherConfig
	for _, item := range c.Publishers {
		if whitelist[item.Name] {
			filtered = append(filtered, item)
		}
	}
	c.Publishers = filtered
}

// Wants reports whether the publisher takes results of the named
// subscription. An empty list means every subscription.
func (p PublisherConfig) Wants(subscription string) bool {
	if len(p.Subscriptions) == 0 {
		return true
	}
	for _, s := range p.Subscriptions {
		if s == subscription {
			return true
		}
	}
	return false
}
