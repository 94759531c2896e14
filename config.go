package sossml2gpkg

import (
	"errors"
	"gopkg.in/yaml.v3"
	"maps"
	"os"
	"slices"
	"time"
)

// Config describes one harvesting run.
type Config struct {
	OutputDir   string            `yaml:"output_dir"`
	Timeout     time.Duration     `yaml:"timeout"`
	Concurrency int               `yaml:"concurrency"`
	Retries     int               `yaml:"retries"`
	Providers   map[string]string `yaml:"providers"` // label -> SOS endpoint
	Stations    []string          `yaml:"stations"`
}

// DefaultConfig is the reference run: every station of two IOOS regional associations.
func DefaultConfig() Config {
	return Config{
		OutputDir:   ".",
		Timeout:     DefaultTimeout,
		Concurrency: 1,
		Providers: map[string]string{
			"nanoos":  "http://data.nanoos.org/52nsos/sos/kvp",
			"cencoos": "http://sos.cencoos.org/sos/sos/kvp",
		},
	}
}

// LoadConfig reads path over DefaultConfig. A providers map in the file replaces
// the default providers entirely.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, err
	}
	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.Timeout != 0 {
		cfg.Timeout = file.Timeout
	}
	if file.Concurrency != 0 {
		cfg.Concurrency = file.Concurrency
	}
	if file.Retries != 0 {
		cfg.Retries = file.Retries
	}
	if len(file.Providers) > 0 {
		cfg.Providers = file.Providers
	}
	if len(file.Stations) > 0 {
		cfg.Stations = file.Stations
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("config: at least one provider required")
	}
	for label, endpoint := range c.Providers {
		if label == "" || endpoint == "" {
			return errors.New("config: providers need a label and an endpoint")
		}
	}
	if c.Concurrency < 0 || c.Retries < 0 {
		return errors.New("config: concurrency and retries cannot be negative")
	}
	return nil
}

// ProviderLabels returns the provider labels in sorted order.
func (c Config) ProviderLabels() []string {
	return slices.Sorted(maps.Keys(c.Providers))
}

// Client builds a client for the provider called label.
func (c Config) Client(label string) *Client {
	client := NewClient(c.Providers[label])
	if c.Timeout > 0 {
		client.Timeout = c.Timeout
	}
	if c.Concurrency > 0 {
		client.Concurrency = c.Concurrency
	}
	client.Retries = c.Retries
	return client
}
