package core

import (
	"fmt"
	"net/url"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BindAddress   string `yaml:"bindAddress" env:"GLAZED_BIND_ADDRESS"`
	PublicAddress string `yaml:"publicAddress" env:"GLAZED_PUBLIC_ADDRESS"`
	TiledAddress  string `yaml:"tiledAddress" env:"GLAZED_TILED_ADDRESS"`
	TemplatesDir  string `yaml:"templatesDir" env:"GLAZED_TEMPLATES_DIR"`
	StaticDir     string `yaml:"staticDir" env:"GLAZED_STATIC_DIR"`
	OutputDir     string `yaml:"outputDir" env:"GLAZED_OUTPUT_DIR"`
	DebugHeaders  bool   `yaml:"debugHeaders" env:"GLAZED_DEBUG_HEADERS"`
	DebugLogs     bool   `yaml:"debugLogs" env:"GLAZED_DEBUG_LOGS"`
}

func DefaultConfig() Config {
	return Config{
		BindAddress:  "0.0.0.0:8080",
		TiledAddress: "http://localhost:8000",
		TemplatesDir: "templates",
		StaticDir:    "static",
		OutputDir:    "./cache",
	}
}

// LoadConfig reads the YAML config at path, fills unset fields from
// defaults, then applies GLAZED_* environment overrides. An empty path
// skips the file and uses defaults alone.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// PublicURL is the external base URL used for links handed back to clients,
// falling back to the bind address when no public address is configured.
func (c Config) PublicURL() (*url.URL, error) {
	address := c.PublicAddress
	if address == "" {
		address = "http://" + c.BindAddress
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid public address %q: %w", address, err)
	}
	return u, nil
}
