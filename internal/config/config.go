package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every knob of an extraction run. Values are resolved in
// order: defaults, then the optional YAML file, then environment variables;
// command-line flags override on top of the result.
type Config struct {
	FlakeRef      string   `yaml:"flake_ref"`
	AttributePath string   `yaml:"attribute_path"`
	System        string   `yaml:"system"`
	RuntimeOnly   bool     `yaml:"runtime_only"`
	Offline       bool     `yaml:"offline"`
	Workers       int      `yaml:"workers"`
	Pretty        bool     `yaml:"pretty"`
	NarInfo       bool     `yaml:"narinfo"`
	BinaryCaches  []string `yaml:"binary_caches"`
	SkipPrefixes  []string `yaml:"skip_prefixes"`
}

// Default returns the built-in configuration: crawl all of nixpkgs for the
// host system.
func Default() *Config {
	return &Config{FlakeRef: "nixpkgs"}
}

// Load resolves the configuration from an optional YAML file and the
// environment. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	// Pick up a .env file when present, the same way local development
	// environments expect.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NIXTRACT_FLAKE_REF"); v != "" {
		cfg.FlakeRef = v
	}
	if v := os.Getenv("NIXTRACT_SYSTEM"); v != "" {
		cfg.System = v
	}
	if v := os.Getenv("NIXTRACT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}
