package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddress  string    `toml:"ListenAddress" yaml:"listen"`
	DataDir        string    `toml:"DataDir" yaml:"data_dir"`
	StorageBackend string    `toml:"StorageBackend" yaml:"storage_backend"`
	Environment    string    `toml:"Environment" yaml:"environment"`
	Owner          string    `toml:"Owner" yaml:"owner"`
	Params         Params    `toml:"Params" yaml:"params"`
	Auth           Auth      `toml:"Auth" yaml:"auth"`
	RateLimit      RateLimit `toml:"RateLimit" yaml:"rate_limit"`
	Audit          Audit     `toml:"Audit" yaml:"audit"`
	Webhook        Webhook   `toml:"Webhook" yaml:"webhook"`
	Sweeper        Sweeper   `toml:"Sweeper" yaml:"sweeper"`
	Events         Events    `toml:"Events" yaml:"events"`
	Telemetry      Telemetry `toml:"Telemetry" yaml:"telemetry"`
	Log            Log       `toml:"Log" yaml:"log"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as TOML. A missing TOML file is
// created with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		if cfg, err = createDefault(path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if isYAML(path) {
		if err := decodeYAML(path, cfg); err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func decodeYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Default returns a configuration populated with defaults and no owner.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
