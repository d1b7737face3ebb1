package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in main.
type Config struct {
	Addr          string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelURL      string   `json:"model_url" yaml:"model_url" toml:"model_url"`
	ModelPath     string   `json:"model_path" yaml:"model_path" toml:"model_path"`
	CacheDir      string   `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	ContextWindow int      `json:"context_window" yaml:"context_window" toml:"context_window"`
	MaxNewTokens  int      `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Temperature   float64  `json:"temperature" yaml:"temperature" toml:"temperature"`
	Threads       int      `json:"threads" yaml:"threads" toml:"threads"`
	Verbose       bool     `json:"verbose" yaml:"verbose" toml:"verbose"`
	LogLevel      string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	QueueTimeout  string   `json:"queue_timeout" yaml:"queue_timeout" toml:"queue_timeout"`
	CORSEnabled   bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
