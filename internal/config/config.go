// Package config loads the convoke configuration from
// ~/.convoke/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config represents the convoke configuration
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig identifies one provider/model pair
type ModelConfig struct {
	Provider string `yaml:"provider"` // "claude", "gemini"
	Model    string `yaml:"model"`

	// ThinkingBudget enables extended thinking when > 0 (token budget,
	// claude only).
	ThinkingBudget int `yaml:"thinking_budget,omitempty"`
}

// LLMConfig configures the available models and which one is active
type LLMConfig struct {
	Current   string                 `yaml:"current"`
	Available map[string]ModelConfig `yaml:"available"`
}

// CurrentModel resolves the active model configuration
func (c LLMConfig) CurrentModel() (ModelConfig, error) {
	mc, ok := c.Available[c.Current]
	if !ok {
		return ModelConfig{}, fmt.Errorf("current model %q not found in available models", c.Current)
	}
	return mc, nil
}

// ModelNames returns the available model names in sorted order
func (c LLMConfig) ModelNames() []string {
	names := make([]string, 0, len(c.Available))
	for name := range c.Available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StorageConfig configures the sqlite database
type StorageConfig struct {
	Path string `yaml:"path"`
}

// DaemonConfig configures the convoked HTTP listener
type DaemonConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// DefaultPath returns ~/.convoke/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".convoke", "config.yaml"), nil
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			Current: "claude-sonnet",
			Available: map[string]ModelConfig{
				"claude-sonnet": {Provider: "claude", Model: "claude-sonnet-4-20250514"},
				"gemini-flash":  {Provider: "gemini", Model: "gemini-2.0-flash-lite"},
			},
		},
		Storage: StorageConfig{
			Path: filepath.Join(home, ".convoke", "convoke.db"),
		},
		Daemon: DaemonConfig{
			Listen: "127.0.0.1:7432",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file, falling back to
// defaults when the file does not exist. Environment variables
// CONVOKE_LLM_PROVIDER and CONVOKE_LLM_MODEL override the active model.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	provider := os.Getenv("CONVOKE_LLM_PROVIDER")
	model := os.Getenv("CONVOKE_LLM_MODEL")
	if provider == "" && model == "" {
		return
	}

	mc, _ := cfg.LLM.CurrentModel()
	if provider != "" {
		mc.Provider = provider
	}
	if model != "" {
		mc.Model = model
	}
	if cfg.LLM.Available == nil {
		cfg.LLM.Available = map[string]ModelConfig{}
	}
	cfg.LLM.Available["env-override"] = mc
	cfg.LLM.Current = "env-override"
}

// Save writes configuration to the given file, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
