package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CLIConfig is the chatdocs command-line client configuration.
type CLIConfig struct {
	ServerURL   string `yaml:"server_url"`
	Token       string `yaml:"token,omitempty"`
	TokenEnv    string `yaml:"token_env"`
	PageSize    int    `yaml:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func defaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		ServerURL:   "http://localhost:8080",
		TokenEnv:    "CHATDOCS_TOKEN",
		PageSize:    10,
		TimeoutSecs: 120,
	}
}

func applyCLIDefaults(cfg *CLIConfig) {
	d := defaultCLIConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = d.ServerURL
	}
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = d.TokenEnv
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = d.PageSize
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = d.TimeoutSecs
	}
}

// LoadCLI reads the client config at path. A missing file yields defaults.
func LoadCLI(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultCLIConfig(), nil
		}
		return nil, err
	}
	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyCLIDefaults(&cfg)
	return &cfg, nil
}

// LoadDefaultCLI reads ~/.config/chatdocs/config.yaml, writing defaults there
// on first run.
func LoadDefaultCLI() (*CLIConfig, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(home, ".config", "chatdocs", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		cfg, err := LoadCLI(path)
		return cfg, path, err
	}
	cfg := defaultCLIConfig()
	if err := SaveCLI(path, cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// SaveCLI writes cfg to path, creating directories as needed.
func SaveCLI(path string, cfg *CLIConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// BearerToken returns the inline token, or the one in TokenEnv.
func (c *CLIConfig) BearerToken() string {
	if c.Token != "" {
		return c.Token
	}
	return os.Getenv(c.TokenEnv)
}
