// Package config defines the tribunal configuration surface and its viper
// cascade: built-in defaults, then a config file, then TRIBUNAL_* environment
// variables. The engine never reads configuration sources itself; the CLI
// resolves a Config once and passes plain values in.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete tribunal configuration.
type Config struct {
	Consult ConsultConfig `mapstructure:"consult"`
	Agents  AgentsConfig  `mapstructure:"agents"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ConsultConfig controls consultation policy.
type ConsultConfig struct {
	// AutoApproveUSD is the cost threshold under which consultations run
	// without an interactive consent prompt.
	AutoApproveUSD float64 `mapstructure:"auto_approve_usd"`
	// MaxRounds caps the debate; 2 stops after synthesis, 4 runs the full
	// protocol.
	MaxRounds int `mapstructure:"max_rounds"`
	// MaxTokens is the per-call output token limit.
	MaxTokens int64 `mapstructure:"max_tokens"`
	// Temperature is forwarded to every model call.
	Temperature float64 `mapstructure:"temperature"`
}

// AgentsConfig maps roster positions and the judge to model ids.
type AgentsConfig struct {
	Analyst    string `mapstructure:"analyst"`
	Skeptic    string `mapstructure:"skeptic"`
	Pragmatist string `mapstructure:"pragmatist"`
	// Judge is the model used by the synthesis, cross-exam and verdict
	// judges.
	Judge string `mapstructure:"judge"`
}

// HistoryConfig controls where completed consultations are appended.
type HistoryConfig struct {
	// Path is the JSONL history file. Empty means
	// <config dir>/history.jsonl. Supports ~ expansion.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Consult: ConsultConfig{
			AutoApproveUSD: 0.50,
			MaxRounds:      4,
			MaxTokens:      4096,
			Temperature:    0.7,
		},
		Agents: AgentsConfig{
			Analyst:    "claude-3-5-sonnet-20241022",
			Skeptic:    "claude-3-5-sonnet-20241022",
			Pragmatist: "claude-3-5-sonnet-20241022",
			Judge:      "claude-3-5-sonnet-20241022",
		},
		History: HistoryConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("consult.auto_approve_usd", defaults.Consult.AutoApproveUSD)
	viper.SetDefault("consult.max_rounds", defaults.Consult.MaxRounds)
	viper.SetDefault("consult.max_tokens", defaults.Consult.MaxTokens)
	viper.SetDefault("consult.temperature", defaults.Consult.Temperature)

	viper.SetDefault("agents.analyst", defaults.Agents.Analyst)
	viper.SetDefault("agents.skeptic", defaults.Agents.Skeptic)
	viper.SetDefault("agents.pragmatist", defaults.Agents.Pragmatist)
	viper.SetDefault("agents.judge", defaults.Agents.Judge)

	viper.SetDefault("history.path", defaults.History.Path)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
}

// Load reads the configuration from viper into a Config struct and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribunal")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tribunal"
	}
	return filepath.Join(home, ".config", "tribunal")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ResolvePath returns the resolved history file path. An empty Path falls
// back to history.jsonl in the config directory; ~ expands to the user's
// home directory.
func (h *HistoryConfig) ResolvePath() string {
	if h.Path == "" {
		return filepath.Join(ConfigDir(), "history.jsonl")
	}
	path := h.Path
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}
