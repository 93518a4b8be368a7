// Package config loads Maestro's YAML configuration and .env secret overlay.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one LLM engine option available to switch_engine.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"` // anthropic | openai | google
	Model        string `yaml:"model"`
	ContextLimit int    `yaml:"context_limit"`
	DisplayName  string `yaml:"display_name"`
}

// Config is Maestro's full process configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DataPath string `yaml:"data_path"`

	ProjectName string `yaml:"project_name"`
	KnowledgePath string `yaml:"knowledge_path"`

	DatabaseDSN string `yaml:"database_dsn"`

	DefaultEngine string           `yaml:"default_engine"`
	Providers     []ProviderConfig `yaml:"providers"`

	AnthropicKey    string `yaml:"anthropic_key,omitempty"`
	OpenAIAPIKey    string `yaml:"openai_api_key,omitempty"`
	GoogleGeminiKey string `yaml:"google_gemini_key,omitempty"`

	SummarizerModel string `yaml:"summarizer_model"`

	UserPhoneNumber string `yaml:"user_phone_number,omitempty"`
	SenderNumber    string `yaml:"sender_number,omitempty"`

	ThumbnailBucket string `yaml:"thumbnail_bucket,omitempty"`
	ThumbnailRegion string `yaml:"thumbnail_region,omitempty"`

	ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds,omitempty"`

	LogPath string `yaml:"log_path,omitempty"`
}

// Load reads the YAML config at filename, overlays secrets from a .env file
// in the working directory via environment variables, and reports the outcome with pterm --
// the same two-step LoadConfig shape the teacher's config.go uses.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		pterm.Warning.Printf("could not load .env: %v\n", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("error reading config file: %v\n", err)
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		pterm.Error.Printf("error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	overlayEnv(cfg)

	if cfg.ProjectName == "" {
		pterm.Error.Println("project_name is required")
		return nil, fmt.Errorf("config: project_name is required")
	}
	if len(cfg.Providers) == 0 {
		pterm.Error.Println("at least one provider must be configured")
		return nil, fmt.Errorf("config: providers is empty")
	}

	pterm.Success.Printf("Configuration loaded for project %q.\n", cfg.ProjectName)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Host:                   "0.0.0.0",
		Port:                   8080,
		DataPath:               "./data",
		DatabaseDSN:            "sqlite://./data/maestro.db",
		DefaultEngine:          "opus",
		SummarizerModel:        "gemini-1.5-flash",
		ProviderTimeoutSeconds: 120,
		LogPath:                "maestro.log",
	}
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("GOOGLE_GEMINI_KEY"); v != "" {
		cfg.GoogleGeminiKey = v
	}
	if v := os.Getenv("MAESTRO_USER_PHONE"); v != "" {
		cfg.UserPhoneNumber = v
	}
	if v := os.Getenv("MAESTRO_SENDER_PHONE"); v != "" {
		cfg.SenderNumber = v
	}
	if v := os.Getenv("MAESTRO_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
}

// Provider looks up a provider config by name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
