package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists the chat backends the agent can be configured with.
var ValidLLMProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment fallbacks
// for secrets, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyEnvFallbacks(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvFallbacks fills secrets left out of the file from the environment,
// so tokens and DSNs never need to live on disk.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.Rules.PostgresDSN == "" {
		cfg.Rules.PostgresDSN = os.Getenv("DATABASE_URL")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Scryfall.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("scryfall.min_interval must not be negative"))
	}
	if d := cfg.Scryfall.MinInterval; d > 0 && d < 100*time.Millisecond {
		slog.Warn("scryfall.min_interval is below the 100ms Scryfall asks for", "min_interval", d)
	}

	if cfg.Rules.PostgresDSN != "" {
		if cfg.Rules.EmbeddingDimensions < 0 {
			errs = append(errs, fmt.Errorf("rules.embedding_dimensions must not be negative"))
		}
		if cfg.Rules.EmbeddingDimensions == 0 {
			slog.Warn("rules.embedding_dimensions is not set; defaulting to 1536")
		}
		if cfg.Rules.Embeddings.Name == "" {
			errs = append(errs, fmt.Errorf("rules.embeddings.name is required when rules.postgres_dsn is set"))
		}
	}

	if cfg.Discord.Enabled {
		if cfg.Discord.Token == "" {
			errs = append(errs, fmt.Errorf("discord.token is required when discord.enabled is true (or set DISCORD_TOKEN)"))
		}
		if cfg.LLM.Provider == "" {
			errs = append(errs, fmt.Errorf("llm.provider is required when discord.enabled is true"))
		}
		if cfg.LLM.Model == "" {
			errs = append(errs, fmt.Errorf("llm.model is required when discord.enabled is true"))
		}
	}

	if name := cfg.LLM.Provider; name != "" && !slices.Contains(ValidLLMProviders, name) {
		errs = append(errs, fmt.Errorf("llm.provider %q is invalid; valid values: %v", name, ValidLLMProviders))
	}

	return errors.Join(errs...)
}
