package llm

import (
	"fmt"
	"strings"

	"pressroom/pkg/config"
)

type Config struct {
	Provider string
	Model    string
	APIKey   string
	APIURL   string
}

func LoadConfig() Config {
	return Config{
		Provider: config.GetEnv("LLM_PROVIDER", "openai"),
		Model:    config.GetEnv("LLM_MODEL", ""),
		APIKey:   config.GetEnv("LLM_API_KEY", ""),
		APIURL:   config.GetEnv("LLM_API_URL", ""),
	}
}

// LoadVisionConfig loads vision-model configuration from VISION_* env vars,
// falling back to the LLM_* counterparts when unset.
func LoadVisionConfig() Config {
	return Config{
		Provider: config.GetEnv("VISION_PROVIDER", config.GetEnv("LLM_PROVIDER", "openai")),
		Model:    config.GetEnv("VISION_MODEL", config.GetEnv("LLM_MODEL", "")),
		APIKey:   config.GetEnv("VISION_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:   config.GetEnv("VISION_API_URL", config.GetEnv("LLM_API_URL", "")),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
