package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// New creates a provider from configuration
func New(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "", "openai":
		return NewOpenAIProvider(config)
	case "gemini":
		return NewGeminiProvider(ctx, config)
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Provider)
	}
}

// ConfigFromEnv assembles provider configuration from the environment
func ConfigFromEnv() Config {
	config := Config{
		Provider: os.Getenv("AUDIT_PROVIDER"),
		BaseURL:  os.Getenv("AUDIT_BASE_URL"),
		Model:    os.Getenv("AUDIT_MODEL"),
	}

	switch strings.ToLower(config.Provider) {
	case "gemini":
		config.APIKey = os.Getenv("GEMINI_API_KEY")
	default:
		config.APIKey = os.Getenv("AUDIT_API_KEY")
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if v := os.Getenv("AUDIT_TIMEOUT_SECONDS"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			config.Timeout = timeout
		}
	}

	if v := os.Getenv("AUDIT_ALLOWED_DOMAINS"); v != "" {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				config.AllowedDomains = append(config.AllowedDomains, d)
			}
		}
	}
	if len(config.AllowedDomains) == 0 {
		config.AllowedDomains = DefaultAllowedDomains()
	}

	return config
}
